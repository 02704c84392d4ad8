package diagfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"sable/internal/diag"
	"sable/internal/source"
)

var (
	errStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
	warnStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3"))
	infoStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func severityLabel(sev diag.Severity, color bool) string {
	s := sev.String()
	if !color {
		return s
	}
	switch sev {
	case diag.SevError:
		return errStyle.Render(s)
	case diag.SevWarning:
		return warnStyle.Render(s)
	default:
		return infoStyle.Render(s)
	}
}

// Pretty renders every diagnostic in the bag. Callers sort the bag first
// when they want positional order.
func Pretty(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts PrettyOpts) {
	for _, d := range bag.Items() {
		writeHeading(w, fs, d.Primary, severityLabel(d.Severity, opts.Color), d.Code, d.Message)
		writeContext(w, fs, d.Primary, opts)
		if opts.ShowNotes {
			for _, n := range d.Notes {
				writeHeading(w, fs, n.Span, "note", diag.UnknownCode, n.Msg)
				writeContext(w, fs, n.Span, opts)
			}
		}
	}
}

func writeHeading(w io.Writer, fs *source.FileSet, sp source.Span, label string, code diag.Code, msg string) {
	path, lc := fs.Position(sp)
	if path == "" {
		if code == diag.UnknownCode {
			fmt.Fprintf(w, "%s: %s\n", label, msg)
			return
		}
		fmt.Fprintf(w, "%s %s: %s\n", label, code, msg)
		return
	}
	if code == diag.UnknownCode {
		fmt.Fprintf(w, "%s:%d:%d: %s: %s\n", path, lc.Line, lc.Col, label, msg)
		return
	}
	fmt.Fprintf(w, "%s:%d:%d: %s %s: %s\n", path, lc.Line, lc.Col, label, code, msg)
}

// writeContext prints the source line with a caret underline. Widths are
// measured in display cells so the underline stays put under wide runes.
func writeContext(w io.Writer, fs *source.FileSet, sp source.Span, opts PrettyOpts) {
	_, lc := fs.Position(sp)
	line := fs.Line(sp.File, lc.Line)
	if line == nil {
		return
	}
	text := strings.ReplaceAll(string(line), "\t", "    ")
	if opts.Width > 0 {
		text = runewidth.Truncate(text, opts.Width, "…")
	}

	prefix := string(line[:min(int(lc.Col)-1, len(line))])
	prefix = strings.ReplaceAll(prefix, "\t", "    ")
	pad := runewidth.StringWidth(prefix)

	span := int(sp.Len())
	end := min(int(lc.Col)-1+span, len(line))
	marked := strings.ReplaceAll(string(line[min(int(lc.Col)-1, len(line)):end]), "\t", "    ")
	width := max(runewidth.StringWidth(marked), 1)

	underline := strings.Repeat(" ", pad) + "^" + strings.Repeat("~", width-1)
	if opts.Color {
		underline = dimStyle.Render(underline)
	}
	fmt.Fprintf(w, "    %s\n    %s\n", text, underline)
}
