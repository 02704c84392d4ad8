// Package diagfmt renders diagnostics for humans and tools: a pretty
// terminal form with source context and caret underlines, and a stable
// JSON form for editors and CI.
package diagfmt

// PrettyOpts configures terminal output.
type PrettyOpts struct {
	Color bool
	// ShowNotes renders secondary locations under the primary.
	ShowNotes bool
	// Width truncates context lines; 0 leaves them unbounded.
	Width int
}

// JSONOpts configures machine output.
type JSONOpts struct {
	// IncludePositions adds resolved line/col pairs next to byte offsets.
	IncludePositions bool
	// Max truncates the emitted list; 0 emits everything.
	Max int
}
