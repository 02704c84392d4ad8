package version

import (
	"strings"

	"github.com/fatih/color"
)

// Build metadata for the sable CLI, overridable at build time via
// -ldflags.
var (
	// Version is the semantic version of the CLI.
	Version = "0.1.0-dev"

	// GitCommit is an optional git commit hash.
	GitCommit = ""

	// BuildDate is an optional build date in ISO-8601.
	BuildDate = ""
)

// ArtifactSchema is the bytecode container schema this build emits.
const ArtifactSchema = 1

var partColors = []*color.Color{
	color.New(color.FgYellow, color.Bold),
	color.New(color.FgGreen, color.Bold),
	color.New(color.FgBlue, color.Bold),
}

// Colorize renders a dotted version string with each numeric part in its
// own color. Pre-release suffixes stay uncolored; JSON output should use
// the plain Version instead.
func Colorize(v string) string {
	base, suffix, _ := strings.Cut(v, "-")
	parts := strings.Split(base, ".")
	for i := range parts {
		parts[i] = partColors[i%len(partColors)].Sprint(parts[i])
	}
	out := strings.Join(parts, ".")
	if suffix != "" {
		out += "-" + suffix
	}
	return out
}
