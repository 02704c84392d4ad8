package diag

// Severity ranks a diagnostic. The order is meaningful: bag queries
// compare severities, so SevError must stay the largest value.
type Severity uint8

const (
	// SevInfo carries advisory output, e.g. a wildcard-fallback notice.
	SevInfo Severity = iota
	// SevWarning flags suspect but compilable code, e.g. an
	// under-declared domain set.
	SevWarning
	// SevError blocks the artifact.
	SevError
)

var severityNames = [...]string{
	SevInfo:    "INFO",
	SevWarning: "WARNING",
	SevError:   "ERROR",
}

func (s Severity) String() string {
	if int(s) < len(severityNames) {
		return severityNames[s]
	}
	return "UNKNOWN"
}
