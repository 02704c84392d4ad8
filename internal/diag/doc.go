// Package diag defines the diagnostic model shared by every compiler stage:
// severity levels, stable numeric codes, the Diagnostic value itself, and a
// Bag collector with sorting and deduplication.
//
// Stages never print; they report into a Bag (directly or through the
// Reporter interface) and the caller decides how to render the result.
package diag
