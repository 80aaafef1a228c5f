package hive

import "fmt"

// FormatError reports a frequency-bin key that could not be parsed as a
// number. The builder surfaces it directly; no silent defaulting.
type FormatError struct {
	Key string
	Err error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid frequency key %q: %v", e.Key, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// InvalidInputError reports a feature vector too short to classify. Vectors
// of length 0 or 1 are rejected rather than silently labelled normal, so a
// degenerate upload never masquerades as a quiet hive.
type InvalidInputError struct {
	Length int
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("feature vector too short to classify: %d element(s)", e.Length)
}
