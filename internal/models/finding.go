package models

// FindingKind classifies a validation finding.
type FindingKind string

const (
	MissingRequired FindingKind = "MissingRequired"
	TypeMismatch    FindingKind = "TypeMismatch"
	Unfixable       FindingKind = "Unfixable"
)

// Resolution records what happened to a finding.
type Resolution string

const (
	// Fixed means the repair was written to disk.
	Fixed Resolution = "fixed"
	// Fixable means a repair exists but the run did not apply it.
	Fixable Resolution = "fixable"
	// Flagged means no safe repair exists; the field is left as-is.
	Flagged Resolution = "flagged"
)

// Finding is one per-field result of validating a document.
type Finding struct {
	Path       string      `json:"path"`
	Field      string      `json:"field"`
	Kind       FindingKind `json:"kind"`
	Detail     string      `json:"detail"`
	Resolution Resolution  `json:"resolution"`
}
