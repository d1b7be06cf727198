// Package mapping derives and represents column→field mappings for the
// import pipeline.
//
// A mapping assigns each source header to either a pre-existing target
// field or a new dynamic column. Proposals built here are advisory: the
// operator's edited mapping, submitted on execute, is the only mapping
// ever acted upon.
package mapping

// TargetKind discriminates the two mapping destinations.
type TargetKind string

const (
	// ExistingField maps a header onto a fixed, known target attribute.
	ExistingField TargetKind = "existing_field"
	// NewColumn creates a dynamic attribute named SanitizedName.
	NewColumn TargetKind = "new_column"
)

// Target is one header's destination.
type Target struct {
	Kind TargetKind `json:"kind"`

	// Field is set when Kind == ExistingField.
	Field string `json:"field,omitempty"`

	// SanitizedName is set when Kind == NewColumn.
	SanitizedName string `json:"sanitized_name,omitempty"`
}

// ToField builds an ExistingField target.
func ToField(field string) Target {
	return Target{Kind: ExistingField, Field: field}
}

// ToNewColumn builds a NewColumn target for the given header.
func ToNewColumn(header string) Target {
	return Target{Kind: NewColumn, SanitizedName: Sanitize(header)}
}

// Mapping assigns each header to at most one target. The reverse is not
// injective: two headers may converge on one target, and last-write-wins
// applied in header order keeps that deterministic.
type Mapping map[string]Target
