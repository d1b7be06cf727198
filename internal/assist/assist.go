// Package assist defines the optional mapping oracle used to improve the
// default column→field proposal.
//
// The oracle is a capability, not a dependency: it may be unconfigured,
// slow, or wrong, and every such failure must be silent and harmless. The
// pipeline always computes the heuristic mapping first and only swaps in
// an oracle suggestion when one arrives intact.
package assist

import (
	"context"

	"inventory/internal/mapping"
)

// Request carries what the oracle sees: the source headers, a bounded row
// sample for context, and the vocabulary of known target fields.
type Request struct {
	Headers []string
	// SampleRows maps header → cell value, one map per sampled row.
	SampleRows []map[string]string
	// Fields are the selectable existing field names.
	Fields []string
}

// Suggestion is a proposed mapping plus a confidence label and free-text
// notes for the operator.
type Suggestion struct {
	Mapping    mapping.Mapping
	Confidence string
	Notes      string
}

// Oracle produces mapping suggestions.
//
// Contract:
//   - Returning (nil, nil) means "no suggestion"; the caller keeps the
//     heuristic default.
//   - Errors are advisory: callers log and fall back, they never surface
//     oracle failures to the operator.
//   - Implementations must respect ctx cancellation and deadlines.
type Oracle interface {
	SuggestMapping(ctx context.Context, req Request) (*Suggestion, error)
}

// Noop is the null oracle used when assisted mapping is unconfigured.
// It never suggests anything, so the resolver needs no "is it configured"
// branch.
type Noop struct{}

// SuggestMapping implements Oracle.
func (Noop) SuggestMapping(context.Context, Request) (*Suggestion, error) {
	return nil, nil
}

var _ Oracle = Noop{}
