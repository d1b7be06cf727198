package mapping

import "inventory/internal/config"

// FieldOption is one selectable existing field shown to the operator.
type FieldOption struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

// ProposedColumn pairs one source header with its proposed target.
type ProposedColumn struct {
	Header string `json:"header"`
	Target Target `json:"target"`
}

// Proposal is the payload shown to the operator for confirmation/edits:
// per-header proposed targets plus the full vocabulary of selectable
// fields. Confidence and Notes are populated only when the assisted
// mapper supplied the default.
type Proposal struct {
	Columns    []ProposedColumn `json:"columns"`
	Fields     []FieldOption    `json:"fields"`
	Confidence string           `json:"confidence,omitempty"`
	Notes      string           `json:"notes,omitempty"`
}

// Mapping flattens the proposal back into a Mapping, e.g. when the
// operator accepts the defaults unmodified.
func (p *Proposal) Mapping() Mapping {
	m := make(Mapping, len(p.Columns))
	for _, c := range p.Columns {
		m[c.Header] = c.Target
	}
	return m
}

// Resolve combines the default mapping (assisted when usable, else
// heuristic) with the target-field vocabulary into the operator-facing
// proposal. Pure transform: no I/O, headers keep their file order.
//
// A header missing from def (an assisted mapper may omit some) falls back
// to a NewColumn target so every header always has a proposal.
func Resolve(headers []string, def Mapping, fields []config.Field, confidence, notes string) *Proposal {
	p := &Proposal{
		Columns:    make([]ProposedColumn, 0, len(headers)),
		Fields:     make([]FieldOption, 0, len(fields)),
		Confidence: confidence,
		Notes:      notes,
	}

	for _, h := range headers {
		t, ok := def[h]
		if !ok {
			t = ToNewColumn(h)
		}
		p.Columns = append(p.Columns, ProposedColumn{Header: h, Target: t})
	}

	for _, f := range fields {
		label := f.Label
		if label == "" {
			label = f.Name
		}
		p.Fields = append(p.Fields, FieldOption{Name: f.Name, Label: label})
	}

	return p
}
