package mapping

import (
	"strings"

	"inventory/internal/config"
)

// Rule recognizes headers for one target field. Normalized headers are
// tested with Equals first, then Contains. Rules are tried in order and
// the first matching field wins.
type Rule struct {
	Field    string
	Equals   []string
	Contains []string
}

// builtinRules is the recognition table for the well-known equipment
// registry fields. A config field with no explicit match block picks up
// the entry for its name; unknown field names simply never match
// heuristically.
var builtinRules = map[string]Rule{
	"name": {
		Contains: []string{"name"},
		Equals:   []string{"equipment", "item", "device", "asset", "title"},
	},
	"serial_number": {
		Contains: []string{"serial"},
		Equals:   []string{"sn", "serialno", "serno"},
	},
	"manufacturer": {
		Contains: []string{"manufactur"},
		Equals:   []string{"vendor", "maker", "brand", "mfg", "mfr", "make"},
	},
	"model": {
		Contains: []string{"model"},
	},
	"category": {
		Contains: []string{"categor"},
		Equals:   []string{"type", "class", "group", "kind"},
	},
	"location": {
		Contains: []string{"location"},
		Equals:   []string{"room", "site", "place", "building", "floor"},
	},
	"status": {
		Equals: []string{"status", "state", "condition"},
	},
	"purchase_date": {
		Contains: []string{"purchase"},
		Equals:   []string{"bought", "acquired", "acquisitiondate", "dateacquired"},
	},
	"price": {
		Contains: []string{"price"},
		Equals:   []string{"cost", "value", "amount"},
	},
	"notes": {
		Contains: []string{"note", "comment", "remark"},
		Equals:   []string{"description", "desc", "info"},
	},
}

// Rules assembles the ordered rule table for a target vocabulary.
// Field order in the config is match precedence.
func Rules(fields []config.Field) []Rule {
	out := make([]Rule, 0, len(fields))
	for _, f := range fields {
		if f.Match != nil {
			out = append(out, Rule{Field: f.Name, Equals: f.Match.Equals, Contains: f.Match.Contains})
			continue
		}
		if r, ok := builtinRules[f.Name]; ok {
			r.Field = f.Name
			out = append(out, r)
			continue
		}
		// Unknown field with no match block: recognized only when a
		// header normalizes to exactly the field name.
		out = append(out, Rule{Field: f.Name, Equals: []string{normalizeHeader(f.Name)}})
	}
	return out
}

// Heuristic derives a best-effort mapping for headers against rules.
//
// The function is pure, total, and deterministic: it needs no sample rows,
// never fails, and the same headers always produce the same mapping.
// A header matching no rule becomes a NewColumn target.
func Heuristic(headers []string, rules []Rule) Mapping {
	m := make(Mapping, len(headers))
	for _, h := range headers {
		m[h] = classify(h, rules)
	}
	return m
}

func classify(header string, rules []Rule) Target {
	n := normalizeHeader(header)
	for _, r := range rules {
		for _, eq := range r.Equals {
			if n == eq {
				return ToField(r.Field)
			}
		}
		for _, sub := range r.Contains {
			if sub != "" && strings.Contains(n, sub) {
				return ToField(r.Field)
			}
		}
	}
	return ToNewColumn(header)
}

// normalizeHeader lower-cases and strips separator characters so that
// "Serial_No", "serial-no" and "Serial No." all compare equal.
func normalizeHeader(h string) string {
	var b strings.Builder
	b.Grow(len(h))
	for _, r := range strings.ToLower(h) {
		switch r {
		case '_', '-', ' ', '\t', '/', '.', '#', ':', '(', ')':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
