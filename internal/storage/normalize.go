package storage

import (
	"fmt"
	"strings"
)

// NormalizeValue converts a cell value to the canonical form used for
// duplicate detection: trimmed and lower-cased.
//
// Backends must not assume a particular underlying type for scanned values;
// this helper keeps the duplicate set consistent across backends and with
// values accepted earlier in the same batch.
func NormalizeValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.ToLower(strings.TrimSpace(t))
	case []byte:
		return strings.ToLower(strings.TrimSpace(string(t)))
	default:
		return strings.ToLower(strings.TrimSpace(fmt.Sprint(v)))
	}
}
