package config

// Options is a loosely-typed option bag decoded straight from JSON.
//
// Parser and mapper sections accept tool-specific knobs that the core
// config structs should not have to enumerate. Accessors return the zero
// value (or the provided default) when a key is absent or has the wrong
// dynamic type, so callers never need to branch on presence.
type Options map[string]any

// Bool returns the boolean at key, or def when absent/mistyped.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the integer at key, or def when absent/mistyped.
// JSON numbers decode as float64; both int and float64 are accepted.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		}
	}
	return def
}

// String returns the string at key, or def when absent/mistyped.
func (o Options) String(key string, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Rune returns the first rune of the string at key, or def when
// absent/empty. Used for CSV delimiter overrides.
func (o Options) Rune(key string, def rune) rune {
	s := o.String(key, "")
	if s == "" {
		return def
	}
	return []rune(s)[0]
}

// StringMap returns the map at key as map[string]string.
// Non-string values are skipped. Never returns nil.
func (o Options) StringMap(key string) map[string]string {
	res := make(map[string]string)
	raw, ok := o[key]
	if !ok {
		return res
	}
	switch m := raw.(type) {
	case map[string]string:
		for k, v := range m {
			res[k] = v
		}
	case map[string]any:
		for k, v := range m {
			if s, ok := v.(string); ok {
				res[k] = s
			}
		}
	}
	return res
}

// Any returns the raw value at key, or nil.
func (o Options) Any(key string) any {
	return o[key]
}
