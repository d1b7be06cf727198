// Package config defines the JSON-decoded import pipeline configuration.
//
// The config describes the destination registry (storage backend, table,
// field vocabulary, reserved names) and tuning for the parser, the
// assisted mapper, and the session store. It deliberately avoids any
// behavior: packages consume these structs, they never mutate them.
package config

// Import is the root configuration for one import pipeline.
type Import struct {
	Job     string  `json:"job"`
	Storage Storage `json:"storage"`
	Target  Target  `json:"target"`
	Parser  Parser  `json:"parser"`
	Assist  *Assist `json:"assist,omitempty"`
	Session Session `json:"session"`
}

// Storage selects and configures the registry backend.
type Storage struct {
	// Kind is the backend name: "postgres" | "sqlite" | "mssql".
	Kind string `json:"kind"`
	DSN  string `json:"dsn"`
}

// Target describes the destination equipment table.
type Target struct {
	// Table is the destination table name, optionally schema-qualified.
	Table string `json:"table"`

	// Fields is the ordered vocabulary of pre-existing attributes an
	// operator may map a spreadsheet column onto. Order matters: the
	// heuristic mapper tests fields in declaration order and the first
	// match wins.
	Fields []Field `json:"fields"`

	// Reserved lists attribute names that can never be a mapping
	// destination (identity, audit, system columns). Merged with the
	// built-in reserved set.
	Reserved []string `json:"reserved,omitempty"`

	// NameField is the primary display attribute; every imported row
	// gets a non-empty value here, synthesized if necessary.
	NameField string `json:"name_field"`

	// NameFallbackField is consulted when NameField is unmapped or the
	// cell is empty.
	NameFallbackField string `json:"name_fallback_field,omitempty"`

	// UniqueField is the attribute used for duplicate detection when
	// skip_duplicates is requested on execute.
	UniqueField string `json:"unique_field,omitempty"`

	// MaxIdentifierLen truncates sanitized dynamic column names.
	// Zero means the backend default (63, the Postgres limit).
	MaxIdentifierLen int `json:"max_identifier_len,omitempty"`
}

// Field is one selectable target attribute.
type Field struct {
	Name  string `json:"name"`
	Label string `json:"label,omitempty"`

	// Match customizes header recognition for this field. When empty the
	// built-in synonym table for well-known field names applies.
	Match *Match `json:"match,omitempty"`
}

// Match is an ordered pair of predicates over normalized headers:
// Equals wins on exact match, Contains on substring match.
type Match struct {
	Equals   []string `json:"equals,omitempty"`
	Contains []string `json:"contains,omitempty"`
}

// Parser carries format-specific parse options.
type Parser struct {
	// Format forces a source format: "xlsx" | "csv". Empty means sniff.
	Format  string  `json:"format,omitempty"`
	Options Options `json:"options,omitempty"`
}

// Assist configures the optional mapping oracle. A nil Assist disables
// assisted mapping entirely; the heuristic proposal is used alone.
type Assist struct {
	Model          string `json:"model,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

// Session tunes the ephemeral session store.
type Session struct {
	// MaxSampleRows bounds the preview sample. Zero means 10.
	MaxSampleRows int `json:"max_sample_rows,omitempty"`

	// TTLSeconds enables the background reaper for abandoned sessions.
	// Zero disables expiry; sessions then live until consume or cancel.
	TTLSeconds int `json:"ttl_seconds,omitempty"`
}
