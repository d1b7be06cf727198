package config

import "fmt"

// Severity classifies a validation finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding with a JSON-ish path to the offending
// field, so operators can fix the config without reading source.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

// ValidateImport checks an Import config for problems that would fail at
// runtime or silently do the wrong thing. Errors make the config
// unusable; warnings are advisory.
func ValidateImport(c Import) []Issue {
	var issues []Issue

	errf := func(path, format string, v ...any) {
		issues = append(issues, Issue{SeverityError, path, fmt.Sprintf(format, v...)})
	}
	warnf := func(path, format string, v ...any) {
		issues = append(issues, Issue{SeverityWarning, path, fmt.Sprintf(format, v...)})
	}

	switch c.Storage.Kind {
	case "postgres", "sqlite", "mssql":
	case "":
		errf("storage.kind", "storage kind is required")
	default:
		errf("storage.kind", "unknown storage kind %q", c.Storage.Kind)
	}
	if c.Storage.DSN == "" {
		errf("storage.dsn", "DSN is required")
	}

	if c.Target.Table == "" {
		errf("target.table", "destination table is required")
	}
	if len(c.Target.Fields) == 0 {
		errf("target.fields", "at least one target field is required")
	}
	seen := make(map[string]bool, len(c.Target.Fields))
	known := make(map[string]bool, len(c.Target.Fields))
	for i, f := range c.Target.Fields {
		path := fmt.Sprintf("target.fields[%d]", i)
		if f.Name == "" {
			errf(path, "field name is required")
			continue
		}
		if seen[f.Name] {
			errf(path, "duplicate field %q", f.Name)
		}
		seen[f.Name] = true
		known[f.Name] = true
	}
	if c.Target.NameField == "" {
		errf("target.name_field", "name field is required")
	} else if !known[c.Target.NameField] {
		errf("target.name_field", "%q is not in target.fields", c.Target.NameField)
	}
	if f := c.Target.NameFallbackField; f != "" && !known[f] {
		errf("target.name_fallback_field", "%q is not in target.fields", f)
	}
	if f := c.Target.UniqueField; f != "" && !known[f] {
		errf("target.unique_field", "%q is not in target.fields", f)
	}
	if c.Target.UniqueField == "" {
		warnf("target.unique_field", "no unique field configured; skip_duplicates will have no effect")
	}

	switch c.Parser.Format {
	case "", "xlsx", "csv":
	default:
		errf("parser.format", "unknown format %q (use xlsx, csv, or omit to sniff)", c.Parser.Format)
	}

	if c.Assist != nil && c.Assist.TimeoutSeconds < 0 {
		errf("assist.timeout_seconds", "timeout must not be negative")
	}
	if c.Session.TTLSeconds < 0 {
		errf("session.ttl_seconds", "TTL must not be negative")
	}

	return issues
}
