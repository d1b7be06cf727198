// Package pipeline orchestrates the three-phase spreadsheet import:
// Preview parses an upload and proposes a column mapping, Execute applies
// the operator-confirmed mapping, Cancel discards the session.
//
// Preview and Execute/Cancel are bridged by an ephemeral server-side
// session; the proposal returned by Preview is advisory and only the
// mapping submitted on Execute is ever acted upon.
package pipeline

import (
	"context"
	"log"
	"time"

	"inventory/internal/assist"
	"inventory/internal/config"
	"inventory/internal/importer"
	"inventory/internal/mapping"
	"inventory/internal/metrics"
	"inventory/internal/parser"
	"inventory/internal/schema"
	"inventory/internal/session"
	"inventory/internal/storage"
)

// Sentinel errors of the external contract, re-exported so transports
// need only this package.
var (
	ErrMalformedFile     = parser.ErrMalformedFile
	ErrUnsupportedFormat = parser.ErrUnsupportedFormat
	ErrSessionNotFound   = session.ErrSessionNotFound
)

// Logger is the minimal logging interface used by the pipeline.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

// Pipeline wires the parser, mappers, session store, schema evolver and
// row importer against one destination registry.
type Pipeline struct {
	cfg      config.Import
	registry storage.Registry
	store    *session.Store
	oracle   assist.Oracle
	logger   Logger

	rules []mapping.Rule
}

// New builds a Pipeline. A nil oracle disables assisted mapping via the
// null object; a nil logger discards.
func New(cfg config.Import, registry storage.Registry, store *session.Store, oracle assist.Oracle, logger Logger) *Pipeline {
	if oracle == nil {
		oracle = assist.Noop{}
	}
	if logger == nil {
		logger = log.New(discardWriter{}, "", 0)
	}
	return &Pipeline{
		cfg:      cfg,
		registry: registry,
		store:    store,
		oracle:   oracle,
		logger:   logger,
		rules:    mapping.Rules(cfg.Target.Fields),
	}
}

// Upload is one raw file received from the operator.
type Upload struct {
	Filename string
	Data     []byte
}

// PreviewResult is returned to the operator for mapping confirmation.
type PreviewResult struct {
	SessionID  string              `json:"session_id"`
	Headers    []string            `json:"headers"`
	TotalRows  int                 `json:"total_rows"`
	SampleRows []map[string]string `json:"sample_rows"`
	Proposal   *mapping.Proposal   `json:"proposal"`
}

// ExecuteRequest applies an operator-edited mapping to a held session.
type ExecuteRequest struct {
	SessionID      string          `json:"session_id"`
	Mapping        mapping.Mapping `json:"mapping"`
	SkipDuplicates bool            `json:"skip_duplicates"`

	// Actor is the acting user reference, stamped on imported rows.
	Actor string `json:"actor,omitempty"`
}

// Preview parses the upload, derives the default mapping proposal, and
// opens a session.
//
// Errors:
//   - ErrMalformedFile or ErrUnsupportedFormat; no session is created.
//
// Assisted-mapper failures never surface: the heuristic proposal is the
// fallback and the call succeeds either way.
func (p *Pipeline) Preview(ctx context.Context, up Upload) (*PreviewResult, error) {
	parseStart := time.Now()
	grid, err := parser.Parse(up.Data, parser.Options{
		Filename: up.Filename,
		Format:   p.cfg.Parser.Format,
		Comma:    p.cfg.Parser.Options.Rune("comma", 0),
	})
	if err != nil {
		return nil, err
	}
	metrics.ObserveStage("parse", time.Since(parseStart))

	mapStart := time.Now()
	sample := sampleRows(grid, p.sampleLimit())

	def := mapping.Heuristic(grid.Headers, p.rules)
	confidence, notes := "", ""

	if sug := p.suggest(ctx, grid.Headers, sample); sug != nil {
		// A usable oracle suggestion replaces the heuristic default
		// wholesale; headers the oracle skipped become new columns.
		replaced := make(mapping.Mapping, len(grid.Headers))
		for _, h := range grid.Headers {
			if t, ok := sug.Mapping[h]; ok {
				replaced[h] = t
			} else {
				replaced[h] = mapping.ToNewColumn(h)
			}
		}
		def = replaced
		confidence, notes = sug.Confidence, sug.Notes
	}

	proposal := mapping.Resolve(grid.Headers, def, p.cfg.Target.Fields, confidence, notes)
	metrics.ObserveStage("map", time.Since(mapStart))

	return &PreviewResult{
		SessionID:  p.store.Create(grid),
		Headers:    grid.Headers,
		TotalRows:  len(grid.Rows),
		SampleRows: sample,
		Proposal:   proposal,
	}, nil
}

// Execute consumes the session, evolves the schema for the confirmed
// mapping, and imports the rows.
//
// Errors:
//   - ErrSessionNotFound when the session is unknown, already consumed,
//     or expired.
//
// Schema changes applied before a row failure are not rolled back; the
// import is not atomic by design.
func (p *Pipeline) Execute(ctx context.Context, req ExecuteRequest) (*importer.Result, error) {
	grid, err := p.store.Consume(req.SessionID)
	if err != nil {
		return nil, err
	}

	m := p.pruneMapping(grid, req.Mapping)

	evolveStart := time.Now()
	ev := schema.NewEvolver(p.registry, p.cfg.Target.Reserved, p.cfg.Target.MaxIdentifierLen)
	ev.Logger = p.logger
	evo := ev.Evolve(ctx, grid.Headers, m)
	metrics.ObserveStage("evolve", time.Since(evolveStart))

	importStart := time.Now()
	im := &importer.Importer{
		Registry:          p.registry,
		Logger:            p.logger,
		NameField:         p.cfg.Target.NameField,
		NameFallbackField: p.cfg.Target.NameFallbackField,
		UniqueField:       p.cfg.Target.UniqueField,
		Actor:             req.Actor,
	}
	res, err := im.Run(ctx, importer.Request{
		Grid:           grid,
		Resolved:       evo.Resolved,
		ColumnsCreated: evo.ColumnsCreated,
		SkipDuplicates: req.SkipDuplicates,
	})
	if err != nil {
		return nil, err
	}
	metrics.ObserveStage("import", time.Since(importStart))

	return res, nil
}

// Cancel discards the session. Always succeeds, idempotently: unknown,
// consumed and already-cancelled sessions are no-ops.
func (p *Pipeline) Cancel(sessionID string) {
	p.store.Discard(sessionID)
}

// suggest asks the oracle and swallows every failure.
func (p *Pipeline) suggest(ctx context.Context, headers []string, sample []map[string]string) *assist.Suggestion {
	fields := make([]string, 0, len(p.cfg.Target.Fields))
	for _, f := range p.cfg.Target.Fields {
		fields = append(fields, f.Name)
	}

	sug, err := p.oracle.SuggestMapping(ctx, assist.Request{
		Headers:    headers,
		SampleRows: sample,
		Fields:     fields,
	})
	if err != nil {
		p.logger.Printf("assist: suggestion unavailable: %v", err)
		return nil
	}
	if sug == nil || len(sug.Mapping) == 0 {
		return nil
	}
	return sug
}

// pruneMapping drops entries the pipeline cannot act on: headers not in
// this session, and existing-field targets outside the vocabulary.
// Dropped entries are logged, never fatal; the operator sees their effect
// in the result counts.
func (p *Pipeline) pruneMapping(grid *parser.Grid, m mapping.Mapping) mapping.Mapping {
	known := make(map[string]bool, len(p.cfg.Target.Fields))
	for _, f := range p.cfg.Target.Fields {
		known[f.Name] = true
	}

	out := make(mapping.Mapping, len(m))
	for h, t := range m {
		if _, ok := grid.HeaderIndex[h]; !ok {
			p.logger.Printf("execute: mapping references unknown header %q, dropped", h)
			continue
		}
		switch t.Kind {
		case mapping.ExistingField:
			if !known[t.Field] {
				p.logger.Printf("execute: header %q maps to unknown field %q, dropped", h, t.Field)
				continue
			}
		case mapping.NewColumn:
		default:
			p.logger.Printf("execute: header %q has unknown target kind %q, dropped", h, t.Kind)
			continue
		}
		out[h] = t
	}
	return out
}

func (p *Pipeline) sampleLimit() int {
	if n := p.cfg.Session.MaxSampleRows; n > 0 {
		return n
	}
	return 10
}

// sampleRows keys the first few rows by header for the preview payload.
func sampleRows(grid *parser.Grid, limit int) []map[string]string {
	n := len(grid.Rows)
	if n > limit {
		n = limit
	}
	out := make([]map[string]string, 0, n)
	for _, row := range grid.Rows[:n] {
		rec := make(map[string]string, len(grid.Headers))
		for _, h := range grid.Headers {
			rec[h] = grid.Cell(row, h)
		}
		out = append(out, rec)
	}
	return out
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (n int, err error) { return len(p), nil }
