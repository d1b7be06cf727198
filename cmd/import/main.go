package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"inventory/internal/assist"
	"inventory/internal/config"
	"inventory/internal/mapping"
	"inventory/internal/metrics"
	"inventory/internal/metrics/datadog"
	"inventory/internal/pipeline"
	"inventory/internal/session"
	"inventory/internal/storage"

	// register all backends with the storage factory.
	// config specifies which to use but we need to build in support for all of them.
	_ "inventory/internal/storage/all"
)

// main is the entry point for the import binary. It loads the pipeline
// config, optionally initializes a metrics backend, and runs one
// preview/execute cycle against the configured registry.
func main() {
	var (
		cfgPath           string
		filePath          string
		mappingPath       string
		actor             string
		skipDuplicates    bool
		dryRun            bool
		validate          bool
		metricsBackendFlg string
	)

	flag.StringVar(&cfgPath, "config", "configs/import.json", "import config JSON path")
	flag.StringVar(&filePath, "file", "", "spreadsheet or CSV file to import")
	flag.StringVar(&mappingPath, "mapping", "", "JSON file with an edited header→target mapping (default: accept the proposal)")
	flag.StringVar(&actor, "actor", "cli", "acting user reference stamped on imported rows")
	flag.BoolVar(&skipDuplicates, "skip-duplicates", false, "skip rows whose unique field value already exists")
	flag.BoolVar(&dryRun, "dry-run", false, "preview only: print the mapping proposal and exit")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend to use (datadog, none; default $METRICS_BACKEND)")
	flag.Parse()

	f, err := os.Open(cfgPath)
	if err != nil {
		fatalf("open config: %v", err)
	}

	var cfg config.Import
	err = json.NewDecoder(f).Decode(&cfg)
	f.Close()
	if err != nil {
		fatalf("decode config: %v", err)
	}

	issues := config.ValidateImport(cfg)
	hasError := false
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		log.Printf("Configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}
	if validate {
		log.Printf("Configuration is valid: %v", cfgPath)
		os.Exit(0)
	}

	if filePath == "" {
		fatalf("-file is required")
	}

	ctx := context.Background()

	// Decide metrics backend: flag → env → default.
	backendName := metricsBackendFlg
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	if backendName == "datadog" {
		jobName := cfg.Job
		if jobName == "" {
			jobName = "import"
		}
		b, err := datadog.NewBackend(ctx, datadog.Options{
			JobName: jobName,
			Tags:    datadog.ParseTagsCSV(os.Getenv("DD_TAGS")),
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
		} else {
			metrics.SetBackend(b)
			defer func() {
				if err := b.Close(); err != nil {
					log.Printf("metrics: close error: %v", err)
				}
			}()
		}
	}

	reg, err := storage.New(ctx, storage.Config{
		Kind:  cfg.Storage.Kind,
		DSN:   os.ExpandEnv(cfg.Storage.DSN),
		Table: cfg.Target.Table,
	})
	if err != nil {
		fatalf("storage: %v", err)
	}
	defer reg.Close()

	store := session.NewStore(time.Duration(cfg.Session.TTLSeconds) * time.Second)
	defer store.Close()

	var oracle assist.Oracle
	if cfg.Assist != nil {
		oracle = assist.NewOpenAIOracle(cfg.Assist.Model, time.Duration(cfg.Assist.TimeoutSeconds)*time.Second)
	}

	p := pipeline.New(cfg, reg, store, oracle, log.Default())

	data, err := os.ReadFile(filePath)
	if err != nil {
		fatalf("read file: %v", err)
	}

	prev, err := p.Preview(ctx, pipeline.Upload{Filename: filepath.Base(filePath), Data: data})
	if err != nil {
		fatalf("preview: %v", err)
	}
	log.Printf("preview: session=%s headers=%d rows=%d", prev.SessionID, len(prev.Headers), prev.TotalRows)

	if dryRun {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(prev.Proposal); err != nil {
			fatalf("encode proposal: %v", err)
		}
		p.Cancel(prev.SessionID)
		return
	}

	m := prev.Proposal.Mapping()
	if mappingPath != "" {
		mf, err := os.ReadFile(mappingPath)
		if err != nil {
			fatalf("read mapping: %v", err)
		}
		var edited mapping.Mapping
		if err := json.Unmarshal(mf, &edited); err != nil {
			fatalf("decode mapping: %v", err)
		}
		m = edited
	}

	res, err := p.Execute(ctx, pipeline.ExecuteRequest{
		SessionID:      prev.SessionID,
		Mapping:        m,
		SkipDuplicates: skipDuplicates,
		Actor:          actor,
	})
	if err != nil {
		fatalf("execute: %v", err)
	}

	log.Printf("import: imported=%d skipped=%d columns_created=%v", res.Imported, res.Skipped, res.ColumnsCreated)
	for _, re := range res.Errors {
		log.Printf("import: row %d: %s", re.Row, re.Message)
	}
	if res.Skipped > 0 {
		os.Exit(2)
	}
}

func fatalf(format string, v ...any) {
	log.Printf(format, v...)
	os.Exit(1)
}
