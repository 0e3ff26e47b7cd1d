// Command offsetsdb runs the registry normalization pipeline: it reads
// the raw registry downloads, normalizes them into the canonical
// credits and projects tables, validates the output against prior
// snapshots, and publishes parquet, csv, and zip artifacts.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	flag "github.com/spf13/pflag"

	"github.com/offsetsdb/offsetsdb/pkg/beneficiary"
	"github.com/offsetsdb/offsetsdb/pkg/catalog"
	"github.com/offsetsdb/offsetsdb/pkg/duck"
	"github.com/offsetsdb/offsetsdb/pkg/pipeline"
)

// Set by LDFLAGS.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	defaultInputDir    = "data/downloads"
	defaultCatalogBase = "data/catalog"
	defaultWorkers     = 4
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	verboseFlag := flag.Bool("verbose", false, "Enable verbose logging")
	showVersionFlag := flag.Bool("version", false, "Print version and exit")
	inputDirFlag := flag.String("input-dir", defaultInputDir, "Directory holding raw registry downloads, one subdirectory per registry")
	catalogBaseFlag := flag.String("catalog-base", defaultCatalogBase, "Snapshot root, a local directory or s3://bucket[/prefix] URI")
	termsPathFlag := flag.String("terms-path", "", "Path to the terms-of-access text packaged into archives (built-in text when empty)")
	workersFlag := flag.Int("workers", defaultWorkers, "Number of registries processed concurrently")
	beneficiaryBinaryFlag := flag.String("beneficiary-binary", "", "Path to the beneficiary harmonization binary (harmonization skipped when empty)")
	beneficiaryMappingFlag := flag.String("beneficiary-mapping", "", "Path to the beneficiary column mapping file")
	flag.Parse()

	if v := os.Getenv("OFFSETSDB_INPUT_DIR"); v != "" && !flag.CommandLine.Changed("input-dir") {
		*inputDirFlag = v
	}
	if v := os.Getenv("OFFSETSDB_CATALOG_BASE"); v != "" && !flag.CommandLine.Changed("catalog-base") {
		*catalogBaseFlag = v
	}
	if v := os.Getenv("OFFSETSDB_WORKERS"); v != "" && !flag.CommandLine.Changed("workers") {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid OFFSETSDB_WORKERS %q: %w", v, err)
		}
		*workersFlag = n
	}

	if *showVersionFlag {
		fmt.Printf("offsetsdb %s (commit %s, built %s)\n", version, commit, date)
		return nil
	}

	log := newLogger(*verboseFlag)
	log.Info("starting offsetsdb", "version", version, "commit", commit)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	s3Config := duck.LoadS3ConfigFromEnv()

	db, err := duck.Open(ctx, log, s3Config)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("failed to close database", "error", err)
		}
	}()

	cat, err := catalog.New(catalog.Config{
		Log:  log,
		DB:   db,
		Base: *catalogBaseFlag,
	})
	if err != nil {
		return fmt.Errorf("failed to create catalog: %w", err)
	}

	store, err := catalog.NewStore(ctx, log, s3Config)
	if err != nil {
		return fmt.Errorf("failed to create object store: %w", err)
	}
	if strings.HasPrefix(*catalogBaseFlag, "s3://") {
		if err := store.EnsureBucket(ctx, *catalogBaseFlag); err != nil {
			return fmt.Errorf("failed to ensure bucket for %s: %w", *catalogBaseFlag, err)
		}
	}

	var harmonizer *beneficiary.Harmonizer
	if *beneficiaryBinaryFlag != "" {
		harmonizer = beneficiary.New(log, *beneficiaryBinaryFlag, *beneficiaryMappingFlag)
	}

	runner, err := pipeline.New(pipeline.Config{
		Log:        log,
		DB:         db,
		Catalog:    cat,
		Store:      store,
		InputDir:   *inputDirFlag,
		TermsPath:  *termsPathFlag,
		Harmonizer: harmonizer,
		Workers:    *workersFlag,
	})
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	return runner.Run(ctx)
}

func newLogger(verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: logLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				t := a.Value.Time().UTC()
				a.Value = slog.StringValue(t.Format("2006-01-02T15:04:05.000Z"))
			}
			return a
		},
	}))
}
