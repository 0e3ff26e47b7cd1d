// Package duck wraps an embedded DuckDB session used for file format
// plumbing: reading raw registry exports (xlsx, csv, parquet) into
// frames and writing normalized frames back out as parquet or csv,
// locally or on S3 via the httpfs extension.
package duck

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"
)

// DB is an embedded DuckDB session with the extensions needed for
// registry export handling loaded.
type DB struct {
	log *slog.Logger
	db  *sql.DB
}

// Open starts an in-memory DuckDB session and loads the excel
// extension. When s3Config is non-nil the httpfs and aws extensions
// are loaded too and an S3 secret is created so s3:// paths work in
// read and COPY statements.
func Open(ctx context.Context, log *slog.Logger, s3Config *S3Config) (*DB, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	extensions := []string{"excel"}
	if s3Config != nil {
		extensions = append(extensions, "httpfs", "aws")
	}
	for _, ext := range extensions {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("INSTALL '%s'", ext)); err != nil {
			return nil, fmt.Errorf("failed to install extension %s: %w", ext, err)
		}
		if _, err := db.ExecContext(ctx, fmt.Sprintf("LOAD '%s'", ext)); err != nil {
			return nil, fmt.Errorf("failed to load extension %s: %w", ext, err)
		}
	}

	if s3Config != nil {
		if err := createS3Secret(ctx, db, s3Config); err != nil {
			return nil, err
		}
		log.Info("configured S3 storage", "endpoint", s3Config.Endpoint, "region", s3Config.Region)
	}

	return &DB{log: log, db: db}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

func createS3Secret(ctx context.Context, db *sql.DB, cfg *S3Config) error {
	// Without explicit credentials, defer to the default AWS chain so
	// IAM roles and env vars keep working.
	secretSQL := "CREATE SECRET IF NOT EXISTS s3_secret (TYPE s3"
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		secretSQL += fmt.Sprintf(", KEY_ID '%s'", strings.ReplaceAll(cfg.AccessKeyID, "'", "''"))
		secretSQL += fmt.Sprintf(", SECRET '%s'", strings.ReplaceAll(cfg.SecretAccessKey, "'", "''"))
	} else {
		secretSQL += ", PROVIDER credential_chain"
	}
	if cfg.Endpoint != "" {
		// DuckDB's S3 secret ENDPOINT expects host:port, not a URL.
		endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "http://"), "https://")
		secretSQL += fmt.Sprintf(", ENDPOINT '%s'", endpoint)
	}
	if cfg.Region != "" {
		secretSQL += fmt.Sprintf(", REGION '%s'", cfg.Region)
	}
	urlStyle := cfg.URLStyle
	if urlStyle == "" {
		urlStyle = "path"
	}
	secretSQL += fmt.Sprintf(", URL_STYLE '%s'", urlStyle)
	secretSQL += fmt.Sprintf(", USE_SSL %t", cfg.UseSSL)
	secretSQL += ")"

	if _, err := db.ExecContext(ctx, secretSQL); err != nil {
		return fmt.Errorf("failed to create S3 secret: %w", err)
	}
	return nil
}
