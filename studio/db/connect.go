// Package db opens the embedded libsql database used by the message mirror.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	_ "github.com/tursodatabase/go-libsql"
)

// LibSQLEmbeddedConfig holds configuration for embedded libsql connections
type LibSQLEmbeddedConfig struct {
	DatabasePath string // Path to .db file
	Logger       zerolog.Logger
}

// ConnectToDB opens (creating if needed) the database at path.
func ConnectToDB(ctx context.Context, path string, logger zerolog.Logger) (*sql.DB, error) {
	return ConnectToDBWithConfig(ctx, &LibSQLEmbeddedConfig{DatabasePath: path, Logger: logger})
}

func ConnectToDBWithConfig(ctx context.Context, config *LibSQLEmbeddedConfig) (*sql.DB, error) {
	dir := filepath.Dir(config.DatabasePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create database directory %s: %w", dir, err)
	}

	if _, err := os.Stat(config.DatabasePath); os.IsNotExist(err) {
		config.Logger.Info().Str("path", config.DatabasePath).Msg("database not found, creating a new one")
		file, err := os.Create(config.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("could not create db at path %s: %w", config.DatabasePath, err)
		}
		file.Close()
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL", config.DatabasePath)
	config.Logger.Info().Str("path", config.DatabasePath).Msg("connecting to embedded libsql")

	db, err := sql.Open("libsql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open libsql connection: %w", err)
	}
	// single writer; turn goroutines queue on the pool
	db.SetMaxOpenConns(1)

	if err := verifyEmbeddedLibSQL(ctx, db, config.Logger); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// verifyEmbeddedLibSQL checks connectivity and tests JSON1, which the
// mirror relies on for ad-hoc queries over directive_json.
func verifyEmbeddedLibSQL(ctx context.Context, db *sql.DB, logger zerolog.Logger) error {
	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("basic connectivity test failed: %w", err)
	}
	if result != 1 {
		return fmt.Errorf("basic connectivity test failed: unexpected result %d", result)
	}

	var jsonResult string
	if err := db.QueryRowContext(ctx, `SELECT json_extract('{"style":"landscape"}', '$.style')`).Scan(&jsonResult); err != nil {
		logger.Warn().Err(err).Msg("JSON1 check failed")
	} else if jsonResult != "landscape" {
		logger.Warn().Str("result", jsonResult).Msg("JSON1 check returned unexpected result")
	}
	return nil
}
