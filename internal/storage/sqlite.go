// Package storage persists orchestration-layer artifacts: enriched
// dataset snapshots and the training-run ledger. The analytics core
// itself is persistence-free; this cache belongs to the caller.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/customer-lifecycle/internal/churn"
	"github.com/Veraticus/customer-lifecycle/internal/common"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements the service.Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite store instance.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("%w: dbPath is empty", common.ErrInvalidConfig)
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db, dbPath: dbPath}
	if err := store.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS snapshots (
		id TEXT PRIMARY KEY,
		dataset_hash TEXT NOT NULL,
		options TEXT NOT NULL,
		payload BLOB NOT NULL,
		created_at TIMESTAMP NOT NULL,
		UNIQUE(dataset_hash, options)
	);
	CREATE TABLE IF NOT EXISTS training_runs (
		id TEXT PRIMARY KEY,
		dataset_hash TEXT NOT NULL,
		model_kind TEXT NOT NULL,
		metrics TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_training_runs_dataset
		ON training_runs(dataset_hash, model_kind, created_at);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// SaveSnapshot stores an enriched dataset artifact keyed by dataset
// content hash and enrichment options, replacing any previous
// artifact for the same key.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, datasetHash, options string, payload []byte) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (id, dataset_hash, options, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(dataset_hash, options) DO UPDATE SET
			id = excluded.id,
			payload = excluded.payload,
			created_at = excluded.created_at`,
		id, datasetHash, options, payload, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("failed to save snapshot: %w", err)
	}
	return id, nil
}

// GetSnapshot returns the cached artifact for the key, or
// common.ErrNotFound.
func (s *SQLiteStore) GetSnapshot(ctx context.Context, datasetHash, options string) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT payload FROM snapshots WHERE dataset_hash = ? AND options = ?`,
		datasetHash, options).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return payload, nil
}

// SaveTrainingRun appends a training run to the ledger.
func (s *SQLiteStore) SaveTrainingRun(ctx context.Context, datasetHash string, metrics churn.Metrics) (string, error) {
	encoded, err := json.Marshal(metrics)
	if err != nil {
		return "", fmt.Errorf("failed to encode metrics: %w", err)
	}

	id := uuid.New().String()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO training_runs (id, dataset_hash, model_kind, metrics, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		id, datasetHash, string(metrics.ModelKind), string(encoded), time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("failed to save training run: %w", err)
	}
	return id, nil
}

// GetLatestTrainingRun returns the most recent run metrics for a
// dataset and model kind, or common.ErrNotFound.
func (s *SQLiteStore) GetLatestTrainingRun(ctx context.Context, datasetHash string, kind churn.Kind) (*churn.Metrics, error) {
	var encoded string
	err := s.db.QueryRowContext(ctx, `
		SELECT metrics FROM training_runs
		WHERE dataset_hash = ? AND model_kind = ?
		ORDER BY created_at DESC, id DESC LIMIT 1`,
		datasetHash, string(kind)).Scan(&encoded)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get training run: %w", err)
	}

	var metrics churn.Metrics
	if err := json.Unmarshal([]byte(encoded), &metrics); err != nil {
		return nil, fmt.Errorf("failed to decode metrics: %w", err)
	}
	return &metrics, nil
}
