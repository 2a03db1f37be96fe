//go:build sqlite

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"ruingen/internal/model"

	_ "modernc.org/sqlite"
)

const defaultStoreKind = "sqlite"

// Per-run payload tables. Every table is keyed by run id.
const (
	tableBest        = "best_blueprints"
	tableHistory     = "fitness_history"
	tableDiagnostics = "round_diagnostics"
	tableLineage     = "lineage"
)

type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func newSQLiteStore(path string) (Store, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	return NewSQLiteStore(path), nil
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run model.RunRecord) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	if run.ID == "" {
		return errors.New("run id is required")
	}

	payload, err := EncodeRun(run)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO runs (id, created_at_utc, schema_version, codec_version, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			created_at_utc = excluded.created_at_utc,
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			payload = excluded.payload
	`, run.ID, run.CreatedAtUTC, run.SchemaVersion, run.CodecVersion, payload)
	return err
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (model.RunRecord, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.RunRecord{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM runs WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RunRecord{}, false, nil
		}
		return model.RunRecord{}, false, err
	}

	run, err := DecodeRun(payload)
	if err != nil {
		return model.RunRecord{}, false, fmt.Errorf("decode run %s: %w", id, err)
	}
	return run, true, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context) ([]model.RunRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT id, payload FROM runs ORDER BY created_at_utc DESC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []model.RunRecord
	for rows.Next() {
		var (
			id      string
			payload []byte
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}
		run, err := DecodeRun(payload)
		if err != nil {
			return nil, fmt.Errorf("decode run %s: %w", id, err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

func (s *SQLiteStore) SaveBestBlueprint(ctx context.Context, runID string, bp model.BlueprintRecord) error {
	payload, err := EncodeBlueprint(bp)
	if err != nil {
		return err
	}
	return s.putPayload(ctx, tableBest, runID, payload)
}

func (s *SQLiteStore) GetBestBlueprint(ctx context.Context, runID string) (model.BlueprintRecord, bool, error) {
	payload, ok, err := s.getPayload(ctx, tableBest, runID)
	if err != nil || !ok {
		return model.BlueprintRecord{}, ok, err
	}
	bp, err := DecodeBlueprint(payload)
	if err != nil {
		return model.BlueprintRecord{}, false, fmt.Errorf("decode best blueprint %s: %w", runID, err)
	}
	return bp, true, nil
}

func (s *SQLiteStore) SaveFitnessHistory(ctx context.Context, runID string, history []int) error {
	payload, err := EncodeFitnessHistory(history)
	if err != nil {
		return err
	}
	return s.putPayload(ctx, tableHistory, runID, payload)
}

func (s *SQLiteStore) GetFitnessHistory(ctx context.Context, runID string) ([]int, bool, error) {
	payload, ok, err := s.getPayload(ctx, tableHistory, runID)
	if err != nil || !ok {
		return nil, ok, err
	}
	history, err := DecodeFitnessHistory(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode fitness history %s: %w", runID, err)
	}
	return history, true, nil
}

func (s *SQLiteStore) SaveRoundDiagnostics(ctx context.Context, runID string, diagnostics []model.RoundDiagnostics) error {
	payload, err := EncodeRoundDiagnostics(diagnostics)
	if err != nil {
		return err
	}
	return s.putPayload(ctx, tableDiagnostics, runID, payload)
}

func (s *SQLiteStore) GetRoundDiagnostics(ctx context.Context, runID string) ([]model.RoundDiagnostics, bool, error) {
	payload, ok, err := s.getPayload(ctx, tableDiagnostics, runID)
	if err != nil || !ok {
		return nil, ok, err
	}
	diagnostics, err := DecodeRoundDiagnostics(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode round diagnostics %s: %w", runID, err)
	}
	return diagnostics, true, nil
}

func (s *SQLiteStore) SaveLineage(ctx context.Context, runID string, lineage []model.LineageRecord) error {
	payload, err := EncodeLineage(lineage)
	if err != nil {
		return err
	}
	return s.putPayload(ctx, tableLineage, runID, payload)
}

func (s *SQLiteStore) GetLineage(ctx context.Context, runID string) ([]model.LineageRecord, bool, error) {
	payload, ok, err := s.getPayload(ctx, tableLineage, runID)
	if err != nil || !ok {
		return nil, ok, err
	}
	lineage, err := DecodeLineage(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode lineage %s: %w", runID, err)
	}
	return lineage, true, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errNotInitialized
	}
	return s.db, nil
}

// table is always one of the package constants above.
func (s *SQLiteStore) putPayload(ctx context.Context, table, runID string, payload []byte) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO `+table+` (run_id, payload)
		VALUES (?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			payload = excluded.payload
	`, runID, payload)
	return err
}

func (s *SQLiteStore) getPayload(ctx context.Context, table, runID string) ([]byte, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}
	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM `+table+` WHERE run_id = ?`, runID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return payload, true, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			created_at_utc TEXT NOT NULL,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS best_blueprints (
			run_id TEXT PRIMARY KEY,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS fitness_history (
			run_id TEXT PRIMARY KEY,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS round_diagnostics (
			run_id TEXT PRIMARY KEY,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS lineage (
			run_id TEXT PRIMARY KEY,
			payload BLOB NOT NULL
		);
	`)
	return err
}
