package history

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/lamassu-labs/trustwrapper-core/pkg/model"
)

// PostgresStore is a Store backed by a single table, upserted on every
// Record call so the ledger survives process restarts. Schema:
//
//	CREATE TABLE trustwrapper_model_history (
//	    model_id     TEXT PRIMARY KEY,
//	    passed_count BIGINT NOT NULL,
//	    total_count  BIGINT NOT NULL,
//	    updated_at   TIMESTAMPTZ NOT NULL
//	);
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgresStore opens a PostgresStore against dsn (a lib/pq connection
// string) and verifies connectivity.
func OpenPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Record implements Store.
func (s *PostgresStore) Record(ctx context.Context, modelID string, passed bool) error {
	var passedInc int
	if passed {
		passedInc = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trustwrapper_model_history (model_id, passed_count, total_count, updated_at)
		VALUES ($1, $2, 1, now())
		ON CONFLICT (model_id) DO UPDATE SET
			passed_count = trustwrapper_model_history.passed_count + $2,
			total_count  = trustwrapper_model_history.total_count + 1,
			updated_at   = now()
	`, modelID, passedInc)
	if err != nil {
		return fmt.Errorf("record history for %q: %w", modelID, err)
	}
	return nil
}

// Snapshot implements Store.
func (s *PostgresStore) Snapshot(ctx context.Context, modelID string) (model.HistorySnapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT passed_count, total_count, updated_at
		FROM trustwrapper_model_history
		WHERE model_id = $1
	`, modelID)

	var passedCount, totalCount int64
	var updatedAt sql.NullTime
	if err := row.Scan(&passedCount, &totalCount, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return model.HistorySnapshot{ModelID: modelID}, nil
		}
		return model.HistorySnapshot{}, fmt.Errorf("snapshot history for %q: %w", modelID, err)
	}

	if totalCount == 0 {
		return model.HistorySnapshot{ModelID: modelID}, nil
	}

	snap := model.HistorySnapshot{
		ModelID:     modelID,
		SuccessRate: float64(passedCount) / float64(totalCount),
		SampleSize:  uint64(totalCount),
	}
	if updatedAt.Valid {
		snap.UpdatedAt = updatedAt.Time
	}
	return snap, nil
}
