package snapshot

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/gatherhub/eventdir/internal/database"
	apperrors "github.com/gatherhub/eventdir/internal/errors"
	"github.com/gatherhub/eventdir/internal/models"
)

// PostgresBackend persists one row per group plus a single diagnostics
// row, all written inside one transaction boundary per Save so a loaded
// snapshot is never a mix of two runs.
type PostgresBackend struct {
	db *database.DB
}

// NewPostgresBackend creates the backend and ensures its schema.
func NewPostgresBackend(ctx context.Context, db *database.DB) (*PostgresBackend, error) {
	b := &PostgresBackend{db: db}
	if err := b.ensureSchema(ctx); err != nil {
		return nil, apperrors.DatabaseError{Operation: "ensure schema", Err: err}
	}
	return b, nil
}

func (b *PostgresBackend) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS group_snapshots (
			urlname TEXT PRIMARY KEY,
			data JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS aggregation_diagnostics (
			id INT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
			data JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, stmt := range stmts {
		if err := b.db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Save replaces the persisted snapshot with the given one. The delete
// and all row writes share one transaction, so a crash mid-save never
// leaves a partial snapshot behind.
func (b *PostgresBackend) Save(ctx context.Context, snap *Snapshot) error {
	err := b.db.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM group_snapshots`); err != nil {
			return fmt.Errorf("clear groups: %w", err)
		}

		for urlname, group := range snap.Data {
			payload, err := json.Marshal(group)
			if err != nil {
				return fmt.Errorf("marshal group %s: %w", urlname, err)
			}
			_, err = tx.Exec(ctx,
				`INSERT INTO group_snapshots (urlname, data, updated_at) VALUES ($1, $2, now())`,
				urlname, payload,
			)
			if err != nil {
				return fmt.Errorf("insert group %s: %w", urlname, err)
			}
		}

		diagPayload, err := json.Marshal(snap.Diagnostics)
		if err != nil {
			return fmt.Errorf("marshal diagnostics: %w", err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO aggregation_diagnostics (id, data, updated_at)
			 VALUES (1, $1, now())
			 ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
			diagPayload,
		)
		if err != nil {
			return fmt.Errorf("upsert diagnostics: %w", err)
		}
		return nil
	})
	if err != nil {
		return apperrors.DatabaseError{Operation: "save snapshot", Err: err}
	}
	return nil
}

// Load reads the persisted snapshot; (nil, nil) when no rows exist.
func (b *PostgresBackend) Load(ctx context.Context) (*Snapshot, error) {
	data := models.AggregatedData{}
	err := b.db.QueryRows(ctx, `SELECT urlname, data FROM group_snapshots`, func(rows pgx.Rows) error {
		return collectGroups(rows, data)
	})
	if err != nil {
		return nil, apperrors.DatabaseError{Operation: "load snapshot", Err: err}
	}
	if len(data) == 0 {
		return nil, nil
	}

	snap := &Snapshot{Data: data}

	var diagPayload []byte
	row := b.db.QueryRow(ctx, `SELECT data FROM aggregation_diagnostics WHERE id = 1`)
	if row != nil {
		if err := row.Scan(&diagPayload); err == nil {
			var diag models.Diagnostics
			if err := json.Unmarshal(diagPayload, &diag); err == nil {
				snap.Diagnostics = diag
			}
		}
	}

	return snap, nil
}

// collectGroups decodes group rows into data while the result stream is
// still live.
func collectGroups(rows pgx.Rows, data models.AggregatedData) error {
	for rows.Next() {
		var urlname string
		var payload []byte
		if err := rows.Scan(&urlname, &payload); err != nil {
			return fmt.Errorf("scan group: %w", err)
		}
		var group models.Group
		if err := json.Unmarshal(payload, &group); err != nil {
			return fmt.Errorf("unmarshal group %s: %w", urlname, err)
		}
		data[urlname] = group
	}
	return nil
}
