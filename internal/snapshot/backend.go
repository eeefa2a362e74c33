package snapshot

import (
	"context"

	"github.com/gatherhub/eventdir/config"
	"github.com/gatherhub/eventdir/internal/database"
	"github.com/gatherhub/eventdir/internal/logger"
)

// Backend persists snapshots so last-known-good data survives restarts.
// Load returns (nil, nil) when nothing has been persisted yet.
type Backend interface {
	Save(ctx context.Context, snap *Snapshot) error
	Load(ctx context.Context) (*Snapshot, error)
}

// NewBackend selects a durable backend: Postgres when a database is
// configured, Redis when a Redis URL is set, otherwise none (memory only).
func NewBackend(ctx context.Context, db *database.DB, cfg *config.Config) (Backend, error) {
	if db != nil && db.IsConfigured() {
		return NewPostgresBackend(ctx, db)
	}
	if cfg.Redis.URL != "" {
		return NewRedisBackend(cfg.Redis.URL)
	}
	logger.Info("No snapshot backend configured; aggregated data is memory only")
	return nil, nil
}
