// Package corrections persists user corrections as an append-only log.
package corrections

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"ledgerlens/internal/config"
	"ledgerlens/internal/domain"
	"ledgerlens/internal/port"
	"ledgerlens/internal/repository/postgres"
	"ledgerlens/internal/taxonomy"
)

// Store is a CorrectionStore that owns resources released by Close.
type Store interface {
	port.CorrectionStore
	io.Closer
}

// Backend names accepted in configuration.
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Open creates the configured correction store. db is only used by the postgres backend.
func Open(cfg *config.CorrectionsConfig, registry *taxonomy.Registry, db *sqlx.DB) (Store, error) {
	switch cfg.Backend {
	case "", BackendFile:
		return NewFileStore(cfg.Path, registry)
	case BackendSQLite:
		return NewSQLiteStore(cfg.Path, registry)
	case BackendPostgres:
		if db == nil {
			return nil, fmt.Errorf("%w: postgres correction store requires db.enabled", domain.ErrConfiguration)
		}
		return nopCloser{postgres.NewCorrectionRepo(db, registry)}, nil
	default:
		return nil, fmt.Errorf("%w: unknown corrections backend %q", domain.ErrConfiguration, cfg.Backend)
	}
}

type nopCloser struct {
	port.CorrectionStore
}

func (nopCloser) Close() error { return nil }

// prepare checks the category against the registry and fills id and timestamp.
func prepare(c *domain.Correction, registry *taxonomy.Registry) error {
	if !registry.Contains(string(c.CorrectCategory)) {
		return fmt.Errorf("%w: %q", domain.ErrInvalidCategory, c.CorrectCategory)
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.SubmittedAt.IsZero() {
		c.SubmittedAt = time.Now().UTC()
	}
	return nil
}

// count is shared by stores without a cheaper count query.
func count(ctx context.Context, s port.CorrectionStore) (int, error) {
	all, err := s.ReadAll(ctx)
	if err != nil {
		return 0, err
	}
	return len(all), nil
}
