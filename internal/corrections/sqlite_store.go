package corrections

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"ledgerlens/internal/domain"
	"ledgerlens/internal/taxonomy"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore keeps corrections in an insert-only SQLite table.
type SQLiteStore struct {
	db       *sqlx.DB
	registry *taxonomy.Registry
}

type correctionRow struct {
	ID              string         `db:"id"`
	Description     string         `db:"description"`
	MerchantName    string         `db:"merchant_name"`
	Amount          sql.NullString `db:"amount"`
	CorrectCategory string         `db:"correct_category"`
	SubmittedAt     time.Time      `db:"submitted_at"`
}

// NewSQLiteStore opens the database at path and applies the embedded migrations.
func NewSQLiteStore(path string, registry *taxonomy.Registry) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: corrections.path is empty", domain.ErrConfiguration)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating corrections directory: %w", err)
	}
	if err := runSQLiteMigrations(path); err != nil {
		return nil, err
	}
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	// A single writer keeps appends serialized.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging sqlite database: %w", err)
	}
	return &SQLiteStore{db: db, registry: registry}, nil
}

func runSQLiteMigrations(path string) error {
	migrateDB, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open migration database: %w", err)
	}
	defer func() { _ = migrateDB.Close() }()

	driver, err := sqlite.WithInstance(migrateDB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Record(ctx context.Context, c *domain.Correction) error {
	if err := prepare(c, s.registry); err != nil {
		return err
	}
	var amount sql.NullString
	if c.OriginalInput.Amount != nil {
		amount = sql.NullString{String: c.OriginalInput.Amount.String(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO corrections (id, description, merchant_name, amount, correct_category, submitted_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID.String(), c.OriginalInput.Description, c.OriginalInput.MerchantName, amount,
		string(c.CorrectCategory), c.SubmittedAt)
	if err != nil {
		return fmt.Errorf("sqliteStore.Record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ReadAll(ctx context.Context) ([]domain.Correction, error) {
	var rows []correctionRow
	if err := s.db.SelectContext(ctx, &rows,
		"SELECT id, description, merchant_name, amount, correct_category, submitted_at FROM corrections ORDER BY rowid"); err != nil {
		return nil, fmt.Errorf("sqliteStore.ReadAll: %w", err)
	}
	out := make([]domain.Correction, 0, len(rows))
	for _, r := range rows {
		c, err := r.toDomain()
		if err != nil {
			return nil, fmt.Errorf("sqliteStore.ReadAll: row %s: %w", r.ID, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM corrections"); err != nil {
		return 0, fmt.Errorf("sqliteStore.Count: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (r correctionRow) toDomain() (domain.Correction, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return domain.Correction{}, err
	}
	c := domain.Correction{
		ID: id,
		OriginalInput: domain.CategorizationInput{
			Description:  r.Description,
			MerchantName: r.MerchantName,
		},
		CorrectCategory: domain.Category(r.CorrectCategory),
		SubmittedAt:     r.SubmittedAt.UTC(),
	}
	if r.Amount.Valid {
		amt, err := decimal.NewFromString(r.Amount.String)
		if err != nil {
			return domain.Correction{}, err
		}
		c.OriginalInput.Amount = &amt
	}
	return c, nil
}
