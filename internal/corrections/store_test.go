package corrections_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerlens/internal/config"
	"ledgerlens/internal/corrections"
	"ledgerlens/internal/domain"
	"ledgerlens/internal/taxonomy"
)

func newRegistry(t *testing.T) *taxonomy.Registry {
	t.Helper()
	r, err := taxonomy.New([]string{"Food & Dining", "Groceries", "Transportation", "Other"}, "Other")
	require.NoError(t, err)
	return r
}

func openStores(t *testing.T) map[string]corrections.Store {
	t.Helper()
	dir := t.TempDir()
	reg := newRegistry(t)

	file, err := corrections.NewFileStore(filepath.Join(dir, "log", "corrections.jsonl"), reg)
	require.NoError(t, err)
	sqlite, err := corrections.NewSQLiteStore(filepath.Join(dir, "db", "corrections.db"), reg)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = file.Close()
		_ = sqlite.Close()
	})
	return map[string]corrections.Store{"file": file, "sqlite": sqlite}
}

func TestStore_RecordAndReadAll(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			amt := decimal.RequireFromString("12.50")

			first := &domain.Correction{
				OriginalInput:   domain.CategorizationInput{Description: "uber to airport", Amount: &amt},
				CorrectCategory: "Transportation",
			}
			second := &domain.Correction{
				OriginalInput:   domain.CategorizationInput{MerchantName: "Whole Foods"},
				CorrectCategory: "Groceries",
			}
			require.NoError(t, store.Record(ctx, first))
			require.NoError(t, store.Record(ctx, second))
			assert.NotEqual(t, first.ID, second.ID)
			assert.False(t, first.SubmittedAt.IsZero())

			all, err := store.ReadAll(ctx)
			require.NoError(t, err)
			require.Len(t, all, 2)
			assert.Equal(t, first.ID, all[0].ID)
			assert.Equal(t, domain.Category("Transportation"), all[0].CorrectCategory)
			require.NotNil(t, all[0].OriginalInput.Amount)
			assert.True(t, amt.Equal(*all[0].OriginalInput.Amount))
			assert.Equal(t, "Whole Foods", all[1].OriginalInput.MerchantName)
			assert.Nil(t, all[1].OriginalInput.Amount)

			n, err := store.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, n)
		})
	}
}

func TestStore_RejectsUnknownCategory(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			err := store.Record(ctx, &domain.Correction{
				OriginalInput:   domain.CategorizationInput{Description: "coffee"},
				CorrectCategory: "Coffee",
			})
			assert.ErrorIs(t, err, domain.ErrInvalidCategory)

			// Lookup is strict: case variants are not accepted.
			err = store.Record(ctx, &domain.Correction{
				OriginalInput:   domain.CategorizationInput{Description: "coffee"},
				CorrectCategory: "groceries",
			})
			assert.ErrorIs(t, err, domain.ErrInvalidCategory)

			n, err := store.Count(ctx)
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestStore_ConcurrentRecords(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					assert.NoError(t, store.Record(ctx, &domain.Correction{
						OriginalInput:   domain.CategorizationInput{Description: "lunch"},
						CorrectCategory: "Food & Dining",
					}))
				}()
			}
			wg.Wait()

			n, err := store.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 20, n)
		})
	}
}

func TestFileStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrections.jsonl")
	reg := newRegistry(t)

	store, err := corrections.NewFileStore(path, reg)
	require.NoError(t, err)
	require.NoError(t, store.Record(context.Background(), &domain.Correction{
		OriginalInput:   domain.CategorizationInput{Description: "metro card"},
		CorrectCategory: "Transportation",
	}))
	require.NoError(t, store.Close())

	reopened, err := corrections.NewFileStore(path, reg)
	require.NoError(t, err)
	defer reopened.Close()

	all, err := reopened.ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "metro card", all[0].OriginalInput.Description)
}

func TestFileStore_SkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrections.jsonl")
	reg := newRegistry(t)

	store, err := corrections.NewFileStore(path, reg)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Record(context.Background(), &domain.Correction{
		OriginalInput:   domain.CategorizationInput{Description: "taxi"},
		CorrectCategory: "Transportation",
	}))

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{not json\n\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	all, err := store.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestFileStore_TerminatesTornTailOnOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrections.jsonl")
	reg := newRegistry(t)
	require.NoError(t, os.WriteFile(path, []byte(`{"id":"x","correct_category":"Trans`), 0o644))

	store, err := corrections.NewFileStore(path, reg)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Record(context.Background(), &domain.Correction{
		OriginalInput:   domain.CategorizationInput{Description: "bus pass"},
		CorrectCategory: "Transportation",
	}))

	all, err := store.ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "bus pass", all[0].OriginalInput.Description)
}

func TestFileStore_RecordAfterClose(t *testing.T) {
	store, err := corrections.NewFileStore(filepath.Join(t.TempDir(), "c.jsonl"), newRegistry(t))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	err = store.Record(context.Background(), &domain.Correction{
		OriginalInput:   domain.CategorizationInput{Description: "taxi"},
		CorrectCategory: "Transportation",
	})
	assert.Error(t, err)
}

func TestOpen_Backends(t *testing.T) {
	reg := newRegistry(t)
	dir := t.TempDir()

	s, err := corrections.Open(&config.CorrectionsConfig{Backend: "", Path: filepath.Join(dir, "a.jsonl")}, reg, nil)
	require.NoError(t, err)
	assert.IsType(t, &corrections.FileStore{}, s)
	require.NoError(t, s.Close())

	s, err = corrections.Open(&config.CorrectionsConfig{Backend: "sqlite", Path: filepath.Join(dir, "b.db")}, reg, nil)
	require.NoError(t, err)
	assert.IsType(t, &corrections.SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = corrections.Open(&config.CorrectionsConfig{Backend: "postgres"}, reg, nil)
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = corrections.Open(&config.CorrectionsConfig{Backend: "redis"}, reg, nil)
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = corrections.Open(&config.CorrectionsConfig{Backend: "file"}, reg, nil)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}
