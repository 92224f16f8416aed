package corrections

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"ledgerlens/internal/domain"
	"ledgerlens/internal/taxonomy"
)

// maxLineBytes bounds one JSON Lines entry when reading the log back.
const maxLineBytes = 1 << 20

// FileStore appends corrections to a JSON Lines file. Every Record is fsynced before it
// returns.
type FileStore struct {
	mu       sync.Mutex
	path     string
	f        *os.File
	registry *taxonomy.Registry
}

// NewFileStore opens (creating if needed) the log at path.
func NewFileStore(path string, registry *taxonomy.Registry) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: corrections.path is empty", domain.ErrConfiguration)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating corrections directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening corrections log %s: %w", path, err)
	}
	if err := terminateLastLine(path, f); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &FileStore{path: path, f: f, registry: registry}, nil
}

// terminateLastLine appends a newline when an interrupted write left the log without one,
// so the next entry starts on its own line.
func terminateLastLine(path string, f *os.File) error {
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat corrections log %s: %w", path, err)
	}
	if info.Size() == 0 {
		return nil
	}
	r, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening corrections log %s: %w", path, err)
	}
	defer func() { _ = r.Close() }()
	last := make([]byte, 1)
	if _, err := r.ReadAt(last, info.Size()-1); err != nil {
		return fmt.Errorf("reading corrections log %s: %w", path, err)
	}
	if last[0] == '\n' {
		return nil
	}
	log.Printf("corrections.FileStore: %s ends mid-line, terminating it", path)
	if _, err := f.Write([]byte{'\n'}); err != nil {
		return fmt.Errorf("repairing corrections log %s: %w", path, err)
	}
	return f.Sync()
}

func (s *FileStore) Record(ctx context.Context, c *domain.Correction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := prepare(c, s.registry); err != nil {
		return err
	}
	line, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("fileStore.Record marshal: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return errors.New("fileStore.Record: store is closed")
	}
	if _, err := s.f.Write(line); err != nil {
		return fmt.Errorf("fileStore.Record write: %w", err)
	}
	if err := s.f.Sync(); err != nil {
		return fmt.Errorf("fileStore.Record sync: %w", err)
	}
	return nil
}

// ReadAll returns every entry in append order. Lines that do not decode are skipped.
func (s *FileStore) ReadAll(ctx context.Context) ([]domain.Correction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("fileStore.ReadAll open: %w", err)
	}
	defer func() { _ = f.Close() }()

	out := []domain.Correction{}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var c domain.Correction
		if err := json.Unmarshal(raw, &c); err != nil {
			log.Printf("corrections.FileStore: skipping malformed line %d in %s: %v", lineNo, s.path, err)
			continue
		}
		out = append(out, c)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("fileStore.ReadAll scan: %w", err)
	}
	return out, nil
}

func (s *FileStore) Count(ctx context.Context) (int, error) {
	return count(ctx, s)
}

// Close releases the file handle.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}
