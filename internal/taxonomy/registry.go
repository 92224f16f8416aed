// Package taxonomy holds the fixed, ordered set of expense categories.
//
// A Registry is built once at startup and never mutated afterwards, so it is
// safe to share between goroutines without locking. Reloading the taxonomy
// means building a new Registry.
package taxonomy

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"ledgerlens/internal/config"
	"ledgerlens/internal/domain"
)

const defaultFallback = "Other"

// Registry is the authoritative list of valid categories.
type Registry struct {
	categories []domain.Category
	index      map[domain.Category]int
	fallback   domain.Category
}

// fileFormat is the on-disk YAML layout of a taxonomy file.
type fileFormat struct {
	Fallback   string   `yaml:"fallback"`
	Categories []string `yaml:"categories"`
}

// New builds a Registry from an ordered list of labels. The fallback label must be one of
// them; when empty, "Other" is used if present, otherwise the last label.
func New(labels []string, fallback string) (*Registry, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("%w: taxonomy has no categories", domain.ErrConfiguration)
	}

	r := &Registry{
		categories: make([]domain.Category, 0, len(labels)),
		index:      make(map[domain.Category]int, len(labels)),
	}
	for _, l := range labels {
		label := strings.TrimSpace(l)
		if label == "" {
			return nil, fmt.Errorf("%w: taxonomy contains a blank category", domain.ErrConfiguration)
		}
		c := domain.Category(label)
		if _, dup := r.index[c]; dup {
			return nil, fmt.Errorf("%w: duplicate category %q", domain.ErrConfiguration, label)
		}
		r.index[c] = len(r.categories)
		r.categories = append(r.categories, c)
	}

	fallback = strings.TrimSpace(fallback)
	switch {
	case fallback != "":
		if !r.Contains(fallback) {
			return nil, fmt.Errorf("%w: fallback category %q is not in the taxonomy", domain.ErrConfiguration, fallback)
		}
		r.fallback = domain.Category(fallback)
	case r.Contains(defaultFallback):
		r.fallback = defaultFallback
	default:
		r.fallback = r.categories[len(r.categories)-1]
	}
	return r, nil
}

// LoadFile reads a YAML taxonomy file.
func LoadFile(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading taxonomy %s: %v", domain.ErrConfiguration, path, err)
	}
	var f fileFormat
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: parsing taxonomy %s: %v", domain.ErrConfiguration, path, err)
	}
	return New(f.Categories, f.Fallback)
}

// Load builds the registry from configuration: the file when set, otherwise the inline list.
func Load(cfg *config.TaxonomyConfig) (*Registry, error) {
	if cfg.File != "" {
		r, err := LoadFile(cfg.File)
		if err != nil {
			return nil, err
		}
		if cfg.Fallback != "" && r.Contains(cfg.Fallback) {
			r.fallback = domain.Category(cfg.Fallback)
		}
		return r, nil
	}
	if len(cfg.Categories) == 0 {
		return nil, fmt.Errorf("%w: no taxonomy file or categories configured", domain.ErrConfiguration)
	}
	return New(cfg.Categories, cfg.Fallback)
}

// Categories returns the categories in canonical order. The slice is a copy.
func (r *Registry) Categories() []domain.Category {
	out := make([]domain.Category, len(r.categories))
	copy(out, r.categories)
	return out
}

// Contains reports whether label is a registered category.
func (r *Registry) Contains(label string) bool {
	_, ok := r.index[domain.Category(label)]
	return ok
}

// Index returns the canonical position of a category.
func (r *Registry) Index(c domain.Category) (int, bool) {
	i, ok := r.index[c]
	return i, ok
}

// Fallback returns the category used for low-confidence fallback results.
func (r *Registry) Fallback() domain.Category {
	return r.fallback
}

// Len returns the number of categories.
func (r *Registry) Len() int {
	return len(r.categories)
}

// Lookup resolves a label case-insensitively to its registered spelling.
func (r *Registry) Lookup(label string) (domain.Category, bool) {
	label = strings.TrimSpace(label)
	if r.Contains(label) {
		return domain.Category(label), true
	}
	for _, c := range r.categories {
		if strings.EqualFold(string(c), label) {
			return c, true
		}
	}
	return "", false
}
