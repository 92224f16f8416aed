// Package ranker turns a raw category score distribution into a ranked result.
package ranker

import (
	"math"
	"sort"

	"ledgerlens/internal/domain"
	"ledgerlens/internal/taxonomy"
)

const (
	DefaultTopK               = 3
	DefaultLowConfidenceFloor = 0.15
)

// Options configures ranking.
type Options struct {
	TopK               int
	LowConfidenceFloor float64
}

// Ranker orders categories by score, breaking ties by taxonomy order.
type Ranker struct {
	registry *taxonomy.Registry
	topK     int
	floor    float64
}

// New creates a Ranker. Non-positive options fall back to defaults.
func New(registry *taxonomy.Registry, opts Options) *Ranker {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.LowConfidenceFloor <= 0 || opts.LowConfidenceFloor > 1 {
		opts.LowConfidenceFloor = DefaultLowConfidenceFloor
	}
	return &Ranker{registry: registry, topK: opts.TopK, floor: opts.LowConfidenceFloor}
}

type entry struct {
	category domain.Category
	score    float64
	order    int
}

// Rank builds a CategorizationResult from per-category scores. Labels outside the
// taxonomy are ignored. Invalid scores count as zero; if the scores sum above 1 they
// are rescaled so that they sum to 1. Low confidence is flagged, never rejected.
func (r *Ranker) Rank(scores map[domain.Category]float64) domain.CategorizationResult {
	cats := r.registry.Categories()
	entries := make([]entry, 0, len(cats))
	var sum float64
	for i, c := range cats {
		s := scores[c]
		if math.IsNaN(s) || math.IsInf(s, 0) || s < 0 {
			s = 0
		}
		entries = append(entries, entry{category: c, score: s, order: i})
		sum += s
	}
	if sum == 0 {
		return r.Fallback()
	}
	if sum > 1 {
		for i := range entries {
			entries[i].score /= sum
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score > entries[j].score
		}
		return entries[i].order < entries[j].order
	})

	k := r.topK
	if k > len(entries) {
		k = len(entries)
	}
	alts := make([]domain.Alternative, k)
	for i := 0; i < k; i++ {
		alts[i] = domain.Alternative{Category: entries[i].category, Score: entries[i].score}
	}

	top := entries[0].score
	return domain.CategorizationResult{
		Category:      entries[0].category,
		Confidence:    top,
		Alternatives:  alts,
		LowConfidence: top < r.floor,
	}
}

// Fallback returns the low-confidence result used when inference fails for an item.
func (r *Ranker) Fallback() domain.CategorizationResult {
	c := r.registry.Fallback()
	return domain.CategorizationResult{
		Category:      c,
		Confidence:    0,
		Alternatives:  []domain.Alternative{{Category: c, Score: 0}},
		LowConfidence: true,
		Fallback:      true,
	}
}

// TopK returns the configured alternative count.
func (r *Ranker) TopK() int { return r.topK }
