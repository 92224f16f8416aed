package classifier

import (
	"context"
	"fmt"
	"math"
	"os"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// artifact is the on-disk YAML layout of a keyword model.
type artifact struct {
	Name        string             `yaml:"name"`
	Temperature float64            `yaml:"temperature"`
	Weights     artifactWeights    `yaml:"weights"`
	Categories  []artifactCategory `yaml:"categories"`
}

type artifactWeights struct {
	Keyword float64 `yaml:"keyword"`
	Pattern float64 `yaml:"pattern"`
	Example float64 `yaml:"example"`
	Amount  float64 `yaml:"amount"`
}

type artifactCategory struct {
	Name        string    `yaml:"name"`
	Bias        float64   `yaml:"bias"`
	Keywords    []string  `yaml:"keywords"`
	Patterns    []string  `yaml:"patterns"`
	Examples    []string  `yaml:"examples"`
	AmountRange []float64 `yaml:"amount_range"`
}

type categoryFeatures struct {
	label    string
	bias     float64
	words    map[string]struct{}
	phrases  []string
	patterns []*regexp.Regexp
	examples []map[string]struct{}
	minAmt   float64
	maxAmt   float64
	hasRange bool
}

// KeywordModel scores text against per-category keywords, regex patterns and exemplar
// descriptions, then turns the evidence into a probability distribution with a softmax.
// It is immutable after loading and safe for concurrent use.
type KeywordModel struct {
	name        string
	temperature float64
	weights     artifactWeights
	categories  []categoryFeatures
}

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

// LoadKeywordModel reads and compiles a keyword model artifact.
func LoadKeywordModel(path string) (*KeywordModel, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model artifact %s: %w", path, err)
	}
	var a artifact
	if err := yaml.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("parsing model artifact %s: %w", path, err)
	}
	return newKeywordModel(&a)
}

// ParseKeywordModel compiles a keyword model from YAML bytes.
func ParseKeywordModel(raw []byte) (*KeywordModel, error) {
	var a artifact
	if err := yaml.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("parsing model artifact: %w", err)
	}
	return newKeywordModel(&a)
}

func newKeywordModel(a *artifact) (*KeywordModel, error) {
	if len(a.Categories) == 0 {
		return nil, fmt.Errorf("model artifact has no categories")
	}
	m := &KeywordModel{
		name:        a.Name,
		temperature: a.Temperature,
		weights:     a.Weights,
	}
	if m.name == "" {
		m.name = "keyword"
	}
	if m.temperature <= 0 {
		m.temperature = 1
	}
	if m.weights == (artifactWeights{}) {
		m.weights = artifactWeights{Keyword: 1.5, Pattern: 1.0, Example: 3.0, Amount: 0.25}
	}

	for _, c := range a.Categories {
		f := categoryFeatures{
			label: c.Name,
			bias:  c.Bias,
			words: make(map[string]struct{}),
		}
		for _, kw := range c.Keywords {
			kw = strings.Join(tokenize(kw), " ")
			if kw == "" {
				continue
			}
			if strings.Contains(kw, " ") {
				f.phrases = append(f.phrases, kw)
			} else {
				f.words[kw] = struct{}{}
			}
		}
		for _, p := range c.Patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("category %q: compiling pattern %q: %w", c.Name, p, err)
			}
			f.patterns = append(f.patterns, re)
		}
		for _, ex := range c.Examples {
			if set := tokenSet(tokenize(ex)); len(set) > 0 {
				f.examples = append(f.examples, set)
			}
		}
		if len(c.AmountRange) == 2 && c.AmountRange[0] <= c.AmountRange[1] {
			f.minAmt, f.maxAmt, f.hasRange = c.AmountRange[0], c.AmountRange[1], true
		}
		m.categories = append(m.categories, f)
	}
	return m, nil
}

// Name identifies the loaded artifact.
func (m *KeywordModel) Name() string { return m.name }

// Predict returns a softmax distribution over the artifact's categories.
func (m *KeywordModel) Predict(ctx context.Context, text string, amount *decimal.Decimal) (map[string]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lower := strings.ToLower(text)
	tokens := tokenize(lower)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("no classifiable tokens in %q", text)
	}
	words := tokenSet(tokens)
	joined := " " + strings.Join(tokens, " ") + " "

	logits := make([]float64, len(m.categories))
	maxLogit := math.Inf(-1)
	for i := range m.categories {
		logits[i] = m.evidence(&m.categories[i], lower, joined, words, amount) / m.temperature
		if logits[i] > maxLogit {
			maxLogit = logits[i]
		}
	}

	var sum float64
	exps := make([]float64, len(logits))
	for i, l := range logits {
		exps[i] = math.Exp(l - maxLogit)
		sum += exps[i]
	}
	out := make(map[string]float64, len(m.categories))
	for i := range m.categories {
		out[m.categories[i].label] = exps[i] / sum
	}
	return out, nil
}

func (m *KeywordModel) evidence(f *categoryFeatures, lower, joined string, words map[string]struct{}, amount *decimal.Decimal) float64 {
	score := f.bias

	var kwHits int
	for w := range words {
		if _, ok := f.words[w]; ok {
			kwHits++
		}
	}
	for _, p := range f.phrases {
		if strings.Contains(joined, " "+p+" ") {
			kwHits++
		}
	}
	score += m.weights.Keyword * float64(kwHits)

	var patHits int
	for _, re := range f.patterns {
		if re.MatchString(lower) {
			patHits++
		}
	}
	score += m.weights.Pattern * float64(patHits)

	var best float64
	for _, ex := range f.examples {
		if s := jaccard(words, ex); s > best {
			best = s
		}
	}
	score += m.weights.Example * best

	if amount != nil && f.hasRange {
		amt, _ := amount.Abs().Float64()
		switch {
		case amt >= f.minAmt && amt <= f.maxAmt:
			score += m.weights.Amount
		case amt > f.maxAmt*2 || amt < f.minAmt*0.5:
			score -= m.weights.Amount
		}
	}
	return score
}

func tokenize(s string) []string {
	return tokenPattern.FindAllString(strings.ToLower(s), -1)
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var inter int
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
