package validator

import "ledgerlens/internal/validator/receipt"

// Registry maps rule keys to Validator implementations and keeps registration order.
type Registry struct {
	validators map[string]Validator
	order      []string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{validators: make(map[string]Validator)}
}

// NewBuiltinRegistry creates a Registry holding every built-in receipt rule.
func NewBuiltinRegistry() *Registry {
	r := NewRegistry()
	for _, v := range receipt.AllBuiltinValidators() {
		r.Register(v)
	}
	return r
}

// Register adds a validator to the registry, replacing any with the same key.
func (r *Registry) Register(v Validator) {
	if _, exists := r.validators[v.RuleKey()]; !exists {
		r.order = append(r.order, v.RuleKey())
	}
	r.validators[v.RuleKey()] = v
}

// Get returns the validator for a given rule key, or nil if not found.
func (r *Registry) Get(key string) Validator {
	return r.validators[key]
}

// All returns all registered validators in registration order.
func (r *Registry) All() []Validator {
	out := make([]Validator, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.validators[k])
	}
	return out
}
