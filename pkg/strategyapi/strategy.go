// Package strategyapi defines the stable contract between the gating engine
// and pluggable gating strategies. A strategy receives the parent
// population's dataset plus caller-supplied parameters and returns one
// (geometry, index) result per declared child population. Merge and subtract
// are first-class engine operations, not strategies, and never pass through
// this interface.
package strategyapi

import (
	"fmt"
	"sort"
	"sync"

	"cytogate/pkg/dataset"
	"cytogate/pkg/domain"
)

// Parameters carries the constructor and method arguments of a gate
// definition. Values survive a JSON round trip, so numeric values may arrive
// as float64 and child declarations as generic maps; the typed accessors
// below normalize both forms.
type Parameters map[string]any

// String returns the named parameter as a string.
func (p Parameters) String(key string) (string, bool) {
	v, ok := p[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Float returns the named parameter as a float64, accepting ints.
func (p Parameters) Float(key string) (float64, bool) {
	switch v := p[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// ChildSpec declares one child population a gate will produce and the sign or
// quadrant definition that selects its events.
type ChildSpec struct {
	Name       string `json:"name"`
	Definition string `json:"definition"`
}

// Children returns the declared child populations under the conventional
// "children" key, accepting both typed specs and JSON-decoded generic maps.
func (p Parameters) Children() ([]ChildSpec, bool) {
	switch v := p["children"].(type) {
	case []ChildSpec:
		return append([]ChildSpec(nil), v...), true
	case []any:
		out := make([]ChildSpec, 0, len(v))
		for _, raw := range v {
			m, ok := raw.(map[string]any)
			if !ok {
				return nil, false
			}
			name, _ := m["name"].(string)
			definition, _ := m["definition"].(string)
			out = append(out, ChildSpec{Name: name, Definition: definition})
		}
		return out, true
	}
	return nil, false
}

// MethodSpec describes the parameters a strategy method consumes.
type MethodSpec struct {
	Required []string
	Optional []string
}

// Missing returns the required parameters absent from params, sorted.
func (m MethodSpec) Missing(params Parameters) []string {
	var missing []string
	for _, key := range m.Required {
		if _, ok := params[key]; !ok {
			missing = append(missing, key)
		}
	}
	sort.Strings(missing)
	return missing
}

// Result is one child population produced by a strategy method.
type Result struct {
	Name     string
	Geometry domain.Geometry
	Index    []int64
}

// Output bundles a method invocation's results with any warnings the
// strategy wants attached to the created populations.
type Output struct {
	Results  []Result
	Warnings []string
}

// Strategy is the capability interface every gating strategy implements.
type Strategy interface {
	// Name returns the strategy identifier bound in gate definitions.
	Name() string
	// Methods enumerates the entry points the strategy exposes and the
	// parameters each requires.
	Methods() map[string]MethodSpec
	// Gate runs the named method against the parent population's dataset.
	Gate(method string, frame *dataset.Frame, params Parameters) (Output, error)
}

// Registry is the set of strategies available to an engine instance.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

// NewRegistry constructs an empty strategy registry.
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy)}
}

// Register adds a strategy. Registering the built-in merge/subtract tags or a
// duplicate name is an error.
func (r *Registry) Register(s Strategy) error {
	if s == nil {
		return fmt.Errorf("strategyapi: strategy cannot be nil")
	}
	name := s.Name()
	if name == "" {
		return fmt.Errorf("strategyapi: strategy name cannot be empty")
	}
	if name == domain.StrategyMerge || name == domain.StrategySubtract {
		return fmt.Errorf("strategyapi: %q is a reserved built-in operation", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.strategies[name]; exists {
		return fmt.Errorf("strategyapi: strategy %q already registered", name)
	}
	r.strategies[name] = s
	return nil
}

// Lookup returns the named strategy.
func (r *Registry) Lookup(name string) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[name]
	return s, ok
}

// Names returns the registered strategy identifiers, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
