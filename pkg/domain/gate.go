package domain

// Built-in strategy tags. Merge and subtract are first-class engine
// operations, not strategies; gates recorded for them carry these tags so they
// can be re-applied from a template or snapshot.
const (
	StrategyMerge    = "merge"
	StrategySubtract = "subtract"
)

// GateStatus tracks the lifecycle of a gate definition.
type GateStatus string

const (
	// GateCreated means the gate is registered but not yet applied.
	GateCreated GateStatus = "created"
	// GateApplied means the gate's children exist in the population tree.
	GateApplied GateStatus = "applied"
	// GateEdited means the gate's geometry was replaced after application and
	// its downstream dependents were invalidated.
	GateEdited GateStatus = "edited"
)

// Gate is a named, reusable definition of how to derive one or more child
// populations from a parent population. Gates reference populations by name
// only; the population tree owns the nodes.
type Gate struct {
	Name   string `json:"name"`
	Parent string `json:"parent"`

	// Strategy identifies the pluggable algorithm bound to the gate, or one
	// of the built-in tags StrategyMerge / StrategySubtract.
	Strategy string `json:"strategy"`
	// Method is the entry point invoked on the strategy.
	Method string `json:"method"`

	// Parameters carries the geometry-producing arguments and any child
	// population declarations the strategy method needs.
	Parameters map[string]any `json:"parameters,omitempty"`

	// Children lists the population names the gate produces, in order.
	Children []string `json:"children"`

	Status GateStatus `json:"status"`
}

// Clone returns a deep copy of the gate. Parameter values are shared; they
// are treated as immutable once registered.
func (g Gate) Clone() Gate {
	cp := g
	if g.Parameters != nil {
		cp.Parameters = make(map[string]any, len(g.Parameters))
		for k, v := range g.Parameters {
			cp.Parameters[k] = v
		}
	}
	cp.Children = append([]string(nil), g.Children...)
	return cp
}

// GateTemplate is a reusable, tree-independent bundle of gate definitions
// that can be loaded into another engine instance and applied in order.
type GateTemplate struct {
	Name  string `json:"name"`
	Gates []Gate `json:"gates"`
}
