// Package engine implements the gating engine: the population tree and its
// invariants, geometric region evaluation, merge/subtract set algebra, the
// gate registry and lifecycle, and control-sample (FMO) projection. One
// Engine instance owns the gating state for a single sample; it assumes
// exclusive access and requires external mutual exclusion if shared across
// goroutines.
package engine

import (
	"cytogate/pkg/domain"
)

// PopulationTree is the hierarchical store of populations. Nodes live in an
// arena keyed by name; each node stores its parent's name and a child
// adjacency index is maintained transactionally with every mutation. The
// tree exclusively owns its nodes; accessors return deep copies.
type PopulationTree struct {
	nodes    map[string]*domain.Population
	children map[string][]string
	total    int
}

// NewPopulationTree creates a tree whose root spans the given primary event
// index. The root is never removed.
func NewPopulationTree(rootIndex []int64, geometry domain.Geometry) *PopulationTree {
	t := &PopulationTree{
		nodes:    make(map[string]*domain.Population),
		children: make(map[string][]string),
		total:    len(rootIndex),
	}
	root := &domain.Population{
		Name:         domain.RootName,
		Index:        append([]int64(nil), rootIndex...),
		Geometry:     geometry.Clone(),
		PropOfParent: 1,
		PropOfTotal:  1,
	}
	t.nodes[domain.RootName] = root
	return t
}

// Len returns the number of populations in the tree, root included.
func (t *PopulationTree) Len() int { return len(t.nodes) }

// Exists reports whether the named population is present.
func (t *PopulationTree) Exists(name string) bool {
	_, ok := t.nodes[name]
	return ok
}

// Get returns a copy of the named population.
func (t *PopulationTree) Get(name string) (domain.Population, bool) {
	node, ok := t.nodes[name]
	if !ok {
		return domain.Population{}, false
	}
	return node.Clone(), true
}

// Root returns a copy of the root population.
func (t *PopulationTree) Root() domain.Population {
	return t.nodes[domain.RootName].Clone()
}

// Children returns the direct children of the named population in creation
// order.
func (t *PopulationTree) Children(name string) []string {
	return append([]string(nil), t.children[name]...)
}

// Path returns the names along the root-to-node path, root first and the
// named node last.
func (t *PopulationTree) Path(name string) ([]string, error) {
	if _, ok := t.nodes[name]; !ok {
		return nil, &domain.ValidationError{Op: "path", Name: name, Reason: "population does not exist"}
	}
	var reversed []string
	for cursor := name; cursor != ""; {
		node := t.nodes[cursor]
		reversed = append(reversed, cursor)
		cursor = node.Parent
	}
	path := make([]string, len(reversed))
	for i, n := range reversed {
		path[len(reversed)-1-i] = n
	}
	return path, nil
}

// Create adds a population under an existing parent. The index must be a
// subset of the parent's index; proportions are derived against the
// immediate parent and the root.
func (t *PopulationTree) Create(name, parent string, index []int64, geometry domain.Geometry, warnings []string) error {
	if name == "" {
		return &domain.ValidationError{Op: "create population", Reason: "name cannot be empty"}
	}
	if _, exists := t.nodes[name]; exists {
		return &domain.ValidationError{Op: "create population", Name: name, Reason: "already exists"}
	}
	parentNode, ok := t.nodes[parent]
	if !ok {
		return &domain.ValidationError{Op: "create population", Name: name, Reason: "parent " + parent + " does not exist"}
	}
	parentSet := parentNode.IndexSet()
	for _, id := range index {
		if _, ok := parentSet[id]; !ok {
			return &domain.ValidationError{Op: "create population", Name: name, Reason: "index is not a subset of parent " + parent}
		}
	}
	node := &domain.Population{
		Name:     name,
		Parent:   parent,
		Index:    append([]int64(nil), index...),
		Geometry: geometry.Clone(),
		Warnings: append([]string(nil), warnings...),
	}
	node.PropOfParent, node.PropOfTotal = t.proportions(len(index), len(parentNode.Index))
	t.nodes[name] = node
	t.children[parent] = append(t.children[parent], name)
	return nil
}

// Dependents returns the named population followed by every population whose
// path from root passes through it, in depth-first creation order. It is the
// unit of every destructive cascade.
func (t *PopulationTree) Dependents(name string) ([]string, error) {
	if _, ok := t.nodes[name]; !ok {
		return nil, &domain.ValidationError{Op: "dependents", Name: name, Reason: "population does not exist"}
	}
	var out []string
	stack := []string{name}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, n)
		kids := t.children[n]
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, kids[i])
		}
	}
	return out, nil
}

// Remove detaches the named population. With cascade, the whole dependent
// subtree goes with it and the removed names are returned in depth-first
// order; without cascade only a leaf may be removed. The root is never
// removable.
func (t *PopulationTree) Remove(name string, cascade bool) ([]string, error) {
	node, ok := t.nodes[name]
	if !ok {
		return nil, &domain.ValidationError{Op: "remove population", Name: name, Reason: "population does not exist"}
	}
	if node.IsRoot() {
		return nil, &domain.ValidationError{Op: "remove population", Name: name, Reason: "root population cannot be removed"}
	}
	if !cascade && len(t.children[name]) > 0 {
		return nil, &domain.ValidationError{Op: "remove population", Name: name, Reason: "population has children; removal requires cascade"}
	}
	removed, err := t.Dependents(name)
	if err != nil {
		return nil, err
	}
	for _, n := range removed {
		delete(t.nodes, n)
		delete(t.children, n)
	}
	t.detachFromParent(node.Parent, name)
	return removed, nil
}

// UpdateGeometryAndIndex replaces a population's geometry and index and
// recomputes its proportions. Dependents are left untouched: their indexes
// are stale after this call and the caller decides whether to cascade.
func (t *PopulationTree) UpdateGeometryAndIndex(name string, geometry domain.Geometry, index []int64) error {
	node, ok := t.nodes[name]
	if !ok {
		return &domain.ValidationError{Op: "update population", Name: name, Reason: "population does not exist"}
	}
	if node.IsRoot() {
		return &domain.ValidationError{Op: "update population", Name: name, Reason: "root population cannot be regated"}
	}
	parentNode := t.nodes[node.Parent]
	node.Geometry = geometry.Clone()
	node.Index = append([]int64(nil), index...)
	node.PropOfParent, node.PropOfTotal = t.proportions(len(index), len(parentNode.Index))
	return nil
}

// AttachWarnings appends warnings to an existing population.
func (t *PopulationTree) AttachWarnings(name string, warnings ...string) error {
	node, ok := t.nodes[name]
	if !ok {
		return &domain.ValidationError{Op: "attach warnings", Name: name, Reason: "population does not exist"}
	}
	node.Warnings = append(node.Warnings, warnings...)
	return nil
}

// VoidClusters drops cluster annotations from a population, returning whether
// any were present.
func (t *PopulationTree) VoidClusters(name string) bool {
	node, ok := t.nodes[name]
	if !ok || len(node.Clusters) == 0 {
		return false
	}
	node.Clusters = nil
	return true
}

func (t *PopulationTree) proportions(n, parentN int) (ofParent, ofTotal float64) {
	if n == 0 {
		return 0, 0
	}
	if parentN > 0 {
		ofParent = float64(n) / float64(parentN)
	}
	if t.total > 0 {
		ofTotal = float64(n) / float64(t.total)
	}
	return ofParent, ofTotal
}

func (t *PopulationTree) detachFromParent(parent, name string) {
	kids := t.children[parent]
	for i, kid := range kids {
		if kid == name {
			t.children[parent] = append(kids[:i], kids[i+1:]...)
			return
		}
	}
}
