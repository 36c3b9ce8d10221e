// Package domain holds the gating data model: populations, gates, geometry
// variants, the error taxonomy and the persisted snapshot shapes. It has no
// engine logic; the engine packages operate on these types.
package domain

// RootName is the reserved name of the population spanning all primary
// events. It is created once at tree initialization and never removed.
const RootName = "root"

// Population is a named subset of event-level data identified by a geometric
// filter. Populations form a tree rooted at the full event set; Parent is a
// back-reference by name and is empty only for the root.
type Population struct {
	Name   string `json:"name"`
	Parent string `json:"parent,omitempty"`

	// Index lists the event identifiers belonging to the population. Entries
	// are unique; order is irrelevant for membership but preserved for
	// display. For any non-root population Index is a subset of the parent's.
	Index []int64 `json:"index"`

	Geometry Geometry `json:"geometry"`

	// PropOfParent and PropOfTotal are derived from Index and recomputed
	// whenever it changes; they are never independently settable.
	PropOfParent float64 `json:"prop_of_parent"`
	PropOfTotal  float64 `json:"prop_of_total"`

	Warnings []string `json:"warnings,omitempty"`

	// Clusters are annotations attached by downstream clustering runs. A
	// merge or an index overwrite voids them.
	Clusters []ClusterRef `json:"clusters,omitempty"`
}

// ClusterRef is a lightweight reference to a cluster derived from this
// population by an external clustering run.
type ClusterRef struct {
	ID  string `json:"id"`
	Tag string `json:"tag,omitempty"`
	N   int    `json:"n"`
}

// N returns the number of events in the population.
func (p Population) N() int { return len(p.Index) }

// IsRoot reports whether this is the root population.
func (p Population) IsRoot() bool { return p.Parent == "" && p.Name == RootName }

// Clone returns a deep copy of the population.
func (p Population) Clone() Population {
	cp := p
	cp.Index = append([]int64(nil), p.Index...)
	cp.Geometry = p.Geometry.Clone()
	cp.Warnings = append([]string(nil), p.Warnings...)
	cp.Clusters = append([]ClusterRef(nil), p.Clusters...)
	return cp
}

// IndexSet returns the population index as a membership set.
func (p Population) IndexSet() map[int64]struct{} {
	set := make(map[int64]struct{}, len(p.Index))
	for _, id := range p.Index {
		set[id] = struct{}{}
	}
	return set
}
