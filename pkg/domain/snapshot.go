package domain

import (
	"context"

	"cytogate/pkg/dataset"
)

// PopulationRecord is the persisted shape of a population node.
type PopulationRecord struct {
	Name         string       `json:"name"`
	Parent       string       `json:"parent,omitempty"`
	Index        []int64      `json:"index"`
	Geometry     Geometry     `json:"geometry"`
	PropOfParent float64      `json:"prop_of_parent"`
	PropOfTotal  float64      `json:"prop_of_total"`
	Warnings     []string     `json:"warnings,omitempty"`
	Clusters     []ClusterRef `json:"clusters,omitempty"`
}

// GateRecord is the persisted shape of a gate definition.
type GateRecord struct {
	Name       string         `json:"name"`
	Parent     string         `json:"parent"`
	Strategy   string         `json:"strategy"`
	Method     string         `json:"method"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Children   []string       `json:"children"`
}

// Snapshot bundles the persisted population tree and gate registry for one
// sample. An empty snapshot (no populations) means the sample has not been
// gated before.
type Snapshot struct {
	Populations []PopulationRecord `json:"populations"`
	Gates       []GateRecord       `json:"gates"`
}

// IsEmpty reports whether the snapshot holds no gating state.
func (s Snapshot) IsEmpty() bool {
	return len(s.Populations) == 0 && len(s.Gates) == 0
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	cp := Snapshot{
		Populations: make([]PopulationRecord, len(s.Populations)),
		Gates:       make([]GateRecord, len(s.Gates)),
	}
	for i, p := range s.Populations {
		rec := p
		rec.Index = append([]int64(nil), p.Index...)
		rec.Geometry = p.Geometry.Clone()
		rec.Warnings = append([]string(nil), p.Warnings...)
		rec.Clusters = append([]ClusterRef(nil), p.Clusters...)
		cp.Populations[i] = rec
	}
	for i, g := range s.Gates {
		rec := g
		if g.Parameters != nil {
			rec.Parameters = make(map[string]any, len(g.Parameters))
			for k, v := range g.Parameters {
				rec.Parameters[k] = v
			}
		}
		rec.Children = append([]string(nil), g.Children...)
		cp.Gates[i] = rec
	}
	return cp
}

// DatasetProvider supplies the event data for a sample: one fully stained
// primary dataset and zero or more named control (FMO) datasets.
type DatasetProvider interface {
	PrimaryDataset(ctx context.Context, sampleID string) (*dataset.Frame, error)
	ControlDatasets(ctx context.Context, sampleID string) (map[string]*dataset.Frame, error)
}

// PersistenceAdapter loads and saves gating snapshots for a sample. Load
// returns an empty snapshot when the sample has no persisted state.
type PersistenceAdapter interface {
	Load(ctx context.Context, sampleID string) (Snapshot, error)
	Save(ctx context.Context, sampleID string, snapshot Snapshot) error
}
