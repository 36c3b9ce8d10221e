package engine

import (
	"math/rand"

	"cytogate/pkg/dataset"
	"cytogate/pkg/domain"
)

const (
	// fmoNeighbours is the k used by the per-hop classifier.
	fmoNeighbours = 5
	// fmoMaxTrainingRows caps the labelled sub-sample each hop trains on,
	// keeping classifier cost predictable for large parents.
	fmoMaxTrainingRows = 10000
)

// AxisProfile names the channel pair a supervised-ML population should be
// projected on. Supervised gates do not record an axis pair, so the caller
// supplies one per population when requesting a control projection.
type AxisProfile struct {
	X string
	Y string
}

// FMOPredictor projects populations resolved against primary data onto
// control (FMO) datasets that were never gated directly. For each tree edge
// between the nearest cached ancestor and the target it trains a
// nearest-neighbour classifier on the parent's labelled primary events and
// predicts membership for the control events surviving the previous hop.
//
// Results are memoized per (control, population). Entries are never
// invalidated: an edit that changes an ancestor's index leaves stale cache
// entries behind. That matches the recomputation rules of the rest of the
// engine and is accepted behavior, not an oversight to fix here.
type FMOPredictor struct {
	tree     *PopulationTree
	primary  *dataset.Frame
	controls map[string]*dataset.Frame
	cache    map[string]map[string][]int64
	rng      *rand.Rand

	trainings int
}

// NewFMOPredictor constructs a predictor over the given tree and datasets.
// The rand source drives training sub-sampling; pass a seeded source for
// reproducible projections.
func NewFMOPredictor(tree *PopulationTree, primary *dataset.Frame, controls map[string]*dataset.Frame, rng *rand.Rand) *FMOPredictor {
	return &FMOPredictor{
		tree:     tree,
		primary:  primary,
		controls: controls,
		cache:    make(map[string]map[string][]int64),
		rng:      rng,
	}
}

// Trainings returns how many classifier fits the predictor has run. Cached
// predictions do not retrain.
func (p *FMOPredictor) Trainings() int { return p.trainings }

// Predict returns the event index of the named population within the named
// control dataset. Profiles supply axis pairs for supervised-ML populations
// along the path; a supervised population without a profile fails with
// MissingDataError and leaves the cache intact.
func (p *FMOPredictor) Predict(control, population string, profiles map[string]AxisProfile) ([]int64, error) {
	ctrl, ok := p.controls[control]
	if !ok {
		return nil, &domain.ValidationError{Op: "predict control", Name: control, Reason: "control dataset does not exist"}
	}
	if !p.tree.Exists(population) {
		return nil, &domain.ValidationError{Op: "predict control", Name: population, Reason: "population does not exist"}
	}

	entries, ok := p.cache[control]
	if !ok {
		// Root is seeded to the full control index: projecting root is the
		// identity and every walk terminates there.
		entries = map[string][]int64{domain.RootName: ctrl.EventIDs()}
		p.cache[control] = entries
	}
	if cached, ok := entries[population]; ok {
		return append([]int64(nil), cached...), nil
	}

	path, err := p.tree.Path(population)
	if err != nil {
		return nil, err
	}
	// Walk down from the deepest ancestor already cached. Root is always
	// cached, so start is well defined.
	start := 0
	for i := len(path) - 1; i >= 0; i-- {
		if _, ok := entries[path[i]]; ok {
			start = i
			break
		}
	}

	for i := start + 1; i < len(path); i++ {
		name := path[i]
		node, _ := p.tree.Get(name)
		x, y, err := p.projectionAxes(node, control, profiles)
		if err != nil {
			return nil, err
		}
		predicted, err := p.projectHop(ctrl, node, entries[path[i-1]], x, y)
		if err != nil {
			return nil, err
		}
		entries[name] = predicted
	}
	return append([]int64(nil), entries[population]...), nil
}

// projectHop trains one classifier on the parent's labelled primary events
// and predicts membership for the control events surviving the previous hop.
func (p *FMOPredictor) projectHop(ctrl *dataset.Frame, node domain.Population, parentControlIndex []int64, x, y string) ([]int64, error) {
	parent, ok := p.tree.Get(node.Parent)
	if !ok {
		return nil, &domain.ValidationError{Op: "predict control", Name: node.Parent, Reason: "population does not exist"}
	}
	parentFrame, err := p.primary.Select(parent.Index)
	if err != nil {
		return nil, err
	}
	training := parentFrame.Sample(fmoMaxTrainingRows, p.rng)
	ids, points, err := training.Project(x, y)
	if err != nil {
		return nil, err
	}
	members := node.IndexSet()
	labels := make([]bool, len(ids))
	for i, id := range ids {
		_, labels[i] = members[id]
	}
	classifier := newKNNClassifier(fmoNeighbours)
	classifier.Fit(points, labels)
	p.trainings++

	scope, err := ctrl.Select(parentControlIndex)
	if err != nil {
		return nil, err
	}
	ctrlIDs, ctrlPoints, err := scope.Project(x, y)
	if err != nil {
		return nil, err
	}
	var predicted []int64
	for i, positive := range classifier.PredictBatch(ctrlPoints) {
		if positive {
			predicted = append(predicted, ctrlIDs[i])
		}
	}
	return predicted, nil
}

// projectionAxes resolves the channel pair a hop trains on. Geometries with
// recorded axes use them; supervised-ML populations need a caller-supplied
// profile. One-dimensional thresholds train on (x, x).
func (p *FMOPredictor) projectionAxes(node domain.Population, control string, profiles map[string]AxisProfile) (string, string, error) {
	g := node.Geometry
	if g.Kind == domain.KindSupervised || g.X == "" {
		profile, ok := profiles[node.Name]
		if !ok || profile.X == "" {
			return "", "", &domain.MissingDataError{Population: node.Name, Control: control}
		}
		y := profile.Y
		if y == "" {
			y = profile.X
		}
		return profile.X, y, nil
	}
	if g.Y == "" {
		return g.X, g.X, nil
	}
	return g.X, g.Y, nil
}
