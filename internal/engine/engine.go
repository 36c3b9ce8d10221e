package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"cytogate/pkg/dataset"
	"cytogate/pkg/domain"
	"cytogate/pkg/strategyapi"
)

// Default display axes carried by the root population.
const (
	defaultRootX = "FSC-A"
	defaultRootY = "SSC-A"
)

// Engine owns the gating state of one sample: the population tree, the gate
// registry, the control-projection cache, and handles to the sample's
// datasets. All operations run to completion synchronously; an instance
// shared across goroutines requires external mutual exclusion.
type Engine struct {
	sampleID string
	provider domain.DatasetProvider
	adapter  domain.PersistenceAdapter

	primary  *dataset.Frame
	controls map[string]*dataset.Frame

	tree     *PopulationTree
	registry *GateRegistry
	fmo      *FMOPredictor

	metrics MetricsRecorder
	tracer  Tracer
	rng     *rand.Rand
	rootX   string
	rootY   string
}

// Option customizes engine construction.
type Option func(*Engine)

// WithMetricsRecorder routes operation observations to the given recorder.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithTracer routes operation spans to the given tracer.
func WithTracer(t Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithRand sets the random source used for control-projection sub-sampling.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) {
		if rng != nil {
			e.rng = rng
		}
	}
}

// WithRootAxes overrides the display axes recorded on a freshly created root.
func WithRootAxes(x, y string) Option {
	return func(e *Engine) {
		e.rootX, e.rootY = x, y
	}
}

// New constructs an engine for one sample. It fetches the primary and control
// datasets from the provider and loads any persisted gating state from the
// adapter; an empty snapshot initializes a fresh tree whose root spans all
// primary events.
func New(ctx context.Context, provider domain.DatasetProvider, adapter domain.PersistenceAdapter, strategies *strategyapi.Registry, sampleID string, opts ...Option) (*Engine, error) {
	if sampleID == "" {
		return nil, &domain.ValidationError{Op: "new engine", Reason: "sample id cannot be empty"}
	}
	e := &Engine{
		sampleID: sampleID,
		provider: provider,
		adapter:  adapter,
		registry: NewGateRegistry(strategies),
		metrics:  noopMetricsRecorder{},
		tracer:   noopTracer{},
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		rootX:    defaultRootX,
		rootY:    defaultRootY,
	}
	for _, opt := range opts {
		opt(e)
	}

	primary, err := provider.PrimaryDataset(ctx, sampleID)
	if err != nil {
		return nil, fmt.Errorf("engine: load primary dataset for %q: %w", sampleID, err)
	}
	controls, err := provider.ControlDatasets(ctx, sampleID)
	if err != nil {
		return nil, fmt.Errorf("engine: load control datasets for %q: %w", sampleID, err)
	}
	e.primary = primary
	e.controls = controls

	snapshot, err := adapter.Load(ctx, sampleID)
	if err != nil {
		return nil, fmt.Errorf("engine: load snapshot for %q: %w", sampleID, err)
	}
	if snapshot.IsEmpty() {
		e.tree = NewPopulationTree(primary.EventIDs(), domain.Geometry{X: e.rootX, Y: e.rootY})
	} else if err := e.restore(snapshot); err != nil {
		return nil, err
	}
	e.fmo = NewFMOPredictor(e.tree, e.primary, e.controls, e.rng)
	return e, nil
}

// restore rebuilds the tree and registry from a persisted snapshot.
// Population records are stored parents-first, so a single pass suffices.
func (e *Engine) restore(snapshot domain.Snapshot) error {
	var rootRec *domain.PopulationRecord
	for i := range snapshot.Populations {
		if snapshot.Populations[i].Name == domain.RootName {
			rootRec = &snapshot.Populations[i]
			break
		}
	}
	if rootRec == nil {
		return &domain.ValidationError{Op: "restore snapshot", Name: e.sampleID, Reason: "snapshot has populations but no root"}
	}
	e.tree = NewPopulationTree(rootRec.Index, rootRec.Geometry)
	for _, rec := range snapshot.Populations {
		if rec.Name == domain.RootName {
			continue
		}
		if err := e.tree.Create(rec.Name, rec.Parent, rec.Index, rec.Geometry, rec.Warnings); err != nil {
			return fmt.Errorf("engine: restore population %q: %w", rec.Name, err)
		}
	}
	for _, rec := range snapshot.Gates {
		gate := domain.Gate{
			Name:       rec.Name,
			Parent:     rec.Parent,
			Strategy:   rec.Strategy,
			Method:     rec.Method,
			Parameters: rec.Parameters,
			Children:   rec.Children,
		}
		if err := e.registry.Create(gate); err != nil {
			return fmt.Errorf("engine: restore gate %q: %w", rec.Name, err)
		}
		// Children already present in the tree mean the gate was applied
		// before the snapshot was taken.
		applied := len(rec.Children) > 0
		for _, child := range rec.Children {
			if !e.tree.Exists(child) {
				applied = false
				break
			}
		}
		if applied {
			if err := e.registry.MarkApplied(rec.Name, rec.Children); err != nil {
				return err
			}
		}
	}
	return nil
}

// SampleID returns the sample this engine instance gates.
func (e *Engine) SampleID() string { return e.sampleID }

// Controls returns the available control dataset names, sorted.
func (e *Engine) Controls() []string {
	out := make([]string, 0, len(e.controls))
	for name := range e.controls {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ListPopulations returns all population names, sorted.
func (e *Engine) ListPopulations() []string {
	names, _ := e.tree.Dependents(domain.RootName)
	sort.Strings(names)
	return names
}

// ListGates returns the registered gate names in creation order.
func (e *Engine) ListGates() []string { return e.registry.Names() }

// GetPopulation returns a copy of the named population.
func (e *Engine) GetPopulation(name string) (domain.Population, error) {
	p, ok := e.tree.Get(name)
	if !ok {
		return domain.Population{}, &domain.ValidationError{Op: "get population", Name: name, Reason: "population does not exist"}
	}
	return p, nil
}

// GetGate returns a copy of the named gate definition.
func (e *Engine) GetGate(name string) (domain.Gate, error) {
	g, ok := e.registry.Get(name)
	if !ok {
		return domain.Gate{}, &domain.ValidationError{Op: "get gate", Name: name, Reason: "gate does not exist"}
	}
	return g, nil
}

// PopulationSize returns the number of events in the named population.
func (e *Engine) PopulationSize(name string) (int, error) {
	p, err := e.GetPopulation(name)
	if err != nil {
		return 0, err
	}
	return p.N(), nil
}

// FetchGeometry returns the geometry that captured the named population.
func (e *Engine) FetchGeometry(name string) (domain.Geometry, error) {
	p, err := e.GetPopulation(name)
	if err != nil {
		return domain.Geometry{}, err
	}
	return p.Geometry, nil
}

// FindDependencies returns the named population followed by every population
// downstream of it.
func (e *Engine) FindDependencies(name string) ([]string, error) {
	return e.tree.Dependents(name)
}

// PopulationDataframe returns the primary dataset restricted to the named
// population's events.
func (e *Engine) PopulationDataframe(name string) (*dataset.Frame, error) {
	p, err := e.GetPopulation(name)
	if err != nil {
		return nil, err
	}
	return e.primary.Select(p.Index)
}

// UnlabelledTag marks events of a labelled dataframe that belong to no
// downstream population.
const UnlabelledTag = "unlabelled"

// LabelledDataframe returns the named population's dataframe plus one label
// per row naming the most specific downstream population containing that
// event, or UnlabelledTag when none does.
func (e *Engine) LabelledDataframe(name string) (*dataset.Frame, []string, error) {
	frame, err := e.PopulationDataframe(name)
	if err != nil {
		return nil, nil, err
	}
	dependents, err := e.tree.Dependents(name)
	if err != nil {
		return nil, nil, err
	}
	labels := make([]string, frame.NumRows())
	for i := range labels {
		labels[i] = UnlabelledTag
	}
	ids := frame.EventIDs()
	position := make(map[int64]int, len(ids))
	for i, id := range ids {
		position[id] = i
	}
	// Pre-order traversal visits ancestors before descendants, so deeper
	// populations overwrite shallower labels.
	for _, dep := range dependents[1:] {
		p, _ := e.tree.Get(dep)
		for _, id := range p.Index {
			if i, ok := position[id]; ok {
				labels[i] = dep
			}
		}
	}
	return frame, labels, nil
}

// CreateGate validates and registers a gate without applying it.
func (e *Engine) CreateGate(ctx context.Context, gate domain.Gate) (err error) {
	done := e.instrument(ctx, "create_gate")
	defer func() { done(err) }()
	return e.registry.Create(gate)
}

// Apply runs a registered gate against its parent population and commits the
// resulting child populations. It returns the created population names.
func (e *Engine) Apply(ctx context.Context, name string) (created []string, err error) {
	done := e.instrument(ctx, "apply_gate")
	defer func() { done(err) }()
	return e.apply(ctx, name)
}

func (e *Engine) apply(ctx context.Context, name string) ([]string, error) {
	gate, ok := e.registry.Get(name)
	if !ok {
		return nil, &domain.ValidationError{Op: "apply gate", Name: name, Reason: "gate does not exist"}
	}
	if gate.Status == domain.GateApplied {
		return nil, &domain.ValidationError{Op: "apply gate", Name: name, Reason: "gate is already applied"}
	}
	parent, ok := e.tree.Get(gate.Parent)
	if !ok {
		return nil, &domain.ValidationError{Op: "apply gate", Name: name, Reason: "parent population " + gate.Parent + " does not exist"}
	}
	for _, child := range gate.Children {
		if e.tree.Exists(child) {
			return nil, &domain.ValidationError{Op: "apply gate", Name: name, Reason: "child population " + child + " already exists"}
		}
	}

	switch gate.Strategy {
	case domain.StrategyMerge:
		return e.applyMergeGate(gate)
	case domain.StrategySubtract:
		return e.applySubtractGate(gate, parent)
	}

	strategy, ok := e.registry.strategies.Lookup(gate.Strategy)
	if !ok {
		return nil, &domain.ValidationError{Op: "apply gate", Name: name, Reason: "unknown strategy " + gate.Strategy}
	}
	frame, err := e.primary.Select(parent.Index)
	if err != nil {
		return nil, err
	}
	output, err := strategy.Gate(gate.Method, frame, strategyapi.Parameters(gate.Parameters))
	if err != nil {
		return nil, err
	}
	declared := make(map[string]struct{}, len(gate.Children))
	for _, child := range gate.Children {
		declared[child] = struct{}{}
	}
	var created []string
	for _, result := range output.Results {
		if _, ok := declared[result.Name]; !ok {
			// Roll back any siblings already committed: no partial mutation
			// survives a failed apply.
			for _, committed := range created {
				_, _ = e.tree.Remove(committed, true)
			}
			return nil, &domain.ValidationError{Op: "apply gate", Name: name, Reason: "strategy produced undeclared child " + result.Name}
		}
		if err := e.tree.Create(result.Name, gate.Parent, result.Index, result.Geometry, output.Warnings); err != nil {
			for _, committed := range created {
				_, _ = e.tree.Remove(committed, true)
			}
			return nil, err
		}
		created = append(created, result.Name)
	}
	if err := e.registry.MarkApplied(name, created); err != nil {
		return nil, err
	}
	return created, nil
}

func (e *Engine) applyMergeGate(gate domain.Gate) ([]string, error) {
	params := strategyapi.Parameters(gate.Parameters)
	leftName, _ := params.String("left")
	rightName, _ := params.String("right")
	left, err := e.GetPopulation(leftName)
	if err != nil {
		return nil, err
	}
	right, err := e.GetPopulation(rightName)
	if err != nil {
		return nil, err
	}
	target := gate.Name
	if len(gate.Children) > 0 {
		target = gate.Children[0]
	}
	merged, err := MergePopulations(left, right, target)
	if err != nil {
		return nil, err
	}
	if err := e.tree.Create(merged.Name, merged.Parent, merged.Index, merged.Geometry, merged.Warnings); err != nil {
		return nil, err
	}
	if err := e.registry.MarkApplied(gate.Name, []string{merged.Name}); err != nil {
		return nil, err
	}
	return []string{merged.Name}, nil
}

func (e *Engine) applySubtractGate(gate domain.Gate, parent domain.Population) ([]string, error) {
	params := strategyapi.Parameters(gate.Parameters)
	names, ok := stringList(params["targets"])
	if !ok || len(names) == 0 {
		return nil, &domain.ValidationError{Op: "apply gate", Name: gate.Name, Reason: "subtract gate declares no targets"}
	}
	targets := make([]domain.Population, 0, len(names))
	for _, n := range names {
		t, err := e.GetPopulation(n)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	target := gate.Name
	if len(gate.Children) > 0 {
		target = gate.Children[0]
	}
	result, err := SubtractPopulations(parent, targets, target)
	if err != nil {
		return nil, err
	}
	if err := e.tree.Create(result.Name, result.Parent, result.Index, result.Geometry, result.Warnings); err != nil {
		return nil, err
	}
	if err := e.registry.MarkApplied(gate.Name, []string{result.Name}); err != nil {
		return nil, err
	}
	return []string{result.Name}, nil
}

// ApplyMany applies the named gates in order, stopping at the first failure.
// It returns every population created before the failure.
func (e *Engine) ApplyMany(ctx context.Context, names []string) (created []string, err error) {
	done := e.instrument(ctx, "apply_many")
	defer func() { done(err) }()
	for _, name := range names {
		out, err := e.apply(ctx, name)
		if err != nil {
			return created, err
		}
		created = append(created, out...)
	}
	return created, nil
}

// ApplyAll applies every gate still in the Created or Edited state, in
// registration order, retrying gates whose parent populations appear later
// until no further progress is possible.
func (e *Engine) ApplyAll(ctx context.Context) (created []string, err error) {
	done := e.instrument(ctx, "apply_all")
	defer func() { done(err) }()
	pending := make([]string, 0, e.registry.Len())
	for _, name := range e.registry.Names() {
		if g, _ := e.registry.Get(name); g.Status != domain.GateApplied {
			pending = append(pending, name)
		}
	}
	for len(pending) > 0 {
		var next []string
		for _, name := range pending {
			g, _ := e.registry.Get(name)
			if !e.tree.Exists(g.Parent) {
				next = append(next, name)
				continue
			}
			out, err := e.apply(ctx, name)
			if err != nil {
				return created, err
			}
			created = append(created, out...)
		}
		if len(next) == len(pending) {
			g, _ := e.registry.Get(next[0])
			return created, &domain.ValidationError{Op: "apply all", Name: next[0], Reason: "parent population " + g.Parent + " is never produced"}
		}
		pending = next
	}
	return created, nil
}

// EditGate replaces the geometry of an applied gate's children and recomputes
// their indexes against the current parent dataset. The edited children's own
// subtrees are removed, since their indexes were not recomputed; the returned
// names are the downstream gates that reverted to Created and must be
// re-applied.
func (e *Engine) EditGate(ctx context.Context, name string, geometryByChild map[string]domain.Geometry) (affected []string, err error) {
	done := e.instrument(ctx, "edit_gate")
	defer func() { done(err) }()

	gate, ok := e.registry.Get(name)
	if !ok {
		return nil, &domain.ValidationError{Op: "edit gate", Name: name, Reason: "gate does not exist"}
	}
	if gate.Status == domain.GateCreated {
		return nil, &domain.ValidationError{Op: "edit gate", Name: name, Reason: "gate has not been applied"}
	}
	children := make(map[string]struct{}, len(gate.Children))
	for _, child := range gate.Children {
		children[child] = struct{}{}
	}
	for child := range geometryByChild {
		if _, ok := children[child]; !ok {
			return nil, &domain.ValidationError{Op: "edit gate", Name: name, Reason: "population " + child + " is not a child of this gate"}
		}
	}
	parent, ok := e.tree.Get(gate.Parent)
	if !ok {
		return nil, &domain.ValidationError{Op: "edit gate", Name: name, Reason: "parent population " + gate.Parent + " does not exist"}
	}
	frame, err := e.primary.Select(parent.Index)
	if err != nil {
		return nil, err
	}

	// Evaluate every replacement first so a bad geometry aborts before any
	// index is replaced.
	indexes := make(map[string][]int64, len(geometryByChild))
	for child, geometry := range geometryByChild {
		index, err := EvaluateRegion(geometry, frame)
		if err != nil {
			return nil, err
		}
		indexes[child] = index
	}

	removed := make(map[string]struct{})
	for child, geometry := range geometryByChild {
		if err := e.tree.UpdateGeometryAndIndex(child, geometry, indexes[child]); err != nil {
			return nil, err
		}
		for _, grandchild := range e.tree.Children(child) {
			names, err := e.tree.Remove(grandchild, true)
			if err != nil {
				return nil, err
			}
			for _, n := range names {
				removed[n] = struct{}{}
			}
		}
	}
	if err := e.registry.MarkEdited(name); err != nil {
		return nil, err
	}
	affected = e.registry.DependentGates(removed)
	for _, g := range affected {
		if err := e.registry.Reset(g); err != nil {
			return nil, err
		}
	}
	return affected, nil
}

// NudgeThreshold shifts the threshold values of an applied threshold gate by
// the given deltas and re-evaluates its children via EditGate.
func (e *Engine) NudgeThreshold(ctx context.Context, name string, dx, dy float64) ([]string, error) {
	gate, ok := e.registry.Get(name)
	if !ok {
		return nil, &domain.ValidationError{Op: "nudge threshold", Name: name, Reason: "gate does not exist"}
	}
	updates := make(map[string]domain.Geometry, len(gate.Children))
	for _, child := range gate.Children {
		p, err := e.GetPopulation(child)
		if err != nil {
			return nil, err
		}
		g := p.Geometry.Clone()
		switch g.Kind {
		case domain.KindThreshold:
			g.Threshold = domain.Float(*g.Threshold + dx)
		case domain.KindThreshold2D:
			g.ThresholdX = domain.Float(*g.ThresholdX + dx)
			g.ThresholdY = domain.Float(*g.ThresholdY + dy)
		default:
			return nil, &domain.ValidationError{Op: "nudge threshold", Name: name, Reason: "population " + child + " is not threshold-gated"}
		}
		updates[child] = g
	}
	return e.EditGate(ctx, name, updates)
}

// Merge combines two sibling populations and commits the result under their
// shared parent. An empty newName defaults to merge_<left>_<right>. A gate
// record tagged with the merge strategy is registered so the operation can be
// replayed from a template.
func (e *Engine) Merge(ctx context.Context, left, right, newName string) (pop domain.Population, err error) {
	done := e.instrument(ctx, "merge")
	defer func() { done(err) }()

	if newName == "" {
		newName = "merge_" + left + "_" + right
	}
	l, err := e.GetPopulation(left)
	if err != nil {
		return domain.Population{}, err
	}
	r, err := e.GetPopulation(right)
	if err != nil {
		return domain.Population{}, err
	}
	merged, err := MergePopulations(l, r, newName)
	if err != nil {
		return domain.Population{}, err
	}
	if err := e.tree.Create(merged.Name, merged.Parent, merged.Index, merged.Geometry, merged.Warnings); err != nil {
		return domain.Population{}, err
	}
	gate := domain.Gate{
		Name:       newName,
		Parent:     merged.Parent,
		Strategy:   domain.StrategyMerge,
		Parameters: map[string]any{"left": left, "right": right},
		Children:   []string{newName},
	}
	if err := e.registry.Create(gate); err != nil {
		_, _ = e.tree.Remove(merged.Name, true)
		return domain.Population{}, err
	}
	if err := e.registry.MarkApplied(newName, []string{newName}); err != nil {
		return domain.Population{}, err
	}
	out, _ := e.tree.Get(merged.Name)
	return out, nil
}

// Subtract removes the union of the target populations' events from the
// parent and commits the remainder as a new child of the parent. An empty
// newName defaults to <parent>_minus_<targets>.
func (e *Engine) Subtract(ctx context.Context, parent string, targets []string, newName string) (pop domain.Population, err error) {
	done := e.instrument(ctx, "subtract")
	defer func() { done(err) }()

	if newName == "" {
		newName = parent + "_minus_" + strings.Join(targets, "_")
	}
	parentPop, err := e.GetPopulation(parent)
	if err != nil {
		return domain.Population{}, err
	}
	pops := make([]domain.Population, 0, len(targets))
	for _, t := range targets {
		p, err := e.GetPopulation(t)
		if err != nil {
			return domain.Population{}, err
		}
		pops = append(pops, p)
	}
	result, err := SubtractPopulations(parentPop, pops, newName)
	if err != nil {
		return domain.Population{}, err
	}
	if err := e.tree.Create(result.Name, result.Parent, result.Index, result.Geometry, result.Warnings); err != nil {
		return domain.Population{}, err
	}
	gate := domain.Gate{
		Name:       newName,
		Parent:     parent,
		Strategy:   domain.StrategySubtract,
		Parameters: map[string]any{"targets": targets},
		Children:   []string{newName},
	}
	if err := e.registry.Create(gate); err != nil {
		_, _ = e.tree.Remove(result.Name, true)
		return domain.Population{}, err
	}
	if err := e.registry.MarkApplied(newName, []string{newName}); err != nil {
		return domain.Population{}, err
	}
	out, _ := e.tree.Get(result.Name)
	return out, nil
}

// RemovePopulation removes a population and its whole dependent subtree,
// returning the removed names. Gates whose children were removed revert to
// Created so they can be re-applied.
func (e *Engine) RemovePopulation(ctx context.Context, name string) (removed []string, err error) {
	done := e.instrument(ctx, "remove_population")
	defer func() { done(err) }()

	removed, err = e.tree.Remove(name, true)
	if err != nil {
		return nil, err
	}
	removedSet := make(map[string]struct{}, len(removed))
	for _, n := range removed {
		removedSet[n] = struct{}{}
	}
	for _, g := range e.registry.DependentGates(removedSet) {
		if err := e.registry.Reset(g); err != nil {
			return nil, err
		}
	}
	return removed, nil
}

// RemoveGate removes a gate definition. With propagate, every population
// produced by the gate, their dependents, and every gate anchored on any of
// them are removed too; the two removal sets are returned. Without propagate
// a gate with committed children cannot be removed.
func (e *Engine) RemoveGate(ctx context.Context, name string, propagate bool) (gates, populations []string, err error) {
	done := e.instrument(ctx, "remove_gate")
	defer func() { done(err) }()

	gate, ok := e.registry.Get(name)
	if !ok {
		return nil, nil, &domain.ValidationError{Op: "remove gate", Name: name, Reason: "gate does not exist"}
	}
	committed := false
	for _, child := range gate.Children {
		if e.tree.Exists(child) {
			committed = true
			break
		}
	}
	if !propagate {
		if committed {
			return nil, nil, &domain.ValidationError{Op: "remove gate", Name: name, Reason: "gate has committed children; removal requires propagation"}
		}
		if err := e.registry.Remove(name); err != nil {
			return nil, nil, err
		}
		return []string{name}, nil, nil
	}

	removedPops := make(map[string]struct{})
	for _, child := range gate.Children {
		if !e.tree.Exists(child) {
			continue
		}
		names, err := e.tree.Remove(child, true)
		if err != nil {
			return nil, nil, err
		}
		for _, n := range names {
			removedPops[n] = struct{}{}
			populations = append(populations, n)
		}
	}
	gates = append(gates, name)
	for _, g := range e.registry.DependentGates(removedPops) {
		if g != name {
			gates = append(gates, g)
		}
	}
	for _, g := range gates {
		if err := e.registry.Remove(g); err != nil {
			return nil, nil, err
		}
	}
	return gates, populations, nil
}

// PredictControl projects the named population onto a control dataset via the
// memoized per-edge classifier walk. Profiles supply axis pairs for
// supervised-ML populations along the path.
func (e *Engine) PredictControl(ctx context.Context, control, population string, profiles map[string]AxisProfile) (index []int64, err error) {
	done := e.instrument(ctx, "predict_control")
	defer func() { done(err) }()
	return e.fmo.Predict(control, population, profiles)
}

// Snapshot exports the current tree and registry state, populations in
// pre-order from root and gates in creation order.
func (e *Engine) Snapshot() domain.Snapshot {
	var snapshot domain.Snapshot
	names, _ := e.tree.Dependents(domain.RootName)
	for _, name := range names {
		p, _ := e.tree.Get(name)
		snapshot.Populations = append(snapshot.Populations, domain.PopulationRecord{
			Name:         p.Name,
			Parent:       p.Parent,
			Index:        p.Index,
			Geometry:     p.Geometry,
			PropOfParent: p.PropOfParent,
			PropOfTotal:  p.PropOfTotal,
			Warnings:     p.Warnings,
			Clusters:     p.Clusters,
		})
	}
	for _, name := range e.registry.Names() {
		g, _ := e.registry.Get(name)
		snapshot.Gates = append(snapshot.Gates, domain.GateRecord{
			Name:       g.Name,
			Parent:     g.Parent,
			Strategy:   g.Strategy,
			Method:     g.Method,
			Parameters: g.Parameters,
			Children:   g.Children,
		})
	}
	return snapshot
}

// Save persists the current gating state. When a persisted population's index
// differs from the in-memory one and overwrite is false, Save fails with
// StaleIndexError and leaves the persisted data untouched. With overwrite,
// changed populations lose their persisted cluster annotations and a warning
// is attached.
func (e *Engine) Save(ctx context.Context, overwrite bool) (err error) {
	done := e.instrument(ctx, "save")
	defer func() { done(err) }()

	persisted, err := e.adapter.Load(ctx, e.sampleID)
	if err != nil {
		return fmt.Errorf("engine: load persisted snapshot for %q: %w", e.sampleID, err)
	}
	previous := make(map[string]domain.PopulationRecord, len(persisted.Populations))
	for _, rec := range persisted.Populations {
		previous[rec.Name] = rec
	}
	snapshot := e.Snapshot()
	for i, rec := range snapshot.Populations {
		old, ok := previous[rec.Name]
		if !ok || sameIndex(old.Index, rec.Index) {
			continue
		}
		if !overwrite {
			return &domain.StaleIndexError{Population: rec.Name}
		}
		if len(old.Clusters) > 0 {
			e.tree.VoidClusters(rec.Name)
			_ = e.tree.AttachWarnings(rec.Name, "cluster annotations voided by index overwrite")
			snapshot.Populations[i].Clusters = nil
			snapshot.Populations[i].Warnings = append(snapshot.Populations[i].Warnings, "cluster annotations voided by index overwrite")
		}
	}
	if err := e.adapter.Save(ctx, e.sampleID, snapshot); err != nil {
		return fmt.Errorf("engine: save snapshot for %q: %w", e.sampleID, err)
	}
	return nil
}

func (e *Engine) instrument(ctx context.Context, operation string) func(error) {
	start := time.Now()
	_, span := e.tracer.Start(ctx, operation)
	return func(err error) {
		span.End(err)
		e.metrics.Observe(ctx, operation, err == nil, time.Since(start))
	}
}

func sameIndex(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[int64]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}

func stringList(v any) ([]string, bool) {
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...), true
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}
