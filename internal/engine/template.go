package engine

import (
	"context"

	"cytogate/pkg/domain"
)

// ExportTemplate bundles the engine's gate definitions, in creation order,
// into a reusable template. Templates carry no population state: loading one
// into another engine and applying its gates rebuilds the tree against that
// sample's own data.
func (e *Engine) ExportTemplate(name string) domain.GateTemplate {
	template := domain.GateTemplate{Name: name}
	for _, gateName := range e.registry.Names() {
		g, _ := e.registry.Get(gateName)
		g.Status = domain.GateCreated
		template.Gates = append(template.Gates, g)
	}
	return template
}

// ImportTemplate registers every gate of a template without applying any.
// Registration stops at the first invalid gate; gates registered before the
// failure remain.
func (e *Engine) ImportTemplate(ctx context.Context, template domain.GateTemplate) (err error) {
	done := e.instrument(ctx, "import_template")
	defer func() { done(err) }()
	for _, gate := range template.Gates {
		if err := e.registry.Create(gate); err != nil {
			return err
		}
	}
	return nil
}
