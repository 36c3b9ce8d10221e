package engine

import (
	"fmt"
	"strings"

	"cytogate/pkg/domain"
)

// RenderTree returns a plain-text sketch of the population hierarchy, one
// node per line with event counts and parent proportions.
func (e *Engine) RenderTree() string {
	var b strings.Builder
	e.renderNode(&b, domain.RootName, 0)
	return b.String()
}

func (e *Engine) renderNode(b *strings.Builder, name string, depth int) {
	p, ok := e.tree.Get(name)
	if !ok {
		return
	}
	indent := strings.Repeat("    ", depth)
	if p.IsRoot() {
		fmt.Fprintf(b, "%s%s (n=%d)\n", indent, name, p.N())
	} else {
		fmt.Fprintf(b, "%s└── %s (n=%d, %.1f%% of parent)\n", indent, name, p.N(), p.PropOfParent*100)
	}
	for _, child := range e.tree.Children(name) {
		e.renderNode(b, child, depth+1)
	}
}
