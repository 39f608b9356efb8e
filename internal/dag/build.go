package dag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vk/pipewright/internal/config"
	"github.com/vk/pipewright/internal/ctxlog"
	"github.com/vk/pipewright/internal/registry"
)

// NodeID returns the graph identifier for a step.
func NodeID(step *config.Step) string {
	return fmt.Sprintf("step.%s.%s", step.Type, step.Name)
}

// Build constructs a complete, validated dependency graph for one workflow.
func Build(ctx context.Context, wf *config.Workflow, r *registry.Registry) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Build: Starting graph construction.", "workflow", wf.Name)
	graph := &Graph{Nodes: make(map[string]*Node)}

	// First pass: create all nodes.
	byName := make(map[string]*Node, len(wf.Steps))
	for _, step := range wf.Steps {
		node := &Node{
			ID:         NodeID(step),
			Step:       step,
			Workflow:   wf,
			Deps:       make(map[string]*Node),
			Dependents: make(map[string]*Node),
		}
		graph.Nodes[node.ID] = node
		byName[step.Name] = node
	}
	logger.Debug("Build: Node creation complete.", "node_count", len(graph.Nodes))

	// Second pass: link dependencies.
	if err := linkNodes(ctx, wf, graph, byName); err != nil {
		return nil, err
	}
	logger.Debug("Build: Node linking complete.")

	// Third pass: initialize counters.
	for _, node := range graph.Nodes {
		node.SetInitialCounters()
	}

	if err := graph.detectCycles(); err != nil {
		return nil, fmt.Errorf("error validating dependency graph: %w", err)
	}
	logger.Debug("Build: Graph construction successful.")
	return graph, nil
}

// linkNodes establishes explicit, implicit and sequential-fallback edges.
func linkNodes(ctx context.Context, wf *config.Workflow, graph *Graph, byName map[string]*Node) error {
	logger := ctxlog.FromContext(ctx)

	for i, step := range wf.Steps {
		node := byName[step.Name]

		// Explicit depends_on entries.
		for _, depName := range step.DependsOn {
			depNode, ok := byName[depName]
			if !ok {
				return fmt.Errorf("step '%s' depends on non-existent step '%s'", step.Name, depName)
			}
			if depNode == node {
				return fmt.Errorf("step '%s' cannot depend on itself", step.Name)
			}
			link(logger, node, depNode)
		}

		// Implicit references from argument expressions.
		for _, arg := range step.Arguments {
			for _, refName := range arg.References() {
				depNode, ok := byName[refName]
				if !ok {
					return fmt.Errorf("step '%s' references unknown step '%s'", step.Name, refName)
				}
				if depNode == node {
					return fmt.Errorf("step '%s' cannot reference its own output", step.Name)
				}
				link(logger, node, depNode)
			}
		}

		// Sequential fallback: keep plain workflows strictly ordered.
		if len(node.Deps) == 0 && step.DependsOn == nil && i > 0 {
			prev := byName[wf.Steps[i-1].Name]
			logger.Debug("Chaining step onto its predecessor.", "step", node.ID, "previous", prev.ID)
			link(logger, node, prev)
		}
	}
	return nil
}

// link records a dependency edge exactly once.
func link(logger *slog.Logger, node, dep *Node) {
	if _, exists := node.Deps[dep.ID]; exists {
		return
	}
	logger.Debug("Linking dependency.", "from", node.ID, "to", dep.ID)
	node.Deps[dep.ID] = dep
	dep.Dependents[node.ID] = node
}

// detectCycles checks the graph for any cycles using a classic depth-first
// search with permanent and temporary marks.
func (g *Graph) detectCycles() error {
	permanent := make(map[string]bool)
	temporary := make(map[string]bool)

	var visit func(n *Node) error
	visit = func(n *Node) error {
		if permanent[n.ID] {
			return nil
		}
		if temporary[n.ID] {
			return fmt.Errorf("cycle detected involving node '%s'", n.ID)
		}
		temporary[n.ID] = true
		for _, dependent := range n.Dependents {
			if err := visit(dependent); err != nil {
				return err
			}
		}
		delete(temporary, n.ID)
		permanent[n.ID] = true
		return nil
	}

	for _, n := range g.Nodes {
		if !permanent[n.ID] {
			if err := visit(n); err != nil {
				return err
			}
		}
	}
	return nil
}
