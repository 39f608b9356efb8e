package dag

import (
	"sync"
	"sync/atomic"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/pipewright/internal/config"
)

// NodeState tracks a node through its lifecycle.
type NodeState int32

const (
	Pending NodeState = iota
	Running
	Done
	Failed
)

// Node represents a single step instance in the graph.
type Node struct {
	// ID is the unique identifier, e.g. "step.shell.build".
	ID string
	// Step is the configuration the node was created from.
	Step *config.Step
	// Workflow is the workflow the step belongs to.
	Workflow *config.Workflow
	// Deps holds the nodes this node depends on (predecessors).
	Deps map[string]*Node
	// Dependents holds the nodes that depend on this node (successors).
	Dependents map[string]*Node

	// Output is the step's result value, set once the node is Done.
	Output cty.Value
	// Error records why the node failed or was skipped.
	Error error

	state    atomic.Int32
	depCount atomic.Int32
	skipOnce sync.Once
}

// State returns the node's current lifecycle state.
func (n *Node) State() NodeState {
	return NodeState(n.state.Load())
}

// SetState transitions the node's lifecycle state.
func (n *Node) SetState(s NodeState) {
	n.state.Store(int32(s))
}

// SetInitialCounters seeds the pending-dependency counter after linking.
func (n *Node) SetInitialCounters() {
	n.depCount.Store(int32(len(n.Deps)))
}

// DepCount returns the number of dependencies still pending.
func (n *Node) DepCount() int32 {
	return n.depCount.Load()
}

// DecrementDepCount marks one dependency as satisfied and returns the
// remaining count.
func (n *Node) DecrementDepCount() int32 {
	return n.depCount.Add(-1)
}

// Skip marks the node failed at most once, recording the reason and
// releasing its WaitGroup slot. It reports whether this call performed
// the skip.
func (n *Node) Skip(reason error, wg *sync.WaitGroup) bool {
	skipped := false
	n.skipOnce.Do(func() {
		n.SetState(Failed)
		n.Error = reason
		wg.Done()
		skipped = true
	})
	return skipped
}

// Graph is the fully linked set of step nodes for one workflow.
type Graph struct {
	Nodes map[string]*Node
}
