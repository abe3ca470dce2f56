package flowgraph

import (
	"errors"
	"fmt"

	"github.com/kalidas7337/whatsapp-saas-sub000/internal/models"
	"github.com/kalidas7337/whatsapp-saas-sub000/internal/rules"
)

// Load-time validation errors.
var (
	ErrNoNodes             = errors.New("flow has no nodes")
	ErrMissingStartNode    = errors.New("start node not found among flow nodes")
	ErrDuplicateNodeID     = errors.New("duplicate node id")
	ErrDanglingEdge        = errors.New("edge references a missing node")
	ErrInvalidNodeData     = errors.New("invalid node data")
	ErrUnsupportedNodeType = errors.New("node type has no executor")
	ErrUnknownNodeType     = errors.New("unknown node type")
)

// Node is one validated, typed step of a compiled graph.
type Node struct {
	ID     string
	Type   models.NodeType
	Config NodeConfig
}

// Edge is one validated transition with its parsed condition; Cond is nil for
// unconditional edges.
type Edge struct {
	Source string
	Target string
	Cond   *Condition
}

// Graph is a compiled, validated flow definition ready for execution.
type Graph struct {
	StartNodeID string
	nodes       map[string]Node
	// edges preserves declaration order per source node; ResolveNext's
	// first-match rules depend on it.
	edges map[string][]Edge
}

// Compile validates a persisted flow definition and produces an executable
// graph. All structural problems are surfaced here, once per flow load,
// instead of stalling a conversation mid-chain.
func Compile(def models.FlowDefinition, ev rules.Evaluator) (*Graph, error) {
	if len(def.Nodes) == 0 {
		return nil, ErrNoNodes
	}

	g := &Graph{
		StartNodeID: def.StartNodeID,
		nodes:       make(map[string]Node, len(def.Nodes)),
		edges:       make(map[string][]Edge),
	}

	for _, raw := range def.Nodes {
		if raw.ID == "" {
			return nil, fmt.Errorf("%w: empty id", ErrDuplicateNodeID)
		}
		if _, exists := g.nodes[raw.ID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateNodeID, raw.ID)
		}
		cfg, err := decodeNodeConfig(raw)
		if err != nil {
			return nil, err
		}
		g.nodes[raw.ID] = Node{ID: raw.ID, Type: raw.Type, Config: cfg}
	}

	if _, ok := g.nodes[def.StartNodeID]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingStartNode, def.StartNodeID)
	}

	for _, raw := range def.Edges {
		if _, ok := g.nodes[raw.Source]; !ok {
			return nil, fmt.Errorf("%w: source %q", ErrDanglingEdge, raw.Source)
		}
		if _, ok := g.nodes[raw.Target]; !ok {
			return nil, fmt.Errorf("%w: target %q", ErrDanglingEdge, raw.Target)
		}
		edge := Edge{Source: raw.Source, Target: raw.Target}
		if raw.Condition != "" {
			cond := ParseCondition(raw.Condition, ev)
			edge.Cond = &cond
		}
		g.edges[raw.Source] = append(g.edges[raw.Source], edge)
	}

	return g, nil
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// OutgoingEdges returns the edges leaving a node in declaration order.
func (g *Graph) OutgoingEdges(nodeID string) []Edge {
	return g.edges[nodeID]
}

// ResolveNext picks the next node after nodeID: zero edges means the flow
// ends; a single edge is taken unconditionally; with multiple edges the first
// satisfied condition wins in declaration order, then the first unconditioned
// edge, otherwise the flow ends.
func (g *Graph) ResolveNext(nodeID string, env Env) (string, bool) {
	edges := g.edges[nodeID]
	switch len(edges) {
	case 0:
		return "", false
	case 1:
		return edges[0].Target, true
	}

	for _, edge := range edges {
		if edge.Cond != nil && edge.Cond.Evaluate(env) {
			return edge.Target, true
		}
	}
	for _, edge := range edges {
		if edge.Cond == nil {
			return edge.Target, true
		}
	}
	return "", false
}
