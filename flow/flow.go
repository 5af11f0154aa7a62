package flow

import (
	"fmt"

	"github.com/waflow/waflow/model"
	"github.com/waflow/waflow/node"
)

// Flow is the compiled, executable form of a stored flow graph. Edges
// keep their payload order: when the authoring tool emits duplicate
// (source, handle) pairs the first one wins, and that tie-break is
// load-bearing for existing graphs.
type Flow struct {
	Id    string
	Nodes map[string]node.Node
	Edges []model.Edge
}

func Convert(fl *model.Flow) *Flow {
	nodeMap := make(map[string]node.Node)
	for _, nodeDef := range fl.Graph.Nodes {
		var n node.Node
		switch nodeDef.Kind {
		case model.NODE_KIND_SEND_MESSAGE:
			n = node.NewSendMessage(nodeDef.Id, nodeDef.Data.Text)
		case model.NODE_KIND_WAIT_FOR_INPUT:
			n = node.NewWaitForInput(nodeDef.Id, nodeDef.Data.Prompt, nodeDef.Data.Variable)
		case model.NODE_KIND_BRANCH:
			n = node.NewBranch(nodeDef.Id, nodeDef.Data.Expression)
		default:
			n = node.NewUnknown(nodeDef.Id, nodeDef.Kind)
		}
		nodeMap[nodeDef.Id] = n
	}
	return &Flow{
		Id:    fl.Id,
		Nodes: nodeMap,
		Edges: fl.Graph.Edges,
	}
}

func Validate(fl *model.Flow) error {
	validNodeId := make(map[string]any)
	for _, nodeDef := range fl.Graph.Nodes {
		if _, ok := validNodeId[nodeDef.Id]; ok {
			return fmt.Errorf("node id %s is duplicate", nodeDef.Id)
		}
		validNodeId[nodeDef.Id] = ""
	}
	for _, edge := range fl.Graph.Edges {
		if _, ok := validNodeId[edge.Source]; !ok {
			return fmt.Errorf("edge source %s is not a node in the flow", edge.Source)
		}
		if _, ok := validNodeId[edge.Target]; !ok {
			return fmt.Errorf("edge target %s is not a node in the flow", edge.Target)
		}
	}
	compiled := Convert(fl)
	for _, n := range compiled.Nodes {
		if err := n.Validate(); err != nil {
			return err
		}
	}
	if _, err := compiled.StartNode(); err != nil {
		return err
	}
	return nil
}

// StartNode is the unique node that is never the target of any edge.
// Zero or more than one such node means the graph has no well-defined
// entry and execution must not start.
func (f *Flow) StartNode() (node.Node, error) {
	targets := make(map[string]any)
	for _, edge := range f.Edges {
		targets[edge.Target] = ""
	}
	var start node.Node
	for id, n := range f.Nodes {
		if _, ok := targets[id]; ok {
			continue
		}
		if start != nil {
			return nil, fmt.Errorf("flow %s has more than one entry node", f.Id)
		}
		start = n
	}
	if start == nil {
		return nil, fmt.Errorf("flow %s has no entry node", f.Id)
	}
	return start, nil
}

// Edge returns the first edge leaving source through the named handle,
// in payload order.
func (f *Flow) Edge(source string, handle string) (*model.Edge, bool) {
	for i := range f.Edges {
		if f.Edges[i].Source == source && f.Edges[i].SourceHandle == handle {
			return &f.Edges[i], true
		}
	}
	return nil, false
}
