package flow

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/waflow/waflow/model"
	"github.com/waflow/waflow/node"
)

func testGraph(nodes []model.Node, edges []model.Edge) *model.Flow {
	return &model.Flow{
		Id:       "fl-1",
		TenantId: "t-1",
		Name:     "welcome",
		Status:   model.FLOW_STATUS_ACTIVE,
		Graph: model.Graph{
			Nodes: nodes,
			Edges: edges,
		},
	}
}

func TestConvertBuildsTypedNodes(t *testing.T) {
	fl := Convert(testGraph([]model.Node{
		{Id: "a", Kind: model.NODE_KIND_SEND_MESSAGE, Data: model.NodeData{Text: "Hi"}},
		{Id: "b", Kind: model.NODE_KIND_WAIT_FOR_INPUT, Data: model.NodeData{Prompt: "Name?", Variable: "name"}},
		{Id: "c", Kind: model.NODE_KIND_BRANCH, Data: model.NodeData{Expression: "$.name"}},
		{Id: "d", Kind: "carousel"},
	}, nil))

	require.IsType(t, &node.SendMessage{}, fl.Nodes["a"])
	require.IsType(t, &node.WaitForInput{}, fl.Nodes["b"])
	require.IsType(t, &node.Branch{}, fl.Nodes["c"])
	require.Equal(t, "carousel", fl.Nodes["d"].GetKind())
}

func TestStartNode(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T){
		"unique entry node is the start": func(t *testing.T) {
			fl := Convert(testGraph([]model.Node{
				{Id: "a", Kind: model.NODE_KIND_SEND_MESSAGE, Data: model.NodeData{Text: "Hi"}},
				{Id: "b", Kind: model.NODE_KIND_SEND_MESSAGE, Data: model.NodeData{Text: "Bye"}},
			}, []model.Edge{
				{Source: "a", SourceHandle: model.HANDLE_DEFAULT, Target: "b"},
			}))
			start, err := fl.StartNode()
			require.NoError(t, err)
			require.Equal(t, "a", start.GetId())
		},
		"cycle has no entry node": func(t *testing.T) {
			fl := Convert(testGraph([]model.Node{
				{Id: "a", Kind: model.NODE_KIND_SEND_MESSAGE, Data: model.NodeData{Text: "Hi"}},
				{Id: "b", Kind: model.NODE_KIND_SEND_MESSAGE, Data: model.NodeData{Text: "Bye"}},
			}, []model.Edge{
				{Source: "a", SourceHandle: model.HANDLE_DEFAULT, Target: "b"},
				{Source: "b", SourceHandle: model.HANDLE_DEFAULT, Target: "a"},
			}))
			_, err := fl.StartNode()
			require.Error(t, err)
		},
		"two entry nodes are ambiguous": func(t *testing.T) {
			fl := Convert(testGraph([]model.Node{
				{Id: "a", Kind: model.NODE_KIND_SEND_MESSAGE, Data: model.NodeData{Text: "Hi"}},
				{Id: "b", Kind: model.NODE_KIND_SEND_MESSAGE, Data: model.NodeData{Text: "Bye"}},
				{Id: "c", Kind: model.NODE_KIND_SEND_MESSAGE, Data: model.NodeData{Text: "Later"}},
			}, []model.Edge{
				{Source: "a", SourceHandle: model.HANDLE_DEFAULT, Target: "c"},
			}))
			_, err := fl.StartNode()
			require.Error(t, err)
		},
	} {
		t.Run(scenario, fn)
	}
}

func TestEdgeFirstMatchWins(t *testing.T) {
	fl := Convert(testGraph([]model.Node{
		{Id: "a", Kind: model.NODE_KIND_SEND_MESSAGE, Data: model.NodeData{Text: "Hi"}},
		{Id: "b", Kind: model.NODE_KIND_SEND_MESSAGE, Data: model.NodeData{Text: "first"}},
		{Id: "c", Kind: model.NODE_KIND_SEND_MESSAGE, Data: model.NodeData{Text: "second"}},
	}, []model.Edge{
		{Source: "a", SourceHandle: model.HANDLE_DEFAULT, Target: "b"},
		{Source: "a", SourceHandle: model.HANDLE_DEFAULT, Target: "c"},
	}))

	edge, ok := fl.Edge("a", model.HANDLE_DEFAULT)
	require.True(t, ok)
	require.Equal(t, "b", edge.Target)
}

func TestEdgeHandleMismatch(t *testing.T) {
	fl := Convert(testGraph([]model.Node{
		{Id: "a", Kind: model.NODE_KIND_WAIT_FOR_INPUT, Data: model.NodeData{Variable: "v"}},
		{Id: "b", Kind: model.NODE_KIND_SEND_MESSAGE, Data: model.NodeData{Text: "Hi"}},
	}, []model.Edge{
		{Source: "a", SourceHandle: model.HANDLE_RECEIVED, Target: "b"},
	}))

	_, ok := fl.Edge("a", model.HANDLE_DEFAULT)
	require.False(t, ok)
	edge, ok := fl.Edge("a", model.HANDLE_RECEIVED)
	require.True(t, ok)
	require.Equal(t, "b", edge.Target)
}

func TestValidate(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T){
		"valid graph": func(t *testing.T) {
			err := Validate(testGraph([]model.Node{
				{Id: "a", Kind: model.NODE_KIND_SEND_MESSAGE, Data: model.NodeData{Text: "Hi"}},
				{Id: "b", Kind: model.NODE_KIND_WAIT_FOR_INPUT, Data: model.NodeData{Variable: "name"}},
			}, []model.Edge{
				{Source: "a", SourceHandle: model.HANDLE_DEFAULT, Target: "b"},
			}))
			require.NoError(t, err)
		},
		"duplicate node id": func(t *testing.T) {
			err := Validate(testGraph([]model.Node{
				{Id: "a", Kind: model.NODE_KIND_SEND_MESSAGE, Data: model.NodeData{Text: "Hi"}},
				{Id: "a", Kind: model.NODE_KIND_SEND_MESSAGE, Data: model.NodeData{Text: "Bye"}},
			}, nil))
			require.Error(t, err)
		},
		"edge to unknown node": func(t *testing.T) {
			err := Validate(testGraph([]model.Node{
				{Id: "a", Kind: model.NODE_KIND_SEND_MESSAGE, Data: model.NodeData{Text: "Hi"}},
			}, []model.Edge{
				{Source: "a", SourceHandle: model.HANDLE_DEFAULT, Target: "ghost"},
			}))
			require.Error(t, err)
		},
		"sendMessage without text": func(t *testing.T) {
			err := Validate(testGraph([]model.Node{
				{Id: "a", Kind: model.NODE_KIND_SEND_MESSAGE},
			}, nil))
			require.Error(t, err)
		},
		"waitForInput without variable": func(t *testing.T) {
			err := Validate(testGraph([]model.Node{
				{Id: "a", Kind: model.NODE_KIND_WAIT_FOR_INPUT, Data: model.NodeData{Prompt: "Name?"}},
			}, nil))
			require.Error(t, err)
		},
	} {
		t.Run(scenario, fn)
	}
}
