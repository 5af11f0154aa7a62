package node

// Node is one step of a compiled flow. Concrete types form the closed
// set of executable kinds; the engine type-switches over them, so a new
// kind is a compile-visible change there and in flow.Convert.
type Node interface {
	GetId() string
	GetKind() string
	Validate() error
}

type baseNode struct {
	id   string
	kind string
}

func newBaseNode(id string, kind string) baseNode {
	return baseNode{
		id:   id,
		kind: kind,
	}
}

func (bn *baseNode) GetId() string {
	return bn.id
}

func (bn *baseNode) GetKind() string {
	return bn.kind
}

func (bn *baseNode) Validate() error {
	return nil
}

var _ Node = new(unknownNode)

// unknownNode preserves a kind this build does not recognize. The
// engine treats it as terminal instead of failing the whole graph.
type unknownNode struct {
	baseNode
}

func NewUnknown(id string, kind string) *unknownNode {
	return &unknownNode{
		baseNode: newBaseNode(id, kind),
	}
}
