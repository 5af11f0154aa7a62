package node

import (
	"fmt"
	"strconv"

	"github.com/dop251/goja"
	"github.com/waflow/waflow/model"
)

var _ Node = new(Branch)

// Branch evaluates a javascript expression against the contact's
// collected variables (bound as $) and routes on the result: the edge
// whose handle equals the stringified value wins, with "default" as
// fallback.
type Branch struct {
	baseNode
	expression string
}

func NewBranch(id string, expression string) *Branch {
	return &Branch{
		baseNode:   newBaseNode(id, model.NODE_KIND_BRANCH),
		expression: expression,
	}
}

func (b *Branch) Validate() error {
	if len(b.expression) == 0 {
		return fmt.Errorf("nodeId=%s, branch node should have an expression", b.id)
	}
	return nil
}

func (b *Branch) Evaluate(variables map[string]string) (string, error) {
	vm := goja.New()
	if err := vm.Set("$", variables); err != nil {
		return "", err
	}
	val, err := vm.RunString(b.expression)
	if err != nil {
		return "", fmt.Errorf("error evaluating branch expression %w", err)
	}
	switch expValue := val.Export().(type) {
	case int64:
		return strconv.FormatInt(expValue, 10), nil
	case float64:
		return strconv.FormatFloat(expValue, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(expValue), nil
	case string:
		return expValue, nil
	default:
		return fmt.Sprintf("%v", expValue), nil
	}
}
