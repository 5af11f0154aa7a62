package node

import (
	"fmt"

	"github.com/waflow/waflow/model"
)

var _ Node = new(WaitForInput)

type WaitForInput struct {
	baseNode
	prompt   string
	variable string
}

func NewWaitForInput(id string, prompt string, variable string) *WaitForInput {
	return &WaitForInput{
		baseNode: newBaseNode(id, model.NODE_KIND_WAIT_FOR_INPUT),
		prompt:   prompt,
		variable: variable,
	}
}

// GetPrompt may be empty; a waitForInput node without a prompt pauses
// silently.
func (w *WaitForInput) GetPrompt() string {
	return w.prompt
}

func (w *WaitForInput) GetVariable() string {
	return w.variable
}

func (w *WaitForInput) Validate() error {
	if len(w.variable) == 0 {
		return fmt.Errorf("nodeId=%s, waitForInput node should have a variable name", w.id)
	}
	return nil
}
