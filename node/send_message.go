package node

import (
	"fmt"

	"github.com/waflow/waflow/model"
)

var _ Node = new(SendMessage)

type SendMessage struct {
	baseNode
	text string
}

func NewSendMessage(id string, text string) *SendMessage {
	return &SendMessage{
		baseNode: newBaseNode(id, model.NODE_KIND_SEND_MESSAGE),
		text:     text,
	}
}

// GetText returns the configured message verbatim; no templating is
// applied anywhere in the engine.
func (s *SendMessage) GetText() string {
	return s.text
}

func (s *SendMessage) Validate() error {
	if len(s.text) == 0 {
		return fmt.Errorf("nodeId=%s, sendMessage node should have text", s.id)
	}
	return nil
}
