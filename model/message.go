package model

// InboundMessage mirrors the two text-bearing message shapes the
// transport delivers: a plain conversation string or an extended text
// (quote/link preview wrapper).
type InboundMessage struct {
	Conversation string        `json:"conversation,omitempty"`
	ExtendedText *ExtendedText `json:"extendedText,omitempty"`
}

type ExtendedText struct {
	Text string `json:"text"`
}

func (m InboundMessage) Text() string {
	if m.Conversation != "" {
		return m.Conversation
	}
	if m.ExtendedText != nil {
		return m.ExtendedText.Text
	}
	return ""
}
