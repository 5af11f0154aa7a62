package model

import "time"

// ContactState is the resumable execution position of one contact in a
// tenant's flow, keyed by (TenantId, ContactAddress).
type ContactState struct {
	TenantId        string            `json:"tenantId"`
	ContactAddress  string            `json:"contactAddress"`
	FlowId          string            `json:"flowId"`
	CurrentNodeId   string            `json:"currentNodeId,omitempty"`
	WaitingForInput bool              `json:"waitingForInput"`
	PendingVariable string            `json:"pendingVariable,omitempty"`
	Variables       map[string]string `json:"variables"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

func NewContactState(tenantId string, contactAddress string, flowId string) *ContactState {
	return &ContactState{
		TenantId:       tenantId,
		ContactAddress: contactAddress,
		FlowId:         flowId,
		Variables:      make(map[string]string),
		UpdatedAt:      time.Now(),
	}
}
