package model

import "time"

type FlowStatus string

const FLOW_STATUS_DRAFT FlowStatus = "draft"
const FLOW_STATUS_ACTIVE FlowStatus = "active"
const FLOW_STATUS_INACTIVE FlowStatus = "inactive"

// Handle names on node outputs. HANDLE_RECEIVED is the output of a
// waitForInput node that fires once the contact's reply arrives;
// HANDLE_DEFAULT is the plain continue output of every other node.
const HANDLE_DEFAULT string = "default"
const HANDLE_RECEIVED string = "received"

const NODE_KIND_SEND_MESSAGE string = "sendMessage"
const NODE_KIND_WAIT_FOR_INPUT string = "waitForInput"
const NODE_KIND_BRANCH string = "branch"

type Flow struct {
	Id         string     `json:"id"`
	TenantId   string     `json:"tenantId"`
	CampaignId string     `json:"campaignId,omitempty"`
	Name       string     `json:"name"`
	Status     FlowStatus `json:"status"`
	Graph      Graph      `json:"graph"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

type Node struct {
	Id   string   `json:"id"`
	Kind string   `json:"kind"`
	Data NodeData `json:"data"`
}

// NodeData carries the union of all kind-specific fields; the node
// package picks the ones its kind needs.
type NodeData struct {
	Text       string `json:"text,omitempty"`
	Prompt     string `json:"prompt,omitempty"`
	Variable   string `json:"variable,omitempty"`
	Expression string `json:"expression,omitempty"`
}

type Edge struct {
	Source       string `json:"source"`
	SourceHandle string `json:"sourceHandle"`
	Target       string `json:"target"`
}
