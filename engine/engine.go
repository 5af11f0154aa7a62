package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/waflow/waflow/flow"
	"github.com/waflow/waflow/logger"
	"github.com/waflow/waflow/metadata"
	"github.com/waflow/waflow/model"
	"github.com/waflow/waflow/node"
	"github.com/waflow/waflow/persistence"
	"github.com/waflow/waflow/transport"
	"github.com/waflow/waflow/util"
	"go.uber.org/zap"
)

// Sender sends a text message to a contact on behalf of a tenant. The
// connection manager implements it.
type Sender interface {
	SendText(tenantId string, address string, text string) (*transport.Receipt, error)
}

// FlowEngine interprets one node at a time for a contact and persists
// the execution position between inbound messages. Sends and state
// writes are not transactional: a crash between the two can duplicate a
// prompt on the next message, which is acceptable for this domain.
type FlowEngine struct {
	metadataService metadata.Service
	stateStore      persistence.StateStore
	sender          Sender
	locks           *util.KeyedMutex
}

func NewFlowEngine(metadataService metadata.Service, stateStore persistence.StateStore, sender Sender) *FlowEngine {
	return &FlowEngine{
		metadataService: metadataService,
		stateStore:      stateStore,
		sender:          sender,
		locks:           util.NewKeyedMutex(),
	}
}

// ProcessIncomingMessage is the single entry point for inbound
// messages. It never returns or panics an error to the caller: every
// failure below it ends as a log line and a silently ended
// conversation. Messages from the same contact are serialized.
func (e *FlowEngine) ProcessIncomingMessage(tenantId string, contactAddress string, msg model.InboundMessage) {
	key := fmt.Sprintf("%s:%s", tenantId, contactAddress)
	e.locks.Lock(key)
	defer e.locks.Unlock(key)

	text := msg.Text()
	fl, err := e.metadataService.GetActiveFlow(tenantId)
	if err != nil {
		var notFound persistence.NotFoundError
		if errors.As(err, &notFound) {
			logger.Debug("no active flow for tenant", zap.String("tenant", tenantId))
		} else {
			logger.Error("error loading active flow", zap.String("tenant", tenantId), zap.Error(err))
		}
		return
	}

	state, err := e.loadState(tenantId, contactAddress, fl)
	if err != nil {
		return
	}
	if state != nil && state.WaitingForInput {
		e.resume(tenantId, contactAddress, fl, state, text)
		return
	}

	start, err := fl.StartNode()
	if err != nil {
		logger.Error("flow has no usable entry node", zap.String("tenant", tenantId), zap.String("flowId", fl.Id), zap.Error(err))
		return
	}
	state = model.NewContactState(tenantId, contactAddress, fl.Id)
	e.run(tenantId, contactAddress, fl, state, start.GetId())
}

// loadState returns the contact's state for the active flow, or nil
// when the contact has none. A storage failure aborts the message
// instead: the contact may be mid-conversation, and restarting them
// from the entry node on a transient outage is worse than dropping one
// message. A state referencing another flow id is discarded: switching
// the active flow resets every contact mid-conversation.
func (e *FlowEngine) loadState(tenantId string, contactAddress string, fl *flow.Flow) (*model.ContactState, error) {
	state, err := e.stateStore.Get(tenantId, contactAddress)
	if err != nil {
		var notFound persistence.NotFoundError
		if errors.As(err, &notFound) {
			return nil, nil
		}
		logger.Error("error loading contact state", zap.String("tenant", tenantId), zap.String("contact", contactAddress), zap.Error(err))
		return nil, err
	}
	if state.FlowId != fl.Id {
		logger.Info("active flow changed, resetting contact", zap.String("tenant", tenantId), zap.String("contact", contactAddress), zap.String("oldFlowId", state.FlowId), zap.String("flowId", fl.Id))
		if err := e.stateStore.Delete(tenantId, contactAddress); err != nil {
			logger.Error("error deleting stale contact state", zap.String("tenant", tenantId), zap.String("contact", contactAddress), zap.Error(err))
		}
		return nil, nil
	}
	return state, nil
}

// resume binds the reply to the pending variable and continues through
// the node's "received" output. No such edge is a normal terminal case.
func (e *FlowEngine) resume(tenantId string, contactAddress string, fl *flow.Flow, state *model.ContactState, text string) {
	if len(state.PendingVariable) > 0 {
		state.Variables[state.PendingVariable] = text
	}
	state.WaitingForInput = false
	state.PendingVariable = ""
	state.UpdatedAt = time.Now()
	edge, ok := fl.Edge(state.CurrentNodeId, model.HANDLE_RECEIVED)
	if !ok {
		if err := e.stateStore.Put(tenantId, contactAddress, state); err != nil {
			logger.Error("error saving contact state", zap.String("tenant", tenantId), zap.String("contact", contactAddress), zap.Error(err))
		}
		logger.Debug("no received edge, conversation ended", zap.String("tenant", tenantId), zap.String("contact", contactAddress), zap.String("nodeId", state.CurrentNodeId))
		return
	}
	e.run(tenantId, contactAddress, fl, state, edge.Target)
}

// run is the interpreter trampoline: step until a node pauses or
// terminates. Pausing is just not returning a successor, never a
// blocked goroutine.
func (e *FlowEngine) run(tenantId string, contactAddress string, fl *flow.Flow, state *model.ContactState, nodeId string) {
	next := nodeId
	for len(next) > 0 {
		next = e.step(tenantId, contactAddress, fl, state, next)
	}
}

// step executes one node and returns the id of its successor, or empty
// when execution pauses or terminates here.
func (e *FlowEngine) step(tenantId string, contactAddress string, fl *flow.Flow, state *model.ContactState, nodeId string) string {
	n, ok := fl.Nodes[nodeId]
	if !ok {
		logger.Error("edge target missing from graph, conversation ended", zap.String("tenant", tenantId), zap.String("flowId", fl.Id), zap.String("nodeId", nodeId))
		return ""
	}
	// Mark current and clear the waiting flag before acting so a crash
	// mid-send never leaves a stale waiting state behind.
	state.CurrentNodeId = nodeId
	state.WaitingForInput = false
	state.PendingVariable = ""
	state.UpdatedAt = time.Now()
	if err := e.stateStore.Put(tenantId, contactAddress, state); err != nil {
		logger.Error("error saving contact state", zap.String("tenant", tenantId), zap.String("contact", contactAddress), zap.Error(err))
		return ""
	}

	switch n := n.(type) {
	case *node.SendMessage:
		if _, err := e.sender.SendText(tenantId, contactAddress, n.GetText()); err != nil {
			logger.Error("error sending message", zap.String("tenant", tenantId), zap.String("contact", contactAddress), zap.String("nodeId", nodeId), zap.Error(err))
			return ""
		}
		return e.follow(fl, nodeId, model.HANDLE_DEFAULT)
	case *node.WaitForInput:
		if len(n.GetPrompt()) > 0 {
			if _, err := e.sender.SendText(tenantId, contactAddress, n.GetPrompt()); err != nil {
				logger.Error("error sending prompt", zap.String("tenant", tenantId), zap.String("contact", contactAddress), zap.String("nodeId", nodeId), zap.Error(err))
			}
		}
		state.WaitingForInput = true
		state.PendingVariable = n.GetVariable()
		state.UpdatedAt = time.Now()
		if err := e.stateStore.Put(tenantId, contactAddress, state); err != nil {
			logger.Error("error saving waiting state", zap.String("tenant", tenantId), zap.String("contact", contactAddress), zap.Error(err))
		}
		return ""
	case *node.Branch:
		result, err := n.Evaluate(state.Variables)
		if err != nil {
			logger.Error("error evaluating branch, conversation ended", zap.String("tenant", tenantId), zap.String("nodeId", nodeId), zap.Error(err))
			return ""
		}
		if next := e.follow(fl, nodeId, result); len(next) > 0 {
			return next
		}
		return e.follow(fl, nodeId, model.HANDLE_DEFAULT)
	default:
		logger.Warn("unrecognized node kind, conversation ended", zap.String("tenant", tenantId), zap.String("nodeId", nodeId), zap.String("kind", n.GetKind()))
		return ""
	}
}

func (e *FlowEngine) follow(fl *flow.Flow, nodeId string, handle string) string {
	edge, ok := fl.Edge(nodeId, handle)
	if !ok {
		return ""
	}
	return edge.Target
}
