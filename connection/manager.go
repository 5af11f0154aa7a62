package connection

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mdp/qrterminal"
	"github.com/waflow/waflow/logger"
	"github.com/waflow/waflow/model"
	"github.com/waflow/waflow/persistence"
	"github.com/waflow/waflow/transport"
	"go.uber.org/zap"
)

// reconnectDelay is the single fixed backoff before retrying after a
// restart-required disconnect.
const reconnectDelay = 5 * time.Second

type NotConnectedError struct {
	TenantId string
}

func (e NotConnectedError) Error() string {
	return fmt.Sprintf("tenant %s is not connected", e.TenantId)
}

// MessageHandler receives every qualifying inbound message. It must
// never propagate a failure back into the event pump.
type MessageHandler interface {
	ProcessIncomingMessage(tenantId string, contactAddress string, msg model.InboundMessage)
}

// Manager supervises one chat-transport session per tenant and owns the
// per-tenant connection status records.
type Manager struct {
	factory         transport.Factory
	credentialStore persistence.CredentialStore
	handler         MessageHandler
	wg              *sync.WaitGroup

	mu       sync.Mutex
	sessions map[string]transport.Session
	statuses map[string]*model.ConnectionStatus
}

func NewManager(factory transport.Factory, credentialStore persistence.CredentialStore, wg *sync.WaitGroup) *Manager {
	return &Manager{
		factory:         factory,
		credentialStore: credentialStore,
		wg:              wg,
		sessions:        make(map[string]transport.Session),
		statuses:        make(map[string]*model.ConnectionStatus),
	}
}

// SetMessageHandler wires the flow engine in after construction; the
// engine needs the manager for sends, so the two cannot be built in one
// step.
func (m *Manager) SetMessageHandler(handler MessageHandler) {
	m.handler = handler
}

// Connect is idempotent: a tenant with a live session is a warning
// no-op. Failures are converted to an error status, never returned.
func (m *Manager) Connect(tenantId string) {
	m.mu.Lock()
	if _, ok := m.sessions[tenantId]; ok {
		m.mu.Unlock()
		logger.Warn("connect called with live session", zap.String("tenant", tenantId))
		return
	}
	m.setStatusLocked(tenantId, &model.ConnectionStatus{Status: model.CONNECTION_CONNECTING})
	m.mu.Unlock()

	session, err := m.factory.NewSession(context.Background(), tenantId)
	if err != nil {
		logger.Error("error opening transport session", zap.String("tenant", tenantId), zap.Error(err))
		m.setStatus(tenantId, &model.ConnectionStatus{Status: model.CONNECTION_ERROR, LastError: err.Error()})
		return
	}

	m.mu.Lock()
	if _, ok := m.sessions[tenantId]; ok {
		m.mu.Unlock()
		session.Close()
		logger.Warn("concurrent connect raced, keeping first session", zap.String("tenant", tenantId))
		return
	}
	m.sessions[tenantId] = session
	m.mu.Unlock()

	m.wg.Add(1)
	go m.pumpEvents(tenantId, session)
}

// Disconnect logs a live session out and tears it down in place. The
// transport emits a logged-out close event only for remote unpairing,
// so the manager does the credential wipe itself; should an event
// arrive anyway it lands on a closed session and is dropped. Without a
// session Disconnect clears credentials directly and marks the tenant
// disconnected.
func (m *Manager) Disconnect(tenantId string) {
	m.mu.Lock()
	session, ok := m.sessions[tenantId]
	m.mu.Unlock()
	if ok {
		if err := session.Logout(context.Background()); err != nil {
			logger.Error("error logging out", zap.String("tenant", tenantId), zap.Error(err))
			return
		}
		m.removeSession(tenantId, session)
		if err := m.credentialStore.Clear(tenantId); err != nil {
			logger.Error("error clearing credentials", zap.String("tenant", tenantId), zap.Error(err))
		}
		m.setStatus(tenantId, &model.ConnectionStatus{Status: model.CONNECTION_LOGGED_OUT})
		return
	}
	if err := m.credentialStore.Clear(tenantId); err != nil {
		logger.Error("error clearing credentials", zap.String("tenant", tenantId), zap.Error(err))
	}
	m.setStatus(tenantId, &model.ConnectionStatus{Status: model.CONNECTION_DISCONNECTED})
}

func (m *Manager) SendText(tenantId string, address string, text string) (*transport.Receipt, error) {
	m.mu.Lock()
	status, ok := m.statuses[tenantId]
	session := m.sessions[tenantId]
	m.mu.Unlock()
	if !ok || status.Status != model.CONNECTION_CONNECTED || session == nil {
		return nil, NotConnectedError{TenantId: tenantId}
	}
	return session.SendText(context.Background(), address, text)
}

// GetStatus is a pure read; unknown tenants get a default disconnected
// record.
func (m *Manager) GetStatus(tenantId string) model.ConnectionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	status, ok := m.statuses[tenantId]
	if !ok {
		return model.ConnectionStatus{Status: model.CONNECTION_DISCONNECTED}
	}
	return *status
}

func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for tenantId, session := range m.sessions {
		session.Close()
		delete(m.sessions, tenantId)
	}
	return nil
}

func (m *Manager) pumpEvents(tenantId string, session transport.Session) {
	defer m.wg.Done()
	for raw := range session.Events() {
		switch evt := raw.(type) {
		case *transport.ConnectionEvent:
			if m.handleConnectionEvent(tenantId, session, evt) {
				return
			}
		case *transport.MessageEvent:
			if evt.FromSelf || evt.Broadcast {
				continue
			}
			if m.handler == nil {
				logger.Warn("inbound message with no handler wired", zap.String("tenant", tenantId))
				continue
			}
			go m.handler.ProcessIncomingMessage(tenantId, evt.From, evt.Message)
		}
	}
}

// handleConnectionEvent returns true once the session is torn down and
// the pump should exit.
func (m *Manager) handleConnectionEvent(tenantId string, session transport.Session, evt *transport.ConnectionEvent) bool {
	switch evt.State {
	case transport.CONNECTION_STATE_QR:
		m.setStatus(tenantId, &model.ConnectionStatus{
			Status: model.CONNECTION_QR_CODE_NEEDED,
			QrCode: renderQr(evt.Qr),
		})
		return false
	case transport.CONNECTION_STATE_OPEN:
		logger.Info("connection open", zap.String("tenant", tenantId), zap.String("identity", evt.Identity))
		m.setStatus(tenantId, &model.ConnectionStatus{
			Status:   model.CONNECTION_CONNECTED,
			Identity: evt.Identity,
		})
		return false
	case transport.CONNECTION_STATE_CLOSE:
		m.handleClose(tenantId, session, evt)
		return true
	}
	return false
}

func (m *Manager) handleClose(tenantId string, session transport.Session, evt *transport.ConnectionEvent) {
	m.removeSession(tenantId, session)
	switch evt.Reason {
	case transport.REASON_LOGGED_OUT:
		logger.Info("tenant logged out", zap.String("tenant", tenantId))
		if err := m.credentialStore.Clear(tenantId); err != nil {
			logger.Error("error clearing credentials", zap.String("tenant", tenantId), zap.Error(err))
		}
		m.setStatus(tenantId, &model.ConnectionStatus{Status: model.CONNECTION_LOGGED_OUT})
	case transport.REASON_RESTART_REQUIRED:
		logger.Info("connection requires restart, reconnecting", zap.String("tenant", tenantId), zap.Duration("after", reconnectDelay))
		m.setStatus(tenantId, &model.ConnectionStatus{Status: model.CONNECTION_CONNECTING})
		time.AfterFunc(reconnectDelay, func() {
			m.Connect(tenantId)
		})
	default:
		message := "connection closed"
		if evt.Err != nil {
			message = evt.Err.Error()
		}
		logger.Error("connection closed with error", zap.String("tenant", tenantId), zap.String("reason", message))
		m.setStatus(tenantId, &model.ConnectionStatus{Status: model.CONNECTION_ERROR, LastError: message})
	}
}

func (m *Manager) removeSession(tenantId string, session transport.Session) {
	m.mu.Lock()
	if m.sessions[tenantId] == session {
		delete(m.sessions, tenantId)
	}
	m.mu.Unlock()
	session.Close()
}

func (m *Manager) setStatus(tenantId string, status *model.ConnectionStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setStatusLocked(tenantId, status)
}

func (m *Manager) setStatusLocked(tenantId string, status *model.ConnectionStatus) {
	m.statuses[tenantId] = status
}

func renderQr(payload string) string {
	var buf bytes.Buffer
	qrterminal.GenerateHalfBlock(payload, qrterminal.L, &buf)
	return buf.String()
}
