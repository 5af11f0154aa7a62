package whatsapp

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/waflow/waflow/logger"
	"github.com/waflow/waflow/model"
	"github.com/waflow/waflow/persistence"
	"github.com/waflow/waflow/transport"
	"go.mau.fi/whatsmeow"
	waProto "go.mau.fi/whatsmeow/binary/proto"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
)

var _ transport.Factory = new(Factory)

// Factory opens whatsmeow sessions backed by a per-tenant sqlite
// credential store. A tenant without stored credentials goes through
// the QR pairing handshake on first connect.
type Factory struct {
	credentialStore persistence.CredentialStore
}

func NewFactory(credentialStore persistence.CredentialStore) *Factory {
	return &Factory{
		credentialStore: credentialStore,
	}
}

func (f *Factory) NewSession(ctx context.Context, tenantId string) (transport.Session, error) {
	dir, err := f.credentialStore.Dir(tenantId)
	if err != nil {
		return nil, err
	}
	dbPath := filepath.Join(dir, "session.db")
	container, err := sqlstore.New("sqlite3", "file:"+dbPath+"?_foreign_keys=on", waLog.Noop)
	if err != nil {
		return nil, fmt.Errorf("error opening credential container %w", err)
	}
	device, err := container.GetFirstDevice()
	if err == sql.ErrNoRows {
		device = container.NewDevice()
	} else if err != nil {
		return nil, fmt.Errorf("error loading device credentials %w", err)
	}
	client := whatsmeow.NewClient(device, waLog.Noop)
	client.EnableAutoReconnect = false

	s := &session{
		tenantId: tenantId,
		client:   client,
		events:   make(chan transport.Event, 64),
	}
	s.handlerId = client.AddEventHandler(s.handleEvent)

	if client.Store.ID == nil {
		qrChan, err := client.GetQRChannel(ctx)
		if err != nil {
			return nil, fmt.Errorf("error opening qr channel %w", err)
		}
		go s.pumpQr(qrChan)
	}
	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("error connecting to whatsapp %w", err)
	}
	return s, nil
}

var _ transport.Session = new(session)

type session struct {
	tenantId  string
	client    *whatsmeow.Client
	events    chan transport.Event
	handlerId uint32

	mu     sync.Mutex
	closed bool
}

func (s *session) SendText(ctx context.Context, address string, text string) (*transport.Receipt, error) {
	jid, err := canonicalJid(address)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.SendMessage(ctx, jid, &waProto.Message{
		Conversation: proto.String(text),
	})
	if err != nil {
		return nil, err
	}
	return &transport.Receipt{MessageId: resp.ID}, nil
}

func (s *session) Logout(ctx context.Context) error {
	return s.client.Logout()
}

// Close is idempotent: the manager can tear a session down from two
// paths at once (a close event racing Stop or Disconnect).
func (s *session) Close() {
	s.client.RemoveEventHandler(s.handlerId)
	s.client.Disconnect()
	s.closeEvents()
}

func (s *session) closeEvents() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.events)
}

func (s *session) Events() <-chan transport.Event {
	return s.events
}

func (s *session) pumpQr(qrChan <-chan whatsmeow.QRChannelItem) {
	for evt := range qrChan {
		if evt.Event == "code" {
			s.emit(&transport.ConnectionEvent{State: transport.CONNECTION_STATE_QR, Qr: evt.Code})
		}
	}
}

func (s *session) handleEvent(raw interface{}) {
	switch evt := raw.(type) {
	case *events.Connected:
		var identity string
		if s.client.Store.ID != nil {
			identity = s.client.Store.ID.User
		}
		s.emit(&transport.ConnectionEvent{State: transport.CONNECTION_STATE_OPEN, Identity: identity})
	case *events.LoggedOut:
		s.emit(&transport.ConnectionEvent{
			State:  transport.CONNECTION_STATE_CLOSE,
			Reason: transport.REASON_LOGGED_OUT,
			Err:    fmt.Errorf("logged out: %s", evt.Reason.String()),
		})
	case *events.Disconnected:
		s.emit(&transport.ConnectionEvent{
			State:  transport.CONNECTION_STATE_CLOSE,
			Reason: transport.REASON_RESTART_REQUIRED,
			Err:    fmt.Errorf("server closed the connection"),
		})
	case *events.StreamError:
		s.emit(&transport.ConnectionEvent{
			State:  transport.CONNECTION_STATE_CLOSE,
			Reason: transport.REASON_UNKNOWN,
			Err:    fmt.Errorf("stream error: %s", evt.Code),
		})
	case *events.Message:
		s.emit(&transport.MessageEvent{
			From:      evt.Info.Sender.User,
			FromSelf:  evt.Info.IsFromMe,
			Broadcast: evt.Info.Chat.Server == types.BroadcastServer,
			Message:   toInboundMessage(evt.Message),
		})
	}
}

// emit drops events once the session is torn down: the qr pump and
// in-flight whatsmeow callbacks can outlive Close, and whatsmeow
// delivers both a StreamError and a Disconnected for one incident.
func (s *session) emit(evt transport.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- evt:
	default:
		logger.Warn("transport event channel full, dropping event", zap.String("tenant", s.tenantId))
	}
}

func toInboundMessage(msg *waProto.Message) model.InboundMessage {
	inbound := model.InboundMessage{
		Conversation: msg.GetConversation(),
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		inbound.ExtendedText = &model.ExtendedText{Text: ext.GetText()}
	}
	return inbound
}

// canonicalJid accepts a bare number or a full jid string; a bare
// number is a classic 1:1 chat address.
func canonicalJid(address string) (types.JID, error) {
	address = strings.TrimSpace(address)
	if !strings.Contains(address, "@") {
		return types.NewJID(address, types.DefaultUserServer), nil
	}
	return types.ParseJID(address)
}
