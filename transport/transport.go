package transport

import (
	"context"

	"github.com/waflow/waflow/model"
)

type ConnectionState string

const CONNECTION_STATE_QR ConnectionState = "qr"
const CONNECTION_STATE_OPEN ConnectionState = "open"
const CONNECTION_STATE_CLOSE ConnectionState = "close"

type DisconnectReason string

const REASON_LOGGED_OUT DisconnectReason = "loggedOut"
const REASON_RESTART_REQUIRED DisconnectReason = "restartRequired"
const REASON_UNKNOWN DisconnectReason = "unknown"

type Event interface {
	isEvent()
}

// ConnectionEvent reports a lifecycle change of the underlying chat
// session. Qr carries the raw pairing payload, not a rendered code.
type ConnectionEvent struct {
	State    ConnectionState
	Qr       string
	Reason   DisconnectReason
	Identity string
	Err      error
}

func (*ConnectionEvent) isEvent() {}

type MessageEvent struct {
	From      string
	FromSelf  bool
	Broadcast bool
	Message   model.InboundMessage
}

func (*MessageEvent) isEvent() {}

type Receipt struct {
	MessageId string
}

// Session is one live chat-transport connection. Events delivers
// lifecycle and message events until Close; the channel is closed when
// the session is torn down.
type Session interface {
	SendText(ctx context.Context, address string, text string) (*Receipt, error)

	Logout(ctx context.Context) error

	Close()

	Events() <-chan Event
}

// Factory opens a session for a tenant using whatever credentials the
// tenant has persisted; a tenant with none starts a pairing handshake.
type Factory interface {
	NewSession(ctx context.Context, tenantId string) (Session, error)
}
