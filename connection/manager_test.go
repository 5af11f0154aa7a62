package connection

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/waflow/waflow/model"
	"github.com/waflow/waflow/transport"
)

type fakeSession struct {
	events    chan transport.Event
	closeOnce sync.Once
	mu        sync.Mutex
	sent      []string
	logoutErr error
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		events: make(chan transport.Event, 16),
	}
}

func (f *fakeSession) SendText(ctx context.Context, address string, text string) (*transport.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return &transport.Receipt{MessageId: "r1"}, nil
}

// Logout does not emit a close event: the real transport only does so
// for remote unpairing, never for a locally initiated logout.
func (f *fakeSession) Logout(ctx context.Context) error {
	return f.logoutErr
}

func (f *fakeSession) Close() {
	f.closeOnce.Do(func() {
		close(f.events)
	})
}

func (f *fakeSession) Events() <-chan transport.Event {
	return f.events
}

type fakeFactory struct {
	mu       sync.Mutex
	sessions []*fakeSession
	err      error
}

func (f *fakeFactory) NewSession(ctx context.Context, tenantId string) (transport.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	s := newFakeSession()
	f.sessions = append(f.sessions, s)
	return s, nil
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

type fakeCredentialStore struct {
	mu      sync.Mutex
	cleared []string
}

func (f *fakeCredentialStore) Dir(tenantId string) (string, error) {
	return "/tmp/creds/" + tenantId, nil
}

func (f *fakeCredentialStore) HasCredentials(tenantId string) (bool, error) {
	return false, nil
}

func (f *fakeCredentialStore) Clear(tenantId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, tenantId)
	return nil
}

func (f *fakeCredentialStore) clearedTenants() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.cleared...)
}

type fakeHandler struct {
	received chan string
}

func (f *fakeHandler) ProcessIncomingMessage(tenantId string, contactAddress string, msg model.InboundMessage) {
	f.received <- contactAddress + ":" + msg.Text()
}

type managerFixture struct {
	manager *Manager
	factory *fakeFactory
	creds   *fakeCredentialStore
	wg      sync.WaitGroup
}

func newManagerFixture() *managerFixture {
	f := &managerFixture{
		factory: &fakeFactory{},
		creds:   &fakeCredentialStore{},
	}
	f.manager = NewManager(f.factory, f.creds, &f.wg)
	return f
}

func (f *managerFixture) session(i int) *fakeSession {
	f.factory.mu.Lock()
	defer f.factory.mu.Unlock()
	return f.factory.sessions[i]
}

func (f *managerFixture) waitForStatus(t *testing.T, tenantId string, expected model.ConnectionState) model.ConnectionStatus {
	t.Helper()
	var status model.ConnectionStatus
	require.Eventually(t, func() bool {
		status = f.manager.GetStatus(tenantId)
		return status.Status == expected
	}, 2*time.Second, 10*time.Millisecond)
	return status
}

func TestConnectIsIdempotent(t *testing.T) {
	f := newManagerFixture()
	f.manager.Connect("t-1")
	f.manager.Connect("t-1")

	require.Equal(t, 1, f.factory.count())
	require.Equal(t, model.CONNECTION_CONNECTING, f.manager.GetStatus("t-1").Status)
}

func TestUnknownTenantStatusDefaultsToDisconnected(t *testing.T) {
	f := newManagerFixture()
	require.Equal(t, model.CONNECTION_DISCONNECTED, f.manager.GetStatus("nobody").Status)
}

func TestSessionFailureBecomesErrorStatus(t *testing.T) {
	f := newManagerFixture()
	f.factory.err = errors.New("no network")

	f.manager.Connect("t-1")

	status := f.manager.GetStatus("t-1")
	require.Equal(t, model.CONNECTION_ERROR, status.Status)
	require.Equal(t, "no network", status.LastError)

	// a later connect can retry cleanly
	f.factory.err = nil
	f.manager.Connect("t-1")
	require.Equal(t, 1, f.factory.count())
}

func TestQrEventRendersCode(t *testing.T) {
	f := newManagerFixture()
	f.manager.Connect("t-1")
	f.session(0).events <- &transport.ConnectionEvent{State: transport.CONNECTION_STATE_QR, Qr: "pairing-payload"}

	status := f.waitForStatus(t, "t-1", model.CONNECTION_QR_CODE_NEEDED)
	require.NotEmpty(t, status.QrCode)
	require.NotEqual(t, "pairing-payload", status.QrCode)
}

func TestOpenEventSetsConnected(t *testing.T) {
	f := newManagerFixture()
	f.manager.Connect("t-1")
	f.session(0).events <- &transport.ConnectionEvent{State: transport.CONNECTION_STATE_QR, Qr: "pairing-payload"}
	f.waitForStatus(t, "t-1", model.CONNECTION_QR_CODE_NEEDED)

	f.session(0).events <- &transport.ConnectionEvent{State: transport.CONNECTION_STATE_OPEN, Identity: "5511888"}

	status := f.waitForStatus(t, "t-1", model.CONNECTION_CONNECTED)
	require.Equal(t, "5511888", status.Identity)
	require.Empty(t, status.QrCode)
	require.Empty(t, status.LastError)
}

func TestLoggedOutWipesCredentials(t *testing.T) {
	f := newManagerFixture()
	f.manager.Connect("t-1")
	f.session(0).events <- &transport.ConnectionEvent{State: transport.CONNECTION_STATE_OPEN, Identity: "5511888"}
	f.waitForStatus(t, "t-1", model.CONNECTION_CONNECTED)

	f.session(0).events <- &transport.ConnectionEvent{State: transport.CONNECTION_STATE_CLOSE, Reason: transport.REASON_LOGGED_OUT}

	f.waitForStatus(t, "t-1", model.CONNECTION_LOGGED_OUT)
	require.Eventually(t, func() bool {
		return len(f.creds.clearedTenants()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	_, err := f.manager.SendText("t-1", "5511999", "Hi")
	require.Error(t, err)
}

func TestUnexpectedCloseBecomesErrorStatus(t *testing.T) {
	f := newManagerFixture()
	f.manager.Connect("t-1")
	f.session(0).events <- &transport.ConnectionEvent{State: transport.CONNECTION_STATE_OPEN}
	f.waitForStatus(t, "t-1", model.CONNECTION_CONNECTED)

	f.session(0).events <- &transport.ConnectionEvent{
		State:  transport.CONNECTION_STATE_CLOSE,
		Reason: transport.REASON_UNKNOWN,
		Err:    errors.New("stream error: 503"),
	}

	status := f.waitForStatus(t, "t-1", model.CONNECTION_ERROR)
	require.Equal(t, "stream error: 503", status.LastError)
	require.Empty(t, f.creds.clearedTenants())
}

func TestRestartRequiredGoesBackToConnecting(t *testing.T) {
	f := newManagerFixture()
	f.manager.Connect("t-1")
	f.session(0).events <- &transport.ConnectionEvent{State: transport.CONNECTION_STATE_OPEN}
	f.waitForStatus(t, "t-1", model.CONNECTION_CONNECTED)

	f.session(0).events <- &transport.ConnectionEvent{State: transport.CONNECTION_STATE_CLOSE, Reason: transport.REASON_RESTART_REQUIRED}

	f.waitForStatus(t, "t-1", model.CONNECTION_CONNECTING)
	_, err := f.manager.SendText("t-1", "5511999", "Hi")
	var notConnected NotConnectedError
	require.ErrorAs(t, err, &notConnected)
}

func TestSendRequiresConnectedStatus(t *testing.T) {
	f := newManagerFixture()
	_, err := f.manager.SendText("t-1", "5511999", "Hi")
	var notConnected NotConnectedError
	require.ErrorAs(t, err, &notConnected)
	require.Equal(t, "t-1", notConnected.TenantId)

	f.manager.Connect("t-1")
	_, err = f.manager.SendText("t-1", "5511999", "Hi")
	require.Error(t, err)

	f.session(0).events <- &transport.ConnectionEvent{State: transport.CONNECTION_STATE_OPEN}
	f.waitForStatus(t, "t-1", model.CONNECTION_CONNECTED)

	receipt, err := f.manager.SendText("t-1", "5511999", "Hi")
	require.NoError(t, err)
	require.Equal(t, "r1", receipt.MessageId)
	require.Equal(t, []string{"Hi"}, f.session(0).sent)
}

func TestInboundMessagesReachTheHandler(t *testing.T) {
	f := newManagerFixture()
	handler := &fakeHandler{received: make(chan string, 8)}
	f.manager.SetMessageHandler(handler)
	f.manager.Connect("t-1")
	f.session(0).events <- &transport.ConnectionEvent{State: transport.CONNECTION_STATE_OPEN}
	f.waitForStatus(t, "t-1", model.CONNECTION_CONNECTED)

	f.session(0).events <- &transport.MessageEvent{From: "me", FromSelf: true, Message: model.InboundMessage{Conversation: "self"}}
	f.session(0).events <- &transport.MessageEvent{From: "everyone", Broadcast: true, Message: model.InboundMessage{Conversation: "status"}}
	f.session(0).events <- &transport.MessageEvent{From: "5511999", Message: model.InboundMessage{Conversation: "hello"}}

	select {
	case got := <-handler.received:
		require.Equal(t, "5511999:hello", got)
	case <-time.After(2 * time.Second):
		t.Fatal("message never reached the handler")
	}
	require.Empty(t, handler.received)
}

func TestDisconnectWithoutSessionClearsCredentials(t *testing.T) {
	f := newManagerFixture()
	f.manager.Disconnect("t-1")

	require.Equal(t, []string{"t-1"}, f.creds.clearedTenants())
	require.Equal(t, model.CONNECTION_DISCONNECTED, f.manager.GetStatus("t-1").Status)
}

func TestDisconnectWithLiveSessionLogsOut(t *testing.T) {
	f := newManagerFixture()
	f.manager.Connect("t-1")
	f.session(0).events <- &transport.ConnectionEvent{State: transport.CONNECTION_STATE_OPEN}
	f.waitForStatus(t, "t-1", model.CONNECTION_CONNECTED)

	f.manager.Disconnect("t-1")

	require.Equal(t, model.CONNECTION_LOGGED_OUT, f.manager.GetStatus("t-1").Status)
	require.Equal(t, []string{"t-1"}, f.creds.clearedTenants())
	_, err := f.manager.SendText("t-1", "5511999", "Hi")
	require.Error(t, err)

	// the tenant can pair again from scratch
	f.manager.Connect("t-1")
	require.Equal(t, 2, f.factory.count())
}

func TestDisconnectKeepsSessionWhenLogoutFails(t *testing.T) {
	f := newManagerFixture()
	f.manager.Connect("t-1")
	f.session(0).events <- &transport.ConnectionEvent{State: transport.CONNECTION_STATE_OPEN}
	f.waitForStatus(t, "t-1", model.CONNECTION_CONNECTED)
	f.session(0).logoutErr = errors.New("logout rejected")

	f.manager.Disconnect("t-1")

	require.Equal(t, model.CONNECTION_CONNECTED, f.manager.GetStatus("t-1").Status)
	require.Empty(t, f.creds.clearedTenants())
	_, err := f.manager.SendText("t-1", "5511999", "Hi")
	require.NoError(t, err)
}
