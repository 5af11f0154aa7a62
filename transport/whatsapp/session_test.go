package whatsapp

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/waflow/waflow/transport"
)

func newTestSession() *session {
	return &session{
		tenantId: "t-1",
		events:   make(chan transport.Event, 4),
	}
}

func TestEmitAfterTeardownIsDropped(t *testing.T) {
	s := newTestSession()
	s.closeEvents()

	// a late qr pump tick or a trailing whatsmeow callback must not
	// panic on the closed channel
	require.NotPanics(t, func() {
		s.emit(&transport.ConnectionEvent{State: transport.CONNECTION_STATE_QR, Qr: "late"})
	})
	_, open := <-s.events
	require.False(t, open)
}

func TestTeardownIsIdempotent(t *testing.T) {
	s := newTestSession()
	require.NotPanics(t, func() {
		s.closeEvents()
		s.closeEvents()
	})
}

func TestConcurrentEmitAndTeardown(t *testing.T) {
	for i := 0; i < 100; i++ {
		s := newTestSession()
		var wg sync.WaitGroup
		wg.Add(3)
		go func() {
			defer wg.Done()
			s.emit(&transport.ConnectionEvent{State: transport.CONNECTION_STATE_OPEN})
		}()
		go func() {
			defer wg.Done()
			s.emit(&transport.MessageEvent{From: "5511999"})
		}()
		go func() {
			defer wg.Done()
			s.closeEvents()
		}()
		wg.Wait()
	}
}
