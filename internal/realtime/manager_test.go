package realtime

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/shopnotify/internal/clock"
)

const testBaseURL = "http://shop.test/api/"

type harness struct {
	m       *Manager
	clock   *clock.Fake
	tokens  *fakeTokens
	tickets *fakeTickets
	dialer  *fakeDialer
	rec     *recorder
}

func newHarness(t *testing.T, token string) *harness {
	t.Helper()

	h := &harness{
		clock:   clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		tokens:  &fakeTokens{token: token},
		tickets: &fakeTickets{},
		dialer:  &fakeDialer{},
		rec:     &recorder{},
	}
	h.m = New(DefaultConfig(testBaseURL), Deps{
		Tokens:  h.tokens,
		Tickets: h.tickets,
		Dialer:  h.dialer,
		Clock:   h.clock,
	}, h.rec)

	t.Cleanup(h.m.Disconnect)
	return h
}

func (h *harness) waitState(t *testing.T, want State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.m.State() == want
	}, time.Second, 5*time.Millisecond, "state never became %s", want)
}

// waitReconnecting blocks until the close path has finished reporting.
func (h *harness) waitReconnecting(t *testing.T) {
	t.Helper()
	h.waitState(t, StateReconnecting)
	require.Eventually(t, func() bool {
		return h.rec.lastStatus() == StatusReconnecting
	}, time.Second, 5*time.Millisecond)
}

func TestConnect_MissingTokenOpensNothing(t *testing.T) {
	h := newHarness(t, "")

	h.m.Connect(context.Background())

	assert.Equal(t, []Status{StatusMissingToken}, h.rec.Statuses())
	require.Len(t, h.rec.Errors(), 1)
	assert.ErrorIs(t, h.rec.Errors()[0], ErrMissingToken)
	assert.Empty(t, h.dialer.dialed())
	assert.Equal(t, 0, h.tickets.count())
	assert.Empty(t, h.clock.Pending(), "missing token must not schedule a retry")
	assert.Equal(t, StateIdle, h.m.State())
}

func TestConnect_HappyPathStartsHeartbeat(t *testing.T) {
	h := newHarness(t, "")

	h.m.Connect(context.Background())
	require.Equal(t, StatusMissingToken, h.rec.lastStatus())

	h.tokens.set("access-token")
	h.m.Connect(context.Background())

	assert.Equal(t, StateOpen, h.m.State())
	assert.Equal(t, []Status{StatusMissingToken, StatusConnected}, h.rec.Statuses())
	assert.Equal(t,
		[]string{"ws://shop.test/api/notifications/ws?ticket=ticket-1"},
		h.dialer.dialed(),
	)

	conn := h.dialer.last()
	require.NotNil(t, conn)
	assert.Empty(t, conn.written())

	h.clock.Advance(29 * time.Second)
	assert.Empty(t, conn.written())

	h.clock.Advance(time.Second)
	assert.Equal(t, []string{`{"type":"ping"}`}, conn.written())

	h.clock.Advance(30 * time.Second)
	assert.Len(t, conn.written(), 2)
}

func TestConnect_IsIdempotentWhileOpen(t *testing.T) {
	h := newHarness(t, "access-token")

	h.m.Connect(context.Background())
	h.m.Connect(context.Background())

	assert.Equal(t, 1, h.tickets.count())
	assert.Len(t, h.dialer.dialed(), 1)
	assert.Equal(t, []Status{StatusConnected}, h.rec.Statuses())
}

func TestServerClose_SchedulesReconnectWithFreshTicket(t *testing.T) {
	h := newHarness(t, "access-token")
	h.m.Connect(context.Background())
	first := h.dialer.last()

	first.serverClose(&websocket.CloseError{Code: websocket.CloseNormalClosure})
	h.waitReconnecting(t)

	assert.Equal(t, []time.Duration{time.Second}, h.clock.Pending())
	assert.Empty(t, h.rec.Errors(), "clean close is not an error")

	h.clock.Advance(999 * time.Millisecond)
	assert.Equal(t, 1, h.tickets.count())

	h.clock.Advance(time.Millisecond)
	assert.Equal(t, 2, h.tickets.count())
	assert.Equal(t, StateOpen, h.m.State())
	assert.Equal(t,
		"ws://shop.test/api/notifications/ws?ticket=ticket-2",
		h.dialer.dialed()[1],
	)
}

func TestTransportError_ReportsErrorThenReconnects(t *testing.T) {
	h := newHarness(t, "access-token")
	h.m.Connect(context.Background())

	h.dialer.last().serverClose(io.ErrUnexpectedEOF)
	h.waitReconnecting(t)

	assert.Equal(t,
		[]Status{StatusConnected, StatusError, StatusReconnecting},
		h.rec.Statuses(),
	)
	require.Len(t, h.rec.Errors(), 1)
	assert.ErrorIs(t, h.rec.Errors()[0], io.ErrUnexpectedEOF)
	assert.Equal(t, []time.Duration{time.Second}, h.clock.Pending(),
		"heartbeat must be torn down before reconnecting")
}

func TestBackoff_DoublesUpToCapAndResetsOnSuccess(t *testing.T) {
	h := newHarness(t, "access-token")
	h.tickets.setErr(errors.New("auth service unavailable"))

	h.m.Connect(context.Background())

	var delays []time.Duration
	for i := 0; i < 8; i++ {
		pending := h.clock.Pending()
		require.Len(t, pending, 1)
		delays = append(delays, pending[0])
		h.clock.Advance(pending[0])
	}

	assert.Equal(t, []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}, delays)
	for i := 1; i < len(delays); i++ {
		assert.GreaterOrEqual(t, delays[i], delays[i-1])
	}

	for _, err := range h.rec.Errors() {
		assert.Contains(t, err.Error(), "issuing connection ticket")
	}

	h.tickets.setErr(nil)
	h.clock.Advance(h.clock.Pending()[0])
	require.Equal(t, StateOpen, h.m.State())
	assert.Equal(t, 0, h.m.Attempts())

	h.dialer.last().serverClose(io.EOF)
	h.waitReconnecting(t)
	assert.Equal(t, []time.Duration{time.Second}, h.clock.Pending())
}

func TestDialFailure_SchedulesReconnect(t *testing.T) {
	h := newHarness(t, "access-token")
	h.dialer.setErr(errors.New("connection refused"))

	h.m.Connect(context.Background())

	assert.Equal(t, StateReconnecting, h.m.State())
	assert.Equal(t, []time.Duration{time.Second}, h.clock.Pending())
	require.Len(t, h.rec.Errors(), 1)
	assert.Contains(t, h.rec.Errors()[0].Error(), "opening notification socket")

	h.dialer.setErr(nil)
	h.clock.Advance(time.Second)
	assert.Equal(t, StateOpen, h.m.State())
}

func TestReconnect_MissingTokenStopsRetrying(t *testing.T) {
	h := newHarness(t, "access-token")
	h.m.Connect(context.Background())

	h.tokens.set("")
	h.dialer.last().serverClose(io.EOF)
	h.waitReconnecting(t)

	h.clock.Advance(time.Second)

	assert.Equal(t, StatusMissingToken, h.rec.lastStatus())
	assert.Equal(t, StateIdle, h.m.State())
	assert.Empty(t, h.clock.Pending())
	assert.Equal(t, 1, h.tickets.count())
}

func TestDisconnect_CancelsPendingReconnect(t *testing.T) {
	h := newHarness(t, "access-token")
	h.m.Connect(context.Background())

	h.dialer.last().serverClose(io.EOF)
	h.waitReconnecting(t)
	require.Len(t, h.clock.Pending(), 1)

	h.m.Disconnect()

	assert.Empty(t, h.clock.Pending())
	assert.Equal(t, StatusDisconnected, h.rec.lastStatus())

	h.clock.Advance(time.Minute)
	assert.Equal(t, 1, h.tickets.count(), "stale reconnect timer fired")

	h.m.Connect(context.Background())
	assert.Equal(t, 2, h.tickets.count())
	assert.Equal(t, StateOpen, h.m.State())
}

func TestDisconnect_ClosesOpenConnectionWithoutReconnect(t *testing.T) {
	h := newHarness(t, "access-token")
	h.m.Connect(context.Background())
	conn := h.dialer.last()

	h.m.Disconnect()
	h.m.Disconnect()

	assert.True(t, conn.isClosed())
	assert.Empty(t, h.clock.Pending(), "heartbeat must be cancelled")
	assert.Never(t, func() bool {
		return h.m.State() != StateIdle
	}, 50*time.Millisecond, 5*time.Millisecond)
	assert.NotContains(t, h.rec.Statuses(), StatusReconnecting)
	assert.Equal(t, StatusDisconnected, h.rec.lastStatus())
}

func TestSendPing_NoopWhenNotOpen(t *testing.T) {
	h := newHarness(t, "access-token")

	assert.NotPanics(t, h.m.SendPing)
	assert.Empty(t, h.dialer.dialed())

	h.m.Connect(context.Background())
	conn := h.dialer.last()
	h.m.SendPing()
	assert.Equal(t, []string{`{"type":"ping"}`}, conn.written())

	h.m.Disconnect()
	h.m.SendPing()
	assert.Len(t, conn.written(), 1)
}

func TestReadLoop_DropsMalformedFramesAndKeepsOrder(t *testing.T) {
	h := newHarness(t, "access-token")
	h.m.Connect(context.Background())
	conn := h.dialer.last()

	conn.send(`not json`)
	conn.send(`{"type":"notification","data":{"id":"n1","type":"ORDER_CREATED"}}`)
	conn.send(`{"type":"mystery","data":{}}`)
	conn.send(`{"type":"notification","data":{"id":"n2","type":"PROMOTION"}}`)
	conn.send(`{"type":"pong","timestamp":"2026-01-01T00:00:30Z"}`)

	require.Eventually(t, func() bool {
		return len(h.rec.Messages()) == 3
	}, time.Second, 5*time.Millisecond)

	msgs := h.rec.Messages()
	assert.Equal(t, "n1", msgs[0].Notification.ID)
	assert.Equal(t, "n2", msgs[1].Notification.ID)
	assert.Equal(t, KindPong, msgs[2].Kind)

	assert.Equal(t, []Status{StatusConnected}, h.rec.Statuses())
	assert.Empty(t, h.rec.Errors())
	assert.Equal(t, StateOpen, h.m.State())
}

func TestHeartbeat_StalledWriteDoesNotBlockState(t *testing.T) {
	h := newHarness(t, "access-token")
	h.m.Connect(context.Background())
	conn := h.dialer.last()
	writing := conn.stallWrites()

	advanced := make(chan struct{})
	go func() {
		defer close(advanced)
		h.clock.Advance(30 * time.Second)
	}()

	select {
	case <-writing:
	case <-time.After(time.Second):
		t.Fatal("heartbeat never wrote")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.Equal(t, StateOpen, h.m.State())
		h.m.Disconnect()
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("state change blocked behind a stalled write")
	}

	select {
	case <-advanced:
	case <-time.After(time.Second):
		t.Fatal("stalled write not released by close")
	}
	assert.True(t, conn.isClosed())
	assert.Equal(t, StatusDisconnected, h.rec.lastStatus())
}
