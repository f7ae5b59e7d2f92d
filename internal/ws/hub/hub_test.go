package hub

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/kgellert/trimer-client/internal/ws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	go h.Run()
	t.Cleanup(h.Stop)
	return h
}

func receive(t *testing.T, c *Connection) ws.ServerEvent {
	t.Helper()
	select {
	case b, ok := <-c.send:
		require.True(t, ok, "send channel closed")
		var evt ws.ServerEvent
		require.NoError(t, json.Unmarshal(b, &evt))
		return evt
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
	return ws.ServerEvent{}
}

func assertSilent(t *testing.T, c *Connection) {
	t.Helper()
	select {
	case b := <-c.send:
		t.Fatalf("unexpected event %s", b)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_EmitReachesOnlySubscribers(t *testing.T) {
	h := newTestHub(t)

	alice := NewConnection(nil)
	other := NewConnection(nil)
	h.Register(alice)
	h.Register(other)
	h.Subscribe(alice, []string{"chat:bob"})
	h.Subscribe(other, []string{ws.ChatListRoom})

	h.Emit("chat:bob", ws.Alert, ws.AlertPayload{Message: "boom"})

	evt := receive(t, alice)
	assert.Equal(t, ws.Alert, evt.Type)
	assert.Equal(t, "chat:bob", evt.Room)

	var p ws.AlertPayload
	require.NoError(t, json.Unmarshal(evt.Payload, &p))
	assert.Equal(t, "boom", p.Message)

	assertSilent(t, other)
}

func TestHub_UnregisterClosesAndLeavesRooms(t *testing.T) {
	h := newTestHub(t)

	c := NewConnection(nil)
	h.Register(c)
	h.Subscribe(c, []string{"a", "b"})
	h.Unregister(c)

	select {
	case _, ok := <-c.send:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("send channel not closed")
	}

	// Broadcasting to the emptied room must not panic on the closed channel.
	h.Emit("a", ws.ViewScroll, nil)
	h.Emit("b", ws.ViewScroll, nil)
}

func TestConnection_SendDropsWhenFull(t *testing.T) {
	c := NewConnection(nil)
	for i := 0; i < cap(c.send)+10; i++ {
		require.NoError(t, c.Send([]byte("x")))
	}
	assert.Len(t, c.send, cap(c.send))
}

func TestNewConnection_HasID(t *testing.T) {
	a, b := NewConnection(nil), NewConnection(nil)
	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestConnection_SendAfterStop(t *testing.T) {
	h := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	done := make(chan struct{})
	go func() {
		h.Run()
		close(done)
	}()

	c := NewConnection(nil)
	h.Register(c)
	h.Subscribe(c, []string{"chat:bob"})
	h.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}

	assert.NotPanics(t, func() {
		err := c.SendEvent(ws.ServerEvent{Type: ws.Alert})
		assert.ErrorIs(t, err, ErrConnectionClosed)
	})
	assert.NotPanics(t, c.CloseSend)
}

func TestConnection_ConcurrentSendAndClose(t *testing.T) {
	c := NewConnection(nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = c.Send([]byte("x"))
			}
		}()
	}
	c.CloseSend()
	wg.Wait()

	assert.ErrorIs(t, c.Send([]byte("x")), ErrConnectionClosed)
}
