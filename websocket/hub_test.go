package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h := NewHub(zerolog.Nop())
	go h.Run(ctx)
	return h
}

func newTestClient(buffer int) *Client {
	return &Client{send: make(chan []byte, buffer), done: make(chan struct{})}
}

func waitDropped(t *testing.T, c *Client) {
	t.Helper()
	select {
	case <-c.done:
	case <-time.After(2 * time.Second):
		t.Fatal("client was not dropped")
	}
}

func recv(t *testing.T, ch chan []byte) []byte {
	t.Helper()
	select {
	case data := <-ch:
		return data
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for broadcast")
		return nil
	}
}

func assertSilent(t *testing.T, ch chan []byte) {
	t.Helper()
	select {
	case data := <-ch:
		t.Fatalf("expected no delivery, got %s", data)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBroadcastReachesAllSubscribers(t *testing.T) {
	h := startHub(t)
	c1, c2 := newTestClient(8), newTestClient(8)

	h.register <- c1
	h.register <- c2
	h.subscribe <- subscription{client: c1, roomID: "r1"}
	h.subscribe <- subscription{client: c2, roomID: "r1"}

	h.BroadcastToRoom("r1", "message", map[string]string{"id": "m1"})

	for _, c := range []*Client{c1, c2} {
		var env Envelope
		if err := json.Unmarshal(recv(t, c.send), &env); err != nil {
			t.Fatal(err)
		}
		if env.Type != "message" {
			t.Fatalf("expected message event, got %q", env.Type)
		}
	}
}

func TestBroadcastSkipsOtherRooms(t *testing.T) {
	h := startHub(t)
	c1, c2 := newTestClient(8), newTestClient(8)

	h.register <- c1
	h.register <- c2
	h.subscribe <- subscription{client: c1, roomID: "r1"}
	h.subscribe <- subscription{client: c2, roomID: "r2"}

	h.BroadcastToRoom("r1", "message", map[string]string{"id": "m1"})

	recv(t, c1.send)
	assertSilent(t, c2.send)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	h := startHub(t)
	c1, c2 := newTestClient(8), newTestClient(8)

	h.register <- c1
	h.register <- c2
	h.subscribe <- subscription{client: c1, roomID: "r1"}
	h.subscribe <- subscription{client: c2, roomID: "r1"}
	h.unsubscribe <- subscription{client: c2, roomID: "r1"}

	h.BroadcastToRoom("r1", "message", map[string]string{"id": "m1"})

	recv(t, c1.send)
	assertSilent(t, c2.send)
}

func TestUnregisterSignalsDoneAndStopsDelivery(t *testing.T) {
	h := startHub(t)
	c := newTestClient(8)

	h.register <- c
	h.subscribe <- subscription{client: c, roomID: "r1"}
	h.unregister <- c

	waitDropped(t, c)

	// Broadcasting after unregister must not deliver.
	h.BroadcastToRoom("r1", "message", map[string]string{"id": "m1"})
	assertSilent(t, c.send)
}

func TestSlowConsumerIsDropped(t *testing.T) {
	h := startHub(t)
	c := newTestClient(1)

	h.register <- c
	h.subscribe <- subscription{client: c, roomID: "r1"}

	// First broadcast fills the buffer; the second finds it full and drops
	// the connection.
	h.BroadcastToRoom("r1", "message", map[string]string{"id": "m1"})
	h.BroadcastToRoom("r1", "message", map[string]string{"id": "m2"})

	waitDropped(t, c)
	recv(t, c.send)
}

// A dropped client's read pump may still produce error frames for its own
// connection. The send channel stays open, so enqueueing after the drop is
// safe whether or not the buffer has room.
func TestEnqueueAfterDropIsSafe(t *testing.T) {
	h := startHub(t)
	c := newTestClient(1)

	h.register <- c
	h.subscribe <- subscription{client: c, roomID: "r1"}

	h.BroadcastToRoom("r1", "message", map[string]string{"id": "m1"})
	h.BroadcastToRoom("r1", "message", map[string]string{"id": "m2"})
	waitDropped(t, c)

	c.enqueue([]byte(`{"type":"error"}`)) // buffer full, frame dropped
	recv(t, c.send)
	c.enqueue([]byte(`{"type":"error"}`)) // buffer has room, frame queued
	recv(t, c.send)
}

func TestShutdownUnblocksMailboxSenders(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := NewHub(zerolog.Nop())
	go h.Run(ctx)

	c := newTestClient(8)
	h.register <- c
	cancel()
	waitDropped(t, c)

	// Mailbox senders must return instead of blocking on a stopped run loop.
	finished := make(chan struct{})
	go func() {
		h.removeClient(c)
		h.subscribeRoom(c, "r1")
		h.unsubscribeRoom(c, "r1")
		h.BroadcastToRoom("r1", "message", map[string]string{"id": "m1"})
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("mailbox sender blocked after shutdown")
	}
}
