package sse

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentwise/rentwise-server/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func startManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go m.Start(ctx)
	t.Cleanup(cancel)
	return m
}

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case e := <-c.EventChan:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestManager_RoutesUserEvents(t *testing.T) {
	m := startManager(t)

	alice, err := m.Connect("user-alice")
	require.NoError(t, err)
	bob, err := m.Connect("user-bob")
	require.NoError(t, err)

	n := &domain.Notification{ID: "ntf-1", UserID: "user-alice", Title: "hi"}
	require.True(t, m.Emit(NewNotificationEvent(n)))

	got := receive(t, alice)
	assert.Equal(t, EventNotification, got.Type)
	data, ok := got.Data.(NotificationEventData)
	require.True(t, ok)
	assert.Equal(t, "ntf-1", data.Notification.ID)

	select {
	case e := <-bob.EventChan:
		t.Fatalf("bob received %s addressed to alice", e.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestManager_EmitToUser(t *testing.T) {
	m := startManager(t)

	c, err := m.Connect("user-carol")
	require.NoError(t, err)

	m.EmitToUser("user-carol", NewPropertyEvent("", "prop-1", domain.PropertyRented))

	got := receive(t, c)
	assert.Equal(t, EventPropertyUpdated, got.Type)
	assert.Equal(t, "user-carol", got.UserID)
}

func TestManager_Disconnect(t *testing.T) {
	m := NewManager(testLogger())

	c, err := m.Connect("user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, m.ClientCount())

	m.Disconnect(c.ID)
	assert.Equal(t, 0, m.ClientCount())

	// Second disconnect is a no-op.
	m.Disconnect(c.ID)

	_, open := <-c.Done
	assert.False(t, open)
}

func TestManager_EmitAfterShutdown(t *testing.T) {
	m := NewManager(testLogger())
	require.NoError(t, m.Shutdown(context.Background()))

	assert.False(t, m.Emit(NewHeartbeatEvent()))
	// Shutdown is idempotent.
	require.NoError(t, m.Shutdown(context.Background()))
}

func TestManager_EmitDoesNotBlockWhenFull(t *testing.T) {
	m := NewManager(testLogger())

	// Nothing drains the queue.
	for range eventBuffer {
		require.True(t, m.Emit(NewHeartbeatEvent()))
	}

	done := make(chan bool)
	go func() { done <- m.Emit(NewHeartbeatEvent()) }()

	select {
	case queued := <-done:
		assert.False(t, queued)
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a full queue")
	}
}

func TestHandler_RejectsUnauthenticated(t *testing.T) {
	m := NewManager(testLogger())
	h := NewHandler(m, func(*http.Request) (string, error) {
		return "", assert.AnError
	}, testLogger())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/events", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, m.ClientCount())
}

func TestHandler_StreamsEvents(t *testing.T) {
	m := startManager(t)
	h := NewHandler(m, func(*http.Request) (string, error) {
		return "user-dave", nil
	}, testLogger())

	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return m.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	m.Emit(NewNotificationEvent(&domain.Notification{ID: "ntf-9", UserID: "user-dave"}))

	var body strings.Builder
	buf := make([]byte, 4096)
	for !strings.Contains(body.String(), "ntf-9") {
		n, err := resp.Body.Read(buf)
		require.NoError(t, err)
		body.Write(buf[:n])
	}

	assert.Contains(t, body.String(), "event: connected")
	assert.Contains(t, body.String(), "event: notification.created")
}
