package server

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/npezzotti/go-whiteboard/internal/config"
	"github.com/npezzotti/go-whiteboard/internal/database"
	"github.com/npezzotti/go-whiteboard/internal/stats"
	"github.com/npezzotti/go-whiteboard/internal/testutil"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestStats() *stats.MockStatsUpdater {
	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything).Maybe()
	su.On("Incr", mock.Anything).Maybe()
	su.On("Decr", mock.Anything).Maybe()
	su.On("Add", mock.Anything, mock.Anything).Maybe()
	return su
}

func newTestRepository(t *testing.T) *database.SqlDrawingRepository {
	t.Helper()

	repo, err := database.NewSqliteDrawingRepository(filepath.Join(t.TempDir(), "whiteboard.db"))
	require.NoError(t, err, "failed to open sqlite repository")
	t.Cleanup(func() { repo.Close() })
	require.NoError(t, repo.Migrate(testutil.TestLogger(t)), "failed to migrate")

	return repo
}

// newTestServer creates a WhiteboardServer whose persistence workers are
// running but whose sweep loop is not.
func newTestServer(t *testing.T, db database.DrawingRepository) *WhiteboardServer {
	t.Helper()

	ws, err := NewWhiteboardServer(testutil.TestLogger(t), db, newTestStats(), config.DefaultSyncConfig())
	require.NoError(t, err, "failed to create test server")
	ws.drawings.Start()
	t.Cleanup(ws.drawings.Stop)

	return ws
}

func newTestClient(t *testing.T, ws *WhiteboardServer, id string) *Client {
	t.Helper()

	c := &Client{
		id:     id,
		server: ws,
		log:    testutil.TestLogger(t),
		send:   make(chan *ServerEvent, sendBufferSize),
		stop:   make(chan struct{}),
	}
	ws.RegisterClient(c)
	expectEvent(t, c, EventConnected)

	return c
}

func sendEvent(ws *WhiteboardServer, c *Client, event, data string) {
	evt := &ClientEvent{Event: event, client: c, Timestamp: Now()}
	if data != "" {
		evt.Data = json.RawMessage(data)
	}
	ws.dispatch(evt)
}

func expectEvent(t *testing.T, c *Client, event string) *ServerEvent {
	t.Helper()

	select {
	case evt := <-c.send:
		require.Equal(t, event, evt.Event, "unexpected event for client %q", c.id)
		return evt
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for %q on client %q", event, c.id)
	}
	return nil
}

func expectNoEvent(t *testing.T, c *Client) {
	t.Helper()

	select {
	case evt := <-c.send:
		t.Errorf("expected no event for client %q, got %q", c.id, evt.Event)
	case <-time.After(20 * time.Millisecond):
	}
}

func rawData(t *testing.T, evt *ServerEvent) string {
	t.Helper()

	raw, ok := evt.Data.(json.RawMessage)
	require.True(t, ok, "expected raw payload, got %T", evt.Data)
	return string(raw)
}
