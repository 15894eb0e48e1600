package api

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/npezzotti/go-whiteboard/internal/config"
	"github.com/npezzotti/go-whiteboard/internal/database"
	"github.com/npezzotti/go-whiteboard/internal/server"
	"github.com/npezzotti/go-whiteboard/internal/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewWhiteboardApp(t *testing.T) {
	mux := http.NewServeMux()
	logger := testutil.TestLogger(t)
	ws := &server.WhiteboardServer{}
	db := &database.MockDrawingRepository{}
	cfg := &config.Config{
		ServerAddr:     "localhost:8080",
		DatabaseDSN:    "dsn",
		AllowedOrigins: []string{"http://localhost:3000"},
	}

	app := NewWhiteboardApp(mux, logger, ws, db, cfg)

	assert.NotNil(t, app, "expected app to be initialized")
	assert.NotNil(t, app.mux, "expected mux to be initialized")
	assert.Equal(t, app.log, logger, "expected logger to be set")
	assert.Equal(t, app.db, db, "expected db to be set")
	assert.Equal(t, app.ws, ws, "expected whiteboard server to be set")
	assert.Equal(t, app.allowedOrigins, cfg.AllowedOrigins, "expected allowed origins to be set")
	assert.Equal(t, app.mux.Addr, cfg.ServerAddr, "expected server address to match config")

	for _, route := range []struct {
		method  string
		path    string
		pattern string
	}{
		{http.MethodPost, "/api/rooms/join", "POST /api/rooms/join"},
		{http.MethodGet, "/api/rooms/AB12CD", "GET /api/rooms/{roomId}"},
		{http.MethodGet, "/ws", "GET /ws"},
		{http.MethodGet, "/healthz", "GET /healthz"},
	} {
		_, pattern := mux.Handler(&http.Request{Method: route.method, URL: &url.URL{Path: route.path}})
		assert.Equal(t, route.pattern, pattern, "expected route for %s %s", route.method, route.path)
	}
}
