package api

import (
	"net/http"
	"testing"

	"github.com/npezzotti/go-whiteboard/internal/config"
	"github.com/npezzotti/go-whiteboard/internal/database"
	"github.com/npezzotti/go-whiteboard/internal/server"
	"github.com/npezzotti/go-whiteboard/internal/stats"
	"github.com/npezzotti/go-whiteboard/internal/testutil"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T, db database.DrawingRepository) (*WhiteboardApp, *http.ServeMux) {
	t.Helper()

	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything).Maybe()
	su.On("Incr", mock.Anything).Maybe()
	su.On("Decr", mock.Anything).Maybe()

	logger := testutil.TestLogger(t)
	ws, err := server.NewWhiteboardServer(logger, db, su, config.DefaultSyncConfig())
	require.NoError(t, err, "failed to create whiteboard server")

	mux := http.NewServeMux()
	cfg := &config.Config{
		ServerAddr:     "localhost:8080",
		AllowedOrigins: []string{"http://localhost:3000"},
	}
	return NewWhiteboardApp(mux, logger, ws, db, cfg), mux
}
