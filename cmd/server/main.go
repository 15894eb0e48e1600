package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/npezzotti/go-whiteboard/internal/api"
	"github.com/npezzotti/go-whiteboard/internal/config"
	"github.com/npezzotti/go-whiteboard/internal/database"
	"github.com/npezzotti/go-whiteboard/internal/relay"
	"github.com/npezzotti/go-whiteboard/internal/server"
	"github.com/npezzotti/go-whiteboard/internal/stats"
)

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr           string
	driver         string
	dsn            string
	redisAddr      string
	allowedOrigins stringSliceFlag
	syncCfg        = config.DefaultSyncConfig()
)

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func main() {
	logger := log.New(os.Stderr, "[go-whiteboard] ", log.LstdFlags)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Println("dotenv:", err)
	}

	flag.StringVar(&addr, "addr", envOr("SERVER_ADDR", "localhost:3001"), "server address")
	flag.StringVar(&driver, "store", envOr("STORE_DRIVER", config.DriverPostgres), "store driver (postgres or sqlite)")
	flag.StringVar(&dsn, "dsn", envOr("DATABASE_URL", "host=localhost user=postgres password=postgres dbname=whiteboard sslmode=disable"), "database connection string")
	flag.StringVar(&redisAddr, "redis-addr", envOr("REDIS_ADDR", ""), "redis address for cross-instance relay (disabled if empty)")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Float64Var(&syncCfg.MoveSampleRate, "move-sample-rate", envFloat("MOVE_SAMPLE_RATE", syncCfg.MoveSampleRate), "fraction of stroke moves persisted")
	flag.DurationVar(&syncCfg.PresenceSweepInterval, "presence-sweep", envDuration("PRESENCE_SWEEP_INTERVAL", syncCfg.PresenceSweepInterval), "cursor staleness sweep interval")
	flag.DurationVar(&syncCfg.CursorStaleAfter, "cursor-stale-after", envDuration("CURSOR_STALE_AFTER", syncCfg.CursorStaleAfter), "cursor inactivity threshold")
	flag.DurationVar(&syncCfg.RoomSweepInterval, "room-sweep", envDuration("ROOM_SWEEP_INTERVAL", syncCfg.RoomSweepInterval), "idle room sweep interval")
	flag.DurationVar(&syncCfg.RoomIdleWindow, "room-idle-window", envDuration("ROOM_IDLE_WINDOW", syncCfg.RoomIdleWindow), "idle time before a room is evicted")
	flag.IntVar(&syncCfg.PersistWorkers, "persist-workers", envInt("PERSIST_WORKERS", syncCfg.PersistWorkers), "number of persistence workers")
	flag.IntVar(&syncCfg.PersistQueueSize, "persist-queue", envInt("PERSIST_QUEUE_SIZE", syncCfg.PersistQueueSize), "pending writes per persistence worker")
	flag.Parse()

	if len(allowedOrigins) == 0 {
		allowedOrigins.Set(envOr("ALLOWED_ORIGINS", "http://localhost:3000"))
	}

	cfg, err := config.NewConfig(addr, driver, dsn, allowedOrigins, redisAddr, syncCfg)
	if err != nil {
		logger.Fatal("config:", err)
	}

	repo, err := database.Open(cfg.StoreDriver, cfg.DatabaseDSN, logger)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Println("db close:", err)
		}
	}()

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	wbServer, err := server.NewWhiteboardServer(logger, repo, statsUpdater, cfg.Sync)
	if err != nil {
		logger.Fatal("new whiteboard server:", err)
	}

	relayCtx, stopRelay := context.WithCancel(context.Background())
	defer stopRelay()

	if cfg.RedisAddr != "" {
		pingCtx, cancel := context.WithTimeout(relayCtx, 5*time.Second)
		rr, err := relay.NewRedisRelay(pingCtx, cfg.RedisAddr, logger)
		cancel()
		if err != nil {
			logger.Fatal("redis relay:", err)
		}
		defer rr.Close()

		wbServer.SetRelay(rr)
		go rr.Subscribe(relayCtx, wbServer.DeliverRemote)
		logger.Printf("relaying room events through redis at %s as %s", cfg.RedisAddr, rr.Origin())
	}

	srv := api.NewWhiteboardApp(mux, logger, wbServer, repo, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go wbServer.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Println("HTTP server shutdown:", err)
	}

	stopRelay()

	logger.Println("shutting down whiteboard server...")
	if err := wbServer.Shutdown(shutDownCtx); err != nil {
		logger.Println("whiteboard server shutdown:", err)
	}

	logger.Println("shutdown complete")
}
