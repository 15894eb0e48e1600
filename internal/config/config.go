package config

import (
	"fmt"
	"time"
)

const (
	DriverPostgres = "postgres"
	DriverSqlite   = "sqlite"
)

type Config struct {
	ServerAddr     string
	StoreDriver    string
	DatabaseDSN    string
	AllowedOrigins []string
	RedisAddr      string
	Sync           SyncConfig
}

// SyncConfig holds the tunables of the session synchronization engine.
type SyncConfig struct {
	MoveSampleRate        float64
	PresenceSweepInterval time.Duration
	CursorStaleAfter      time.Duration
	RoomSweepInterval     time.Duration
	RoomIdleWindow        time.Duration
	PersistWorkers        int
	PersistQueueSize      int
}

func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		MoveSampleRate:        0.3,
		PresenceSweepInterval: 30 * time.Second,
		CursorStaleAfter:      5 * time.Second,
		RoomSweepInterval:     time.Hour,
		RoomIdleWindow:        24 * time.Hour,
		PersistWorkers:        4,
		PersistQueueSize:      1024,
	}
}

func NewConfig(serverAddr, storeDriver, databaseDSN string, allowedOrigins []string, redisAddr string, sync SyncConfig) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if databaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if storeDriver != DriverPostgres && storeDriver != DriverSqlite {
		return nil, fmt.Errorf("unsupported store driver %q", storeDriver)
	}
	if err := sync.validate(); err != nil {
		return nil, fmt.Errorf("sync config: %w", err)
	}

	return &Config{
		ServerAddr:     serverAddr,
		StoreDriver:    storeDriver,
		DatabaseDSN:    databaseDSN,
		AllowedOrigins: allowedOrigins,
		RedisAddr:      redisAddr,
		Sync:           sync,
	}, nil
}

func (s SyncConfig) validate() error {
	if s.MoveSampleRate < 0 || s.MoveSampleRate > 1 {
		return fmt.Errorf("move sample rate must be between 0 and 1, got %v", s.MoveSampleRate)
	}
	if s.PresenceSweepInterval <= 0 || s.RoomSweepInterval <= 0 {
		return fmt.Errorf("sweep intervals must be positive")
	}
	if s.CursorStaleAfter <= 0 || s.RoomIdleWindow <= 0 {
		return fmt.Errorf("staleness windows must be positive")
	}
	if s.PersistWorkers < 1 {
		return fmt.Errorf("at least one persist worker is required")
	}
	if s.PersistQueueSize < 1 {
		return fmt.Errorf("persist queue size must be positive")
	}
	return nil
}
