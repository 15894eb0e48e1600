package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff"
)

const defaultConnectTimeout = 30 * time.Second

// Open creates the repository for driver, waits for the store to become
// reachable and applies migrations. Failing here is fatal for the process.
func Open(driver, dsn string, logger *log.Logger) (*SqlDrawingRepository, error) {
	var (
		repo *SqlDrawingRepository
		err  error
	)
	switch driver {
	case "postgres":
		repo, err = NewPgDrawingRepository(dsn)
	case "sqlite":
		repo, err = NewSqliteDrawingRepository(dsn)
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if err := waitForStore(repo, logger, defaultConnectTimeout); err != nil {
		repo.Close()
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}

	if err := repo.Migrate(logger); err != nil {
		repo.Close()
		return nil, err
	}

	return repo, nil
}

func waitForStore(repo DrawingRepository, logger *log.Logger, maxWait time.Duration) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = maxWait

	ping := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return repo.Ping(ctx)
	}

	return backoff.RetryNotify(ping, b, func(err error, next time.Duration) {
		logger.Printf("store not reachable, retrying in %s: %v", next.Round(time.Millisecond), err)
	})
}
