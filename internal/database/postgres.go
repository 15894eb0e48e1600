package database

import (
	"database/sql"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

type SqlDrawingRepository struct {
	conn   *sql.DB
	driver string
	now    func() time.Time
}

// NewPgDrawingRepository opens a postgres-backed repository. The caller is
// responsible for verifying connectivity (see Open).
func NewPgDrawingRepository(dsn string) (*SqlDrawingRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	return &SqlDrawingRepository{conn: db, driver: "postgres", now: utcNow}, nil
}

func (db *SqlDrawingRepository) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

func utcNow() time.Time {
	return time.Now().UTC()
}

// rebind rewrites '?' placeholders into the positional form postgres expects.
func (db *SqlDrawingRepository) rebind(query string) string {
	if db.driver != "postgres" {
		return query
	}

	var (
		b strings.Builder
		n int
	)
	b.Grow(len(query) + 8)
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
