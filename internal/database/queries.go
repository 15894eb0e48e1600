package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

func (db *SqlDrawingRepository) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func (db *SqlDrawingRepository) RoomExists(ctx context.Context, roomId string) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx,
		db.rebind("SELECT EXISTS(SELECT 1 FROM rooms WHERE room_id = ?)"),
		roomId,
	).Scan(&exists)

	return exists, err
}

func (db *SqlDrawingRepository) CreateRoom(ctx context.Context, roomId string) (Room, error) {
	now := db.now()
	res, err := db.conn.ExecContext(ctx,
		db.rebind("INSERT INTO rooms (room_id, created_at, last_activity) "+
			"VALUES (?, ?, ?) ON CONFLICT (room_id) DO NOTHING"),
		roomId,
		now,
		now,
	)
	if err != nil {
		return Room{}, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return Room{}, err
	}
	if n == 0 {
		return Room{}, ErrDuplicateRoom
	}

	return Room{RoomId: roomId, CreatedAt: now, LastActivity: now}, nil
}

func (db *SqlDrawingRepository) GetRoom(ctx context.Context, roomId string) (Room, error) {
	row := db.conn.QueryRowContext(ctx,
		db.rebind("SELECT room_id, created_at, last_activity FROM rooms "+
			"WHERE room_id = ? LIMIT 1"),
		roomId,
	)

	var room Room
	err := row.Scan(
		&room.RoomId,
		&room.CreatedAt,
		&room.LastActivity,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Room{}, ErrRoomNotFound
	}

	return room, err
}

func (db *SqlDrawingRepository) TouchRoom(ctx context.Context, roomId string) error {
	return touchRoom(ctx, db.conn, db.rebind, roomId, db.now())
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func touchRoom(ctx context.Context, ex execer, rebind func(string) string, roomId string, now time.Time) error {
	res, err := ex.ExecContext(ctx,
		rebind("UPDATE rooms SET last_activity = ? WHERE room_id = ?"),
		now,
		roomId,
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRoomNotFound
	}

	return nil
}

func (db *SqlDrawingRepository) GetOps(ctx context.Context, roomId string) ([]DrawingOp, error) {
	rows, err := db.conn.QueryContext(ctx,
		db.rebind("SELECT id, room_id, kind, data, created_at FROM drawing_ops "+
			"WHERE room_id = ? ORDER BY id ASC"),
		roomId,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch drawing ops: %w", err)
	}
	defer rows.Close()

	ops := []DrawingOp{}
	for rows.Next() {
		var op DrawingOp
		if err := rows.Scan(
			&op.Id,
			&op.RoomId,
			&op.Kind,
			&op.Data,
			&op.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan drawing op: %w", err)
		}
		ops = append(ops, op)
	}

	return ops, rows.Err()
}

// AppendOp adds op to the end of its room's log and refreshes the room's
// last activity. It fails with ErrRoomNotFound if the room does not exist.
func (db *SqlDrawingRepository) AppendOp(ctx context.Context, op DrawingOp) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if err := touchRoom(ctx, tx, db.rebind, op.RoomId, db.now()); err != nil {
			return err
		}
		return db.insertOp(ctx, tx, op)
	})
}

// ReplaceOps truncates the room's log so that op becomes its only entry.
func (db *SqlDrawingRepository) ReplaceOps(ctx context.Context, op DrawingOp) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if err := touchRoom(ctx, tx, db.rebind, op.RoomId, db.now()); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			db.rebind("DELETE FROM drawing_ops WHERE room_id = ?"),
			op.RoomId,
		); err != nil {
			return err
		}

		return db.insertOp(ctx, tx, op)
	})
}

func (db *SqlDrawingRepository) insertOp(ctx context.Context, tx *sql.Tx, op DrawingOp) error {
	data := string(op.Data)
	if data == "" {
		data = "{}"
	}

	createdAt := op.CreatedAt
	if createdAt.IsZero() {
		createdAt = db.now()
	}

	_, err := tx.ExecContext(ctx,
		db.rebind("INSERT INTO drawing_ops (room_id, kind, data, created_at) VALUES (?, ?, ?, ?)"),
		op.RoomId,
		op.Kind,
		data,
		createdAt.UTC(),
	)

	return err
}

// DeleteIdleRooms removes every room, and its log, whose last activity is
// older than before. It returns the number of rooms removed.
func (db *SqlDrawingRepository) DeleteIdleRooms(ctx context.Context, before time.Time) (int64, error) {
	var deleted int64
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			db.rebind("DELETE FROM drawing_ops WHERE room_id IN "+
				"(SELECT room_id FROM rooms WHERE last_activity < ?)"),
			before.UTC(),
		); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx,
			db.rebind("DELETE FROM rooms WHERE last_activity < ?"),
			before.UTC(),
		)
		if err != nil {
			return err
		}

		deleted, err = res.RowsAffected()
		return err
	})

	return deleted, err
}

func (db *SqlDrawingRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}
