package database

import (
	"context"
	"errors"
	"time"
)

var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrDuplicateRoom = errors.New("room already exists")
)

// DrawingRepository is the durable store behind rooms and their drawing logs.
type DrawingRepository interface {
	Ping(ctx context.Context) error
	RoomExists(ctx context.Context, roomId string) (bool, error)
	CreateRoom(ctx context.Context, roomId string) (Room, error)
	GetRoom(ctx context.Context, roomId string) (Room, error)
	TouchRoom(ctx context.Context, roomId string) error
	GetOps(ctx context.Context, roomId string) ([]DrawingOp, error)
	AppendOp(ctx context.Context, op DrawingOp) error
	ReplaceOps(ctx context.Context, op DrawingOp) error
	DeleteIdleRooms(ctx context.Context, before time.Time) (int64, error)
	Close() error
}
