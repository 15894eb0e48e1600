package database

import "time"

type Room struct {
	RoomId       string
	CreatedAt    time.Time
	LastActivity time.Time
}

type DrawingOp struct {
	Id        int64
	RoomId    string
	Kind      string
	Data      []byte
	CreatedAt time.Time
}
