package types

import (
	"encoding/json"
	"time"
)

type OpKind string

const (
	OpStrokeStart OpKind = "stroke-start"
	OpStrokeMove  OpKind = "stroke-move"
	OpStrokeEnd   OpKind = "stroke-end"
	OpClear       OpKind = "clear"
)

func (k OpKind) Valid() bool {
	switch k {
	case OpStrokeStart, OpStrokeMove, OpStrokeEnd, OpClear:
		return true
	}
	return false
}

// DrawingOp is one entry of a room's drawing log. Data holds the stroke
// payload exactly as the client sent it.
type DrawingOp struct {
	Kind      OpKind          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

type Room struct {
	RoomId       string      `json:"roomId"`
	CreatedAt    time.Time   `json:"createdAt"`
	LastActivity time.Time   `json:"lastActivity,omitempty"`
	DrawingData  []DrawingOp `json:"drawingData"`
}

type StrokePoint struct {
	X     *float64 `json:"x"`
	Y     *float64 `json:"y"`
	Color string   `json:"color,omitempty"`
	Width float64  `json:"width,omitempty"`
}

type CursorPosition struct {
	UserId string  `json:"userId,omitempty"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}
