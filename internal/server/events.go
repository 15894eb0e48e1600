package server

import (
	"encoding/json"
	"time"

	"github.com/npezzotti/go-whiteboard/internal/types"
)

const (
	EventJoinRoom        = "join-room"
	EventLoadDrawingData = "load-drawing-data"
	EventCursorMove      = "cursor-move"
	EventCursorInactive  = "cursor-inactive"
	EventDrawStart       = "draw-start"
	EventDrawMove        = "draw-move"
	EventDrawEnd         = "draw-end"
	EventClearCanvas     = "clear-canvas"
	EventUserCountUpdate = "user-count-update"
	EventUserLeft        = "user-left"
	EventConnected       = "connected"
	EventError           = "error"
)

// drawEvents maps inbound drawing events to the op kind they persist as.
var drawEvents = map[string]types.OpKind{
	EventDrawStart:   types.OpStrokeStart,
	EventDrawMove:    types.OpStrokeMove,
	EventDrawEnd:     types.OpStrokeEnd,
	EventClearCanvas: types.OpClear,
}

// relayedEvents are the events peers on other instances may deliver to us.
var relayedEvents = map[string]struct{}{
	EventCursorMove:     {},
	EventCursorInactive: {},
	EventDrawStart:      {},
	EventDrawMove:       {},
	EventDrawEnd:        {},
	EventClearCanvas:    {},
	EventUserLeft:       {},
}

type ClientEvent struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"-"`
	client    *Client
}

type ServerEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

func Connected(clientId string) *ServerEvent {
	return &ServerEvent{Event: EventConnected, Data: clientId}
}

func LoadDrawingData(ops []types.DrawingOp) *ServerEvent {
	return &ServerEvent{Event: EventLoadDrawingData, Data: ops}
}

func CursorMoved(clientId string, x, y float64) *ServerEvent {
	return &ServerEvent{
		Event: EventCursorMove,
		Data:  types.CursorPosition{UserId: clientId, X: x, Y: y},
	}
}

func CursorInactive(clientId string) *ServerEvent {
	return &ServerEvent{Event: EventCursorInactive, Data: clientId}
}

func UserCountUpdate(count int) *ServerEvent {
	return &ServerEvent{Event: EventUserCountUpdate, Data: count}
}

func UserLeft(clientId string) *ServerEvent {
	return &ServerEvent{Event: EventUserLeft, Data: clientId}
}

// Relayed re-emits an inbound event without touching its payload.
func Relayed(event string, data json.RawMessage) *ServerEvent {
	evt := &ServerEvent{Event: event}
	if len(data) > 0 {
		evt.Data = data
	}
	return evt
}

func ErrInvalidMessage() *ServerEvent {
	return &ServerEvent{Event: EventError, Data: "invalid message format"}
}

func ErrInvalidPayload(event string) *ServerEvent {
	return &ServerEvent{Event: EventError, Data: "invalid payload for " + event}
}

func ErrUnknownEvent(event string) *ServerEvent {
	return &ServerEvent{Event: EventError, Data: "unknown event " + event}
}

func ErrLoadDrawingData() *ServerEvent {
	return &ServerEvent{Event: EventError, Data: "failed to load drawing data"}
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
