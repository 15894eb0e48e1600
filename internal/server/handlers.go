package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/npezzotti/go-whiteboard/internal/types"
)

var (
	errMissingCoordinates = errors.New("x and y are required")
	errInvalidPayload     = errors.New("payload must be a JSON object")
)

type cursorPayload struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

func (ws *WhiteboardServer) dispatch(evt *ClientEvent) {
	c := evt.client

	switch evt.Event {
	case EventJoinRoom:
		ws.handleJoin(evt)
	case EventCursorMove:
		ws.handleCursorMove(evt)
	case EventCursorInactive:
		ws.handleCursorInactive(evt)
	case EventDrawStart, EventDrawMove, EventDrawEnd, EventClearCanvas:
		ws.handleDraw(evt, drawEvents[evt.Event])
	case EventError:
		ws.log.Printf("client %q reported error: %s", c.id, evt.Data)
	default:
		c.queueMessage(ErrUnknownEvent(evt.Event))
	}
}

func (ws *WhiteboardServer) handleJoin(evt *ClientEvent) {
	c := evt.client

	var roomId string
	if err := json.Unmarshal(evt.Data, &roomId); err != nil || !ValidRoomId(roomId) {
		c.queueMessage(ErrInvalidPayload(evt.Event))
		return
	}

	if prev := ws.members.Join(c, roomId); prev != "" {
		ws.publishRemote(prev, UserLeft(c.id))
	}
	ws.presence.Reset(c.id)

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := ws.rooms.Ensure(ctx, roomId); err != nil {
		ws.log.Printf("join %q: %v", roomId, err)
		c.queueMessage(ErrLoadDrawingData())
		return
	}

	ops, err := ws.drawings.Load(ctx, roomId)
	if err != nil {
		ws.log.Printf("join %q: %v", roomId, err)
		c.queueMessage(ErrLoadDrawingData())
		return
	}

	if len(ops) > 0 {
		c.queueMessage(LoadDrawingData(ops))
	}
}

func (ws *WhiteboardServer) handleCursorMove(evt *ClientEvent) {
	c := evt.client

	roomId, ok := ws.members.RoomOf(c)
	if !ok {
		return
	}

	var pos cursorPayload
	if err := json.Unmarshal(evt.Data, &pos); err != nil || pos.X == nil || pos.Y == nil {
		c.queueMessage(ErrInvalidPayload(evt.Event))
		return
	}

	ws.presence.Move(c.id, *pos.X, *pos.Y)

	out := CursorMoved(c.id, *pos.X, *pos.Y)
	ws.broadcast(roomId, out, c)
	ws.publishRemote(roomId, out)
}

func (ws *WhiteboardServer) handleCursorInactive(evt *ClientEvent) {
	c := evt.client

	roomId, ok := ws.members.RoomOf(c)
	if !ok {
		return
	}

	if !ws.presence.MarkInactive(c.id) {
		return
	}

	out := CursorInactive(c.id)
	ws.broadcast(roomId, out, c)
	ws.publishRemote(roomId, out)
}

func (ws *WhiteboardServer) handleDraw(evt *ClientEvent, kind types.OpKind) {
	c := evt.client

	roomId, ok := ws.members.RoomOf(c)
	if !ok {
		return
	}

	data, err := validateDrawPayload(kind, evt.Data)
	if err != nil {
		c.queueMessage(ErrInvalidPayload(evt.Event))
		return
	}

	out := Relayed(evt.Event, data)
	ws.broadcast(roomId, out, c)
	ws.publishRemote(roomId, out)

	ws.drawings.Record(roomId, types.DrawingOp{
		Kind:      kind,
		Data:      data,
		Timestamp: evt.Timestamp,
	})
}

// validateDrawPayload returns the payload to relay and store for kind.
// Stroke starts and moves must carry numeric coordinates; stroke ends accept
// any object or nothing; clears carry nothing.
func validateDrawPayload(kind types.OpKind, raw json.RawMessage) (json.RawMessage, error) {
	if kind == types.OpClear {
		return nil, nil
	}

	if len(raw) == 0 || string(raw) == "null" {
		if kind == types.OpStrokeEnd {
			return nil, nil
		}
		return nil, errMissingCoordinates
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, errInvalidPayload
	}

	if kind == types.OpStrokeEnd {
		return raw, nil
	}

	var pt types.StrokePoint
	if err := json.Unmarshal(raw, &pt); err != nil {
		return nil, fmt.Errorf("decode stroke point: %w", err)
	}
	if pt.X == nil || pt.Y == nil {
		return nil, errMissingCoordinates
	}

	return raw, nil
}
