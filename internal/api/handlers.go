package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-whiteboard/internal/database"
	"github.com/npezzotti/go-whiteboard/internal/server"
	"github.com/npezzotti/go-whiteboard/internal/types"
)

const requestTimeout = 5 * time.Second

type JoinRoomRequest struct {
	RoomId string `json:"roomId"`
}

type JoinRoomResponse struct {
	Success     bool              `json:"success"`
	RoomId      string            `json:"roomId"`
	DrawingData []types.DrawingOp `json:"drawingData"`
}

type GetRoomResponse struct {
	Success bool       `json:"success"`
	Room    types.Room `json:"room"`
}

func (s *WhiteboardApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *WhiteboardApp) writeError(w http.ResponseWriter, errResp *ApiError) {
	if errResp.Err != nil {
		s.log.Println(errResp.Error())
	}
	s.writeJson(w, errResp.StatusCode, errResp)
}

// joinRoom creates a room when no roomId is given, or joins (creating it if
// necessary) the named room, and returns its drawing log.
func (s *WhiteboardApp) joinRoom(w http.ResponseWriter, r *http.Request) {
	var req JoinRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, NewBadRequestError())
		return
	}

	if req.RoomId != "" && !server.ValidRoomId(req.RoomId) {
		s.writeError(w, NewBadRequestError())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	room, err := s.ws.Rooms().CreateOrJoin(ctx, req.RoomId)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusOK, JoinRoomResponse{
		Success:     true,
		RoomId:      room.RoomId,
		DrawingData: room.DrawingData,
	})
}

func (s *WhiteboardApp) getRoom(w http.ResponseWriter, r *http.Request) {
	roomId := r.PathValue("roomId")
	if !server.ValidRoomId(roomId) {
		s.writeError(w, NewBadRequestError())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	room, err := s.ws.Rooms().Lookup(ctx, roomId)
	if err != nil {
		if errors.Is(err, database.ErrRoomNotFound) {
			s.writeError(w, NewRoomNotFoundError())
		} else {
			s.writeError(w, NewInternalServerError(err))
		}
		return
	}

	s.writeJson(w, http.StatusOK, GetRoomResponse{Success: true, Room: room})
}

func (s *WhiteboardApp) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if err := s.db.Ping(ctx); err != nil {
		s.writeError(w, NewServiceUnavailableError(err))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *WhiteboardApp) serveWs(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client, err := server.NewClient(conn, s.ws, s.log)
	if err != nil {
		s.log.Println("error creating client:", err)
		conn.Close()
		return
	}

	s.ws.RegisterClient(client)
	go client.Write()
	go client.Read()
}
