package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/npezzotti/go-whiteboard/internal/database"
	"github.com/npezzotti/go-whiteboard/internal/stats"
	"github.com/npezzotti/go-whiteboard/internal/types"
)

const (
	roomIdAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	roomIdLength   = 6
)

// RoomManager owns the durable lifecycle of rooms: creation with unique
// codes, activity refresh on join and eviction once idle.
type RoomManager struct {
	db         database.DrawingRepository
	drawings   *DrawingLog
	log        *log.Logger
	stats      stats.StatsProvider
	idleWindow time.Duration
	newRoomId  func() string
	now        func() time.Time
}

func NewRoomManager(db database.DrawingRepository, drawings *DrawingLog, logger *log.Logger, su stats.StatsProvider, idleWindow time.Duration) *RoomManager {
	return &RoomManager{
		db:         db,
		drawings:   drawings,
		log:        logger,
		stats:      su,
		idleWindow: idleWindow,
		newRoomId:  generateRoomId,
		now:        time.Now,
	}
}

// CreateOrJoin returns the room with its drawing log. An empty roomId
// creates a room under a fresh code; an unknown roomId is created as given.
func (m *RoomManager) CreateOrJoin(ctx context.Context, roomId string) (types.Room, error) {
	var (
		room database.Room
		err  error
	)

	if roomId == "" {
		room, err = m.createUnique(ctx)
	} else {
		room, err = m.ensure(ctx, roomId)
	}
	if err != nil {
		return types.Room{}, err
	}

	ops, err := m.drawings.Load(ctx, room.RoomId)
	if err != nil {
		return types.Room{}, err
	}

	return toRoom(room, ops), nil
}

// Ensure makes sure roomId exists in the store and refreshes its activity.
func (m *RoomManager) Ensure(ctx context.Context, roomId string) error {
	_, err := m.ensure(ctx, roomId)
	return err
}

// Lookup returns the room and its drawing log without refreshing activity.
func (m *RoomManager) Lookup(ctx context.Context, roomId string) (types.Room, error) {
	room, err := m.db.GetRoom(ctx, roomId)
	if err != nil {
		return types.Room{}, err
	}

	ops, err := m.drawings.Load(ctx, roomId)
	if err != nil {
		return types.Room{}, err
	}

	return toRoom(room, ops), nil
}

// SweepIdle deletes every room whose last activity is older than the idle
// window, together with its drawing log.
func (m *RoomManager) SweepIdle(ctx context.Context) (int64, error) {
	cutoff := m.now().Add(-m.idleWindow).UTC()
	n, err := m.db.DeleteIdleRooms(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete idle rooms: %w", err)
	}

	if n > 0 {
		m.stats.Add(stats.RoomsEvicted, n)
	}
	return n, nil
}

func (m *RoomManager) ensure(ctx context.Context, roomId string) (database.Room, error) {
	err := m.db.TouchRoom(ctx, roomId)
	if err == nil {
		return m.db.GetRoom(ctx, roomId)
	}
	if !errors.Is(err, database.ErrRoomNotFound) {
		return database.Room{}, fmt.Errorf("touch room: %w", err)
	}

	room, err := m.db.CreateRoom(ctx, roomId)
	if errors.Is(err, database.ErrDuplicateRoom) {
		// lost a race with a concurrent create
		if err := m.db.TouchRoom(ctx, roomId); err != nil {
			return database.Room{}, fmt.Errorf("touch room: %w", err)
		}
		return m.db.GetRoom(ctx, roomId)
	}
	if err != nil {
		return database.Room{}, fmt.Errorf("create room: %w", err)
	}

	m.log.Printf("created room %q", roomId)
	return room, nil
}

func (m *RoomManager) createUnique(ctx context.Context) (database.Room, error) {
	for {
		if err := ctx.Err(); err != nil {
			return database.Room{}, err
		}

		roomId := m.newRoomId()
		exists, err := m.db.RoomExists(ctx, roomId)
		if err != nil {
			return database.Room{}, fmt.Errorf("check room id: %w", err)
		}
		if exists {
			continue
		}

		room, err := m.db.CreateRoom(ctx, roomId)
		if errors.Is(err, database.ErrDuplicateRoom) {
			continue
		}
		if err != nil {
			return database.Room{}, fmt.Errorf("create room: %w", err)
		}

		m.log.Printf("created room %q", roomId)
		return room, nil
	}
}

func generateRoomId() string {
	var sb strings.Builder
	sb.Grow(roomIdLength)
	for range roomIdLength {
		sb.WriteByte(roomIdAlphabet[rand.IntN(len(roomIdAlphabet))])
	}
	return sb.String()
}

// ValidRoomId reports whether id is a non-empty room code of printable
// characters short enough to store.
func ValidRoomId(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, r := range id {
		if r <= ' ' || r == 0x7f {
			return false
		}
	}
	return true
}

func toRoom(room database.Room, ops []types.DrawingOp) types.Room {
	return types.Room{
		RoomId:       room.RoomId,
		CreatedAt:    room.CreatedAt,
		LastActivity: room.LastActivity,
		DrawingData:  ops,
	}
}
