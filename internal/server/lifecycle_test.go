package server

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/npezzotti/go-whiteboard/internal/database"
	"github.com/npezzotti/go-whiteboard/internal/stats"
	"github.com/npezzotti/go-whiteboard/internal/testutil"
	"github.com/npezzotti/go-whiteboard/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestRoomManager(t *testing.T, db database.DrawingRepository, su stats.StatsProvider) *RoomManager {
	logger := testutil.TestLogger(t)
	drawings := NewDrawingLog(db, NewSamplingPolicy(1, 1), logger, su, 1, 8)
	return NewRoomManager(db, drawings, logger, su, 24*time.Hour)
}

func Test_generateRoomId(t *testing.T) {
	pattern := regexp.MustCompile(`^[A-Z0-9]{6}$`)
	for range 1000 {
		id := generateRoomId()
		assert.Regexp(t, pattern, id)
	}
}

func TestValidRoomId(t *testing.T) {
	assert.True(t, ValidRoomId("AB12CD"))
	assert.True(t, ValidRoomId("my-room"))
	assert.False(t, ValidRoomId(""))
	assert.False(t, ValidRoomId("has space"))
	assert.False(t, ValidRoomId(string(make([]byte, 65))))
}

func TestRoomManager_CreateOrJoin(t *testing.T) {
	t.Run("fresh code retries until unused", func(t *testing.T) {
		db := &database.MockDrawingRepository{}
		defer db.AssertExpectations(t)

		m := newTestRoomManager(t, db, newTestStats())
		ids := []string{"TAKEN1", "RACE01", "FRESH1"}
		m.newRoomId = func() string {
			id := ids[0]
			ids = ids[1:]
			return id
		}

		created := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
		db.On("RoomExists", mock.Anything, "TAKEN1").Return(true, nil).Once()
		db.On("RoomExists", mock.Anything, "RACE01").Return(false, nil).Once()
		db.On("CreateRoom", mock.Anything, "RACE01").Return(database.Room{}, database.ErrDuplicateRoom).Once()
		db.On("RoomExists", mock.Anything, "FRESH1").Return(false, nil).Once()
		db.On("CreateRoom", mock.Anything, "FRESH1").Return(database.Room{RoomId: "FRESH1", CreatedAt: created, LastActivity: created}, nil).Once()
		db.On("GetOps", mock.Anything, "FRESH1").Return([]database.DrawingOp{}, nil).Once()

		room, err := m.CreateOrJoin(context.Background(), "")
		assert.NoError(t, err)
		assert.Equal(t, "FRESH1", room.RoomId)
		assert.Equal(t, created, room.CreatedAt)
		assert.NotNil(t, room.DrawingData, "expected an empty, non-nil drawing log")
		assert.Empty(t, room.DrawingData)
	})

	t.Run("existing room is joined", func(t *testing.T) {
		db := &database.MockDrawingRepository{}
		defer db.AssertExpectations(t)

		m := newTestRoomManager(t, db, newTestStats())

		db.On("TouchRoom", mock.Anything, "AB12CD").Return(nil).Once()
		db.On("GetRoom", mock.Anything, "AB12CD").Return(database.Room{RoomId: "AB12CD"}, nil).Once()
		db.On("GetOps", mock.Anything, "AB12CD").Return([]database.DrawingOp{
			{Kind: "stroke-start", Data: []byte(`{"x":1,"y":1}`)},
			{Kind: "stroke-end", Data: []byte(`{}`)},
		}, nil).Once()

		room, err := m.CreateOrJoin(context.Background(), "AB12CD")
		assert.NoError(t, err)
		if assert.Len(t, room.DrawingData, 2) {
			assert.Equal(t, types.OpStrokeStart, room.DrawingData[0].Kind)
			assert.JSONEq(t, `{"x":1,"y":1}`, string(room.DrawingData[0].Data))
			assert.Equal(t, types.OpStrokeEnd, room.DrawingData[1].Kind)
		}
	})

	t.Run("unknown explicit room is created", func(t *testing.T) {
		db := &database.MockDrawingRepository{}
		defer db.AssertExpectations(t)

		m := newTestRoomManager(t, db, newTestStats())

		db.On("TouchRoom", mock.Anything, "NEW001").Return(database.ErrRoomNotFound).Once()
		db.On("CreateRoom", mock.Anything, "NEW001").Return(database.Room{RoomId: "NEW001"}, nil).Once()
		db.On("GetOps", mock.Anything, "NEW001").Return(nil, nil).Once()

		room, err := m.CreateOrJoin(context.Background(), "NEW001")
		assert.NoError(t, err)
		assert.Equal(t, "NEW001", room.RoomId)
	})

	t.Run("concurrent create is treated as a join", func(t *testing.T) {
		db := &database.MockDrawingRepository{}
		defer db.AssertExpectations(t)

		m := newTestRoomManager(t, db, newTestStats())

		db.On("TouchRoom", mock.Anything, "NEW001").Return(database.ErrRoomNotFound).Once()
		db.On("CreateRoom", mock.Anything, "NEW001").Return(database.Room{}, database.ErrDuplicateRoom).Once()
		db.On("TouchRoom", mock.Anything, "NEW001").Return(nil).Once()
		db.On("GetRoom", mock.Anything, "NEW001").Return(database.Room{RoomId: "NEW001"}, nil).Once()
		db.On("GetOps", mock.Anything, "NEW001").Return(nil, nil).Once()

		room, err := m.CreateOrJoin(context.Background(), "NEW001")
		assert.NoError(t, err)
		assert.Equal(t, "NEW001", room.RoomId)
	})

	t.Run("store failure", func(t *testing.T) {
		db := &database.MockDrawingRepository{}
		defer db.AssertExpectations(t)

		m := newTestRoomManager(t, db, newTestStats())
		storeErr := errors.New("connection refused")

		db.On("TouchRoom", mock.Anything, "AB12CD").Return(storeErr).Once()

		_, err := m.CreateOrJoin(context.Background(), "AB12CD")
		assert.ErrorIs(t, err, storeErr)
	})

	t.Run("cancelled context stops id search", func(t *testing.T) {
		db := &database.MockDrawingRepository{}
		m := newTestRoomManager(t, db, newTestStats())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := m.CreateOrJoin(ctx, "")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRoomManager_Lookup(t *testing.T) {
	db := &database.MockDrawingRepository{}
	defer db.AssertExpectations(t)

	m := newTestRoomManager(t, db, newTestStats())
	db.On("GetRoom", mock.Anything, "ZZZZZZ").Return(database.Room{}, database.ErrRoomNotFound).Once()

	_, err := m.Lookup(context.Background(), "ZZZZZZ")
	assert.ErrorIs(t, err, database.ErrRoomNotFound)
}

func TestRoomManager_SweepIdle(t *testing.T) {
	db := &database.MockDrawingRepository{}
	defer db.AssertExpectations(t)

	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)

	m := newTestRoomManager(t, db, su)
	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	db.On("DeleteIdleRooms", mock.Anything, now.Add(-24*time.Hour)).Return(int64(3), nil).Once()
	su.On("Add", stats.RoomsEvicted, int64(3)).Once()

	n, err := m.SweepIdle(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)

	db.On("DeleteIdleRooms", mock.Anything, now.Add(-24*time.Hour)).Return(int64(0), errors.New("timeout")).Once()
	_, err = m.SweepIdle(context.Background())
	assert.Error(t, err)
}

func TestRoomManager_evictionWithStore(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	m := newTestRoomManager(t, repo, newTestStats())

	_, err := m.CreateOrJoin(ctx, "AB12CD")
	require.NoError(t, err)

	m.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	n, err := m.SweepIdle(ctx)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), n, "expected the idle room to be evicted")

	_, err = m.Lookup(ctx, "AB12CD")
	assert.ErrorIs(t, err, database.ErrRoomNotFound)

	room, err := m.CreateOrJoin(ctx, "AB12CD")
	assert.NoError(t, err, "expected an evicted code to be reusable")
	assert.Empty(t, room.DrawingData, "expected a reused code to start with an empty log")
}
