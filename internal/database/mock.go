package database

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

type MockDrawingRepository struct {
	mock.Mock
}

func (m *MockDrawingRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
func (m *MockDrawingRepository) RoomExists(ctx context.Context, roomId string) (bool, error) {
	args := m.Called(ctx, roomId)
	return args.Bool(0), args.Error(1)
}
func (m *MockDrawingRepository) CreateRoom(ctx context.Context, roomId string) (Room, error) {
	args := m.Called(ctx, roomId)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockDrawingRepository) GetRoom(ctx context.Context, roomId string) (Room, error) {
	args := m.Called(ctx, roomId)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockDrawingRepository) TouchRoom(ctx context.Context, roomId string) error {
	args := m.Called(ctx, roomId)
	return args.Error(0)
}
func (m *MockDrawingRepository) GetOps(ctx context.Context, roomId string) ([]DrawingOp, error) {
	args := m.Called(ctx, roomId)
	if ops, ok := args.Get(0).([]DrawingOp); ok {
		return ops, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockDrawingRepository) AppendOp(ctx context.Context, op DrawingOp) error {
	args := m.Called(ctx, op)
	return args.Error(0)
}
func (m *MockDrawingRepository) ReplaceOps(ctx context.Context, op DrawingOp) error {
	args := m.Called(ctx, op)
	return args.Error(0)
}
func (m *MockDrawingRepository) DeleteIdleRooms(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockDrawingRepository) Close() error {
	args := m.Called()
	return args.Error(0)
}
