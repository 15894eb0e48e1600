package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const channelPrefix = "room:"

// envelope wraps a room event on the wire. Origin identifies the publishing
// instance so it can skip its own messages.
type envelope struct {
	Origin  string          `json:"origin"`
	RoomId  string          `json:"roomId"`
	Payload json.RawMessage `json:"payload"`
}

// RedisRelay fans room events out to every server instance subscribed to
// the same redis.
type RedisRelay struct {
	rdb    *redis.Client
	log    *log.Logger
	origin string
}

// NewRedisRelay connects to redis and verifies connectivity.
func NewRedisRelay(ctx context.Context, addr string, logger *log.Logger) (*RedisRelay, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}

	return &RedisRelay{rdb: rdb, log: logger, origin: uuid.NewString()}, nil
}

func (r *RedisRelay) Origin() string {
	return r.origin
}

func (r *RedisRelay) Publish(ctx context.Context, roomId string, payload []byte) error {
	raw, err := encode(r.origin, roomId, payload)
	if err != nil {
		return err
	}

	return r.rdb.Publish(ctx, channel(roomId), raw).Err()
}

// Subscribe listens on every room channel and calls deliver for each event
// published by another instance. It returns when ctx is done.
func (r *RedisRelay) Subscribe(ctx context.Context, deliver func(roomId string, payload []byte)) {
	pubsub := r.rdb.PSubscribe(ctx, channel("*"))
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			env, err := decode(r.origin, msg.Payload)
			if err != nil {
				if !errors.Is(err, errOwnMessage) {
					r.log.Printf("relay: %s: %v", msg.Channel, err)
				}
				continue
			}
			deliver(env.RoomId, env.Payload)
		}
	}
}

func (r *RedisRelay) Close() error {
	return r.rdb.Close()
}

var (
	errOwnMessage    = errors.New("message published by this instance")
	errMissingRoomId = errors.New("message has no room id")
)

func encode(origin, roomId string, payload []byte) ([]byte, error) {
	return json.Marshal(envelope{Origin: origin, RoomId: roomId, Payload: payload})
}

func decode(origin, raw string) (envelope, error) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return envelope{}, err
	}
	if env.Origin == origin {
		return envelope{}, errOwnMessage
	}
	if env.RoomId == "" {
		return envelope{}, errMissingRoomId
	}

	return env, nil
}

func channel(roomId string) string { return channelPrefix + roomId }
