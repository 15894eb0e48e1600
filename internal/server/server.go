package server

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/npezzotti/go-whiteboard/internal/config"
	"github.com/npezzotti/go-whiteboard/internal/database"
	"github.com/npezzotti/go-whiteboard/internal/stats"
)

const (
	storeTimeout   = 5 * time.Second
	relayQueueSize = 1024
)

// Relay forwards room events to other server instances.
type Relay interface {
	Publish(ctx context.Context, roomId string, payload []byte) error
}

type relayMsg struct {
	roomId  string
	payload []byte
}

type WhiteboardServer struct {
	log         *log.Logger
	stats       stats.StatsProvider
	cfg         config.SyncConfig
	rooms       *RoomManager
	drawings    *DrawingLog
	members     *Registry
	presence    *PresenceTracker
	relay       Relay
	relayQueue  chan relayMsg
	clients     map[string]*Client
	clientsLock sync.RWMutex
	stop        chan struct{}
	done        chan struct{}
}

func NewWhiteboardServer(logger *log.Logger, db database.DrawingRepository, su stats.StatsProvider, cfg config.SyncConfig) (*WhiteboardServer, error) {
	for _, m := range stats.Metrics {
		su.RegisterMetric(m)
	}

	policy := NewSamplingPolicy(cfg.MoveSampleRate, uint64(time.Now().UnixNano()))
	drawings := NewDrawingLog(db, policy, logger, su, cfg.PersistWorkers, cfg.PersistQueueSize)

	ws := &WhiteboardServer{
		log:        logger,
		stats:      su,
		cfg:        cfg,
		drawings:   drawings,
		rooms:      NewRoomManager(db, drawings, logger, su, cfg.RoomIdleWindow),
		presence:   NewPresenceTracker(),
		relayQueue: make(chan relayMsg, relayQueueSize),
		clients:    make(map[string]*Client),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	ws.members = NewRegistry(su, ws.membershipChanged)

	return ws, nil
}

// SetRelay enables cross-instance fan-out. It must be called before Run.
func (ws *WhiteboardServer) SetRelay(r Relay) {
	ws.relay = r
}

func (ws *WhiteboardServer) Rooms() *RoomManager {
	return ws.rooms
}

func (ws *WhiteboardServer) Run() {
	ws.drawings.Start()
	if ws.relay != nil {
		go ws.runRelay()
	}

	presenceTicker := time.NewTicker(ws.cfg.PresenceSweepInterval)
	roomTicker := time.NewTicker(ws.cfg.RoomSweepInterval)
	defer func() {
		presenceTicker.Stop()
		roomTicker.Stop()
	}()

	for {
		select {
		case <-presenceTicker.C:
			ws.sweepPresence()
		case <-roomTicker.C:
			ws.sweepRooms()
		case <-ws.stop:
			ws.log.Println("flushing drawing log")
			ws.drawings.Stop()
			close(ws.done)
			return
		}
	}
}

func (ws *WhiteboardServer) Shutdown(ctx context.Context) error {
	ws.log.Println("shutting down whiteboard server")

	ws.clientsLock.RLock()
	for _, c := range ws.clients {
		c.stopClient()
	}
	ws.clientsLock.RUnlock()

	close(ws.stop)

	select {
	case <-ws.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RegisterClient tracks c and greets it with its connection id.
func (ws *WhiteboardServer) RegisterClient(c *Client) {
	ws.clientsLock.Lock()
	ws.clients[c.id] = c
	ws.clientsLock.Unlock()

	ws.stats.Incr(stats.NumActiveClients)
	c.queueMessage(Connected(c.id))
}

func (ws *WhiteboardServer) deregisterClient(c *Client) {
	ws.clientsLock.Lock()
	_, ok := ws.clients[c.id]
	delete(ws.clients, c.id)
	ws.clientsLock.Unlock()

	if !ok {
		return
	}

	ws.stats.Decr(stats.NumActiveClients)
	ws.presence.Remove(c.id)
	if roomId, ok := ws.members.Leave(c); ok {
		ws.publishRemote(roomId, UserLeft(c.id))
	}
}

func (ws *WhiteboardServer) getClient(id string) *Client {
	ws.clientsLock.RLock()
	defer ws.clientsLock.RUnlock()

	return ws.clients[id]
}

// membershipChanged runs under the registry lock, so the counts members
// observe follow the order of the membership changes themselves.
func (ws *WhiteboardServer) membershipChanged(roomId string, members map[*Client]struct{}, left *Client) {
	count := UserCountUpdate(len(members))
	var leftEvt *ServerEvent
	if left != nil {
		leftEvt = UserLeft(left.id)
	}

	for c := range members {
		if leftEvt != nil {
			c.queueMessage(leftEvt)
		}
		c.queueMessage(count)
	}
}

// broadcast queues evt to every member of roomId except skip and returns
// the number of members it was queued to.
func (ws *WhiteboardServer) broadcast(roomId string, evt *ServerEvent, skip *Client) int {
	n := 0
	ws.members.ForEachMember(roomId, func(c *Client) {
		if c == skip {
			return
		}
		if c.queueMessage(evt) {
			n++
		}
	})

	return n
}

func (ws *WhiteboardServer) sweepPresence() {
	for _, id := range ws.presence.Sweep(ws.cfg.CursorStaleAfter) {
		ws.stats.Incr(stats.CursorsTimedOut)

		c := ws.getClient(id)
		if c == nil {
			continue
		}
		roomId, ok := ws.members.RoomOf(c)
		if !ok {
			continue
		}

		evt := CursorInactive(id)
		ws.broadcast(roomId, evt, c)
		ws.publishRemote(roomId, evt)
	}
}

func (ws *WhiteboardServer) sweepRooms() {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	n, err := ws.rooms.SweepIdle(ctx)
	if err != nil {
		ws.log.Printf("room sweep: %v", err)
		return
	}
	if n > 0 {
		ws.log.Printf("evicted %d idle rooms", n)
	}
}

func (ws *WhiteboardServer) publishRemote(roomId string, evt *ServerEvent) {
	if ws.relay == nil {
		return
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		ws.log.Printf("relay: encode %s: %v", evt.Event, err)
		return
	}

	select {
	case ws.relayQueue <- relayMsg{roomId: roomId, payload: payload}:
	default:
		ws.log.Printf("relay queue full, dropping %s for room %q", evt.Event, roomId)
	}
}

func (ws *WhiteboardServer) runRelay() {
	for {
		select {
		case msg := <-ws.relayQueue:
			ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
			if err := ws.relay.Publish(ctx, msg.roomId, msg.payload); err != nil {
				ws.log.Printf("relay: publish to room %q: %v", msg.roomId, err)
			}
			cancel()
		case <-ws.stop:
			return
		}
	}
}

// DeliverRemote fans out an event published by another instance to the
// local members of roomId.
func (ws *WhiteboardServer) DeliverRemote(roomId string, payload []byte) {
	var evt struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &evt); err != nil {
		ws.log.Printf("relay: decode event for room %q: %v", roomId, err)
		return
	}

	if _, ok := relayedEvents[evt.Event]; !ok {
		ws.log.Printf("relay: ignoring %q for room %q", evt.Event, roomId)
		return
	}

	ws.broadcast(roomId, Relayed(evt.Event, evt.Data), nil)
}
