package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"log"
	"sync"
	"time"

	"github.com/npezzotti/go-whiteboard/internal/database"
	"github.com/npezzotti/go-whiteboard/internal/stats"
	"github.com/npezzotti/go-whiteboard/internal/types"
)

const persistTimeout = 5 * time.Second

type persistJob struct {
	roomId string
	op     types.DrawingOp
}

// DrawingLog appends accepted ops to the durable per-room log. Writes are
// fanned out to a fixed set of workers sharded by room so that ops for one
// room are stored in the order they were recorded.
type DrawingLog struct {
	db      database.DrawingRepository
	policy  PersistPolicy
	log     *log.Logger
	stats   stats.StatsProvider
	queues  []chan persistJob
	mu      sync.RWMutex
	started bool
	stopped bool
	wg      sync.WaitGroup
}

func NewDrawingLog(db database.DrawingRepository, policy PersistPolicy, logger *log.Logger, su stats.StatsProvider, workers, queueSize int) *DrawingLog {
	queues := make([]chan persistJob, workers)
	for i := range queues {
		queues[i] = make(chan persistJob, queueSize)
	}

	return &DrawingLog{
		db:     db,
		policy: policy,
		log:    logger,
		stats:  su,
		queues: queues,
	}
}

func (d *DrawingLog) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started || d.stopped {
		return
	}
	d.started = true

	for _, q := range d.queues {
		d.wg.Add(1)
		go d.worker(q)
	}
}

// Record applies the persistence policy and queues op for writing. It never
// blocks; a full queue drops the write.
func (d *DrawingLog) Record(roomId string, op types.DrawingOp) bool {
	if !op.Kind.Valid() {
		d.log.Printf("refusing to record unknown op kind %q", op.Kind)
		return false
	}
	if !d.policy.ShouldPersist(op.Kind) {
		d.stats.Incr(stats.OpsSampledOut)
		return false
	}

	if op.Timestamp.IsZero() {
		op.Timestamp = Now()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		return false
	}

	select {
	case d.queues[d.shard(roomId)] <- persistJob{roomId: roomId, op: op}:
		return true
	default:
		d.log.Printf("persist queue full, dropping %s op for room %q", op.Kind, roomId)
		d.stats.Incr(stats.PersistFailures)
		return false
	}
}

// Load returns the stored log for roomId in insertion order.
func (d *DrawingLog) Load(ctx context.Context, roomId string) ([]types.DrawingOp, error) {
	dbOps, err := d.db.GetOps(ctx, roomId)
	if err != nil {
		return nil, fmt.Errorf("get ops: %w", err)
	}

	return toDrawingOps(dbOps), nil
}

// Stop stops accepting new ops and waits for queued writes to finish.
func (d *DrawingLog) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *DrawingLog) shard(roomId string) int {
	h := fnv.New32a()
	h.Write([]byte(roomId))
	return int(h.Sum32() % uint32(len(d.queues)))
}

func (d *DrawingLog) worker(q <-chan persistJob) {
	defer d.wg.Done()

	for job := range q {
		d.persist(job)
	}
}

func (d *DrawingLog) persist(job persistJob) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	op := database.DrawingOp{
		RoomId:    job.roomId,
		Kind:      string(job.op.Kind),
		Data:      job.op.Data,
		CreatedAt: job.op.Timestamp,
	}

	var err error
	if job.op.Kind == types.OpClear {
		err = d.db.ReplaceOps(ctx, op)
	} else {
		err = d.db.AppendOp(ctx, op)
	}

	if err != nil {
		if errors.Is(err, database.ErrRoomNotFound) {
			d.log.Printf("dropping %s op: room %q no longer exists", job.op.Kind, job.roomId)
		} else {
			d.log.Printf("persist %s op for room %q: %v", job.op.Kind, job.roomId, err)
		}
		d.stats.Incr(stats.PersistFailures)
		return
	}

	d.stats.Incr(stats.OpsPersisted)
}

func toDrawingOps(dbOps []database.DrawingOp) []types.DrawingOp {
	ops := make([]types.DrawingOp, 0, len(dbOps))
	for _, op := range dbOps {
		ops = append(ops, types.DrawingOp{
			Kind:      types.OpKind(op.Kind),
			Data:      json.RawMessage(op.Data),
			Timestamp: op.CreatedAt,
		})
	}

	return ops
}
