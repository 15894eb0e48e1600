package server

import (
	"sync"
	"time"
)

type CursorState struct {
	X          float64
	Y          float64
	Active     bool
	LastUpdate time.Time
}

// PresenceTracker holds the cursor state of every connection that has joined
// a room. An entry is Active or Inactive; only Active entries that have moved
// at least once are subject to the staleness sweep.
type PresenceTracker struct {
	mu      sync.Mutex
	cursors map[string]*CursorState
	now     func() time.Time
}

func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{
		cursors: make(map[string]*CursorState),
		now:     time.Now,
	}
}

// Reset (re)creates the entry for id as Active with no position yet.
func (p *PresenceTracker) Reset(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cursors[id] = &CursorState{Active: true}
}

func (p *PresenceTracker) Move(id string, x, y float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cs, ok := p.cursors[id]
	if !ok {
		cs = &CursorState{}
		p.cursors[id] = cs
	}

	cs.X, cs.Y = x, y
	cs.Active = true
	cs.LastUpdate = p.now()
}

// MarkInactive reports whether the entry transitioned from Active.
func (p *PresenceTracker) MarkInactive(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	cs, ok := p.cursors[id]
	if !ok || !cs.Active {
		return false
	}

	cs.Active = false
	return true
}

// Sweep marks every Active entry whose last update is older than staleAfter
// as Inactive and returns the ids that transitioned.
func (p *PresenceTracker) Sweep(staleAfter time.Duration) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	var stale []string
	for id, cs := range p.cursors {
		if !cs.Active || cs.LastUpdate.IsZero() {
			continue
		}
		if now.Sub(cs.LastUpdate) > staleAfter {
			cs.Active = false
			stale = append(stale, id)
		}
	}

	return stale
}

func (p *PresenceTracker) Remove(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.cursors, id)
}

func (p *PresenceTracker) Get(id string) (CursorState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cs, ok := p.cursors[id]
	if !ok {
		return CursorState{}, false
	}
	return *cs, true
}

func (p *PresenceTracker) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.cursors)
}
