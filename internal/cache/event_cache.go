// Package cache keeps recently read events in memory so the event list does not hit
// the database on every page view. Every write to an event must invalidate it.
package cache

import (
	"sync"
	"time"

	"github.com/AdamBeresnev/arena-hub/internal/bracket"
	"github.com/google/uuid"
)

type entry struct {
	event     bracket.Event
	expiresAt time.Time
}

type EventCache struct {
	ttl time.Duration
	now func() time.Time

	mu            sync.RWMutex
	list          []bracket.Event
	listExpiresAt time.Time
	hasList       bool
	byID          map[uuid.UUID]entry
}

// NewEventCache creates a cache. A ttl of zero or less disables caching entirely.
func NewEventCache(ttl time.Duration) *EventCache {
	return &EventCache{
		ttl:  ttl,
		now:  time.Now,
		byID: make(map[uuid.UUID]entry),
	}
}

func (c *EventCache) enabled() bool {
	return c != nil && c.ttl > 0
}

func (c *EventCache) GetList() ([]bracket.Event, bool) {
	if !c.enabled() {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.hasList || !c.now().Before(c.listExpiresAt) {
		return nil, false
	}
	return append([]bracket.Event(nil), c.list...), true
}

func (c *EventCache) SetList(events []bracket.Event) {
	if !c.enabled() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	c.list = append([]bracket.Event(nil), events...)
	c.listExpiresAt = now.Add(c.ttl)
	c.hasList = true
	for _, ev := range events {
		c.byID[ev.ID] = entry{event: ev, expiresAt: now.Add(c.ttl)}
	}
}

func (c *EventCache) GetEvent(id uuid.UUID) (*bracket.Event, bool) {
	if !c.enabled() {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.byID[id]
	if !ok || !c.now().Before(e.expiresAt) {
		return nil, false
	}
	ev := e.event
	return &ev, true
}

func (c *EventCache) SetEvent(ev bracket.Event) {
	if !c.enabled() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID[ev.ID] = entry{event: ev, expiresAt: c.now().Add(c.ttl)}
}

// Invalidate drops one event and the list it may be part of.
func (c *EventCache) Invalidate(id uuid.UUID) {
	if !c.enabled() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byID, id)
	c.dropList()
}

// InvalidateList drops the cached list only, used when an event is added.
func (c *EventCache) InvalidateList() {
	if !c.enabled() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropList()
}

func (c *EventCache) dropList() {
	c.list = nil
	c.hasList = false
}

// PurgeExpired removes expired entries and returns how many were dropped.
func (c *EventCache) PurgeExpired() int {
	if !c.enabled() {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	purged := 0
	for id, e := range c.byID {
		if !now.Before(e.expiresAt) {
			delete(c.byID, id)
			purged++
		}
	}
	if c.hasList && !now.Before(c.listExpiresAt) {
		c.dropList()
		purged++
	}
	return purged
}

func (c *EventCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID)
}
