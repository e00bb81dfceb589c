// Package live pushes match snapshots to whoever is watching an event.
package live

import (
	"context"
	"log/slog"
	"sync"

	"github.com/AdamBeresnev/arena-hub/internal/bracket"
	"github.com/google/uuid"
)

// Loader reads the full current match list of an event.
type Loader func(ctx context.Context, eventID uuid.UUID) ([]bracket.Match, error)

// Snapshot is the complete match list of one event at some point in time.
// Seq grows by one with every snapshot emitted for the event.
type Snapshot struct {
	EventID uuid.UUID       `json:"eventId"`
	Seq     uint64          `json:"seq"`
	Matches []bracket.Match `json:"matches"`
}

// Broker re-reads an event's matches after every change and hands the result to
// all subscribers of that event.
type Broker struct {
	load Loader

	// Guards feeds, their subscriber sets and every channel send
	mu    sync.Mutex
	feeds map[uuid.UUID]*feed
}

type feed struct {
	// Serializes load+publish so snapshots never go backwards
	refreshMu sync.Mutex
	seq       uint64
	subs      map[*Subscription]struct{}
}

type Subscription struct {
	EventID uuid.UUID

	broker *Broker
	feed   *feed
	c      chan Snapshot
	once   sync.Once
}

func NewBroker(load Loader) *Broker {
	return &Broker{
		load:  load,
		feeds: make(map[uuid.UUID]*feed),
	}
}

// Subscribe registers a watcher and delivers the current snapshot before returning.
func (b *Broker) Subscribe(ctx context.Context, eventID uuid.UUID) (*Subscription, error) {
	b.mu.Lock()
	f, ok := b.feeds[eventID]
	if !ok {
		f = &feed{subs: make(map[*Subscription]struct{})}
		b.feeds[eventID] = f
	}
	sub := &Subscription{
		EventID: eventID,
		broker:  b,
		feed:    f,
		c:       make(chan Snapshot, 1),
	}
	f.subs[sub] = struct{}{}
	b.mu.Unlock()

	if err := b.refresh(ctx, eventID, f); err != nil {
		sub.Cancel()
		return nil, err
	}
	return sub, nil
}

// Refresh reloads the event's matches and publishes them. Events nobody watches are skipped.
func (b *Broker) Refresh(ctx context.Context, eventID uuid.UUID) {
	b.mu.Lock()
	f, ok := b.feeds[eventID]
	b.mu.Unlock()
	if !ok {
		return
	}

	if err := b.refresh(ctx, eventID, f); err != nil {
		slog.Error("failed to refresh match feed", "event_id", eventID, "error", err)
	}
}

func (b *Broker) refresh(ctx context.Context, eventID uuid.UUID, f *feed) error {
	f.refreshMu.Lock()
	defer f.refreshMu.Unlock()

	matches, err := b.load(ctx, eventID)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	f.seq++
	snapshot := Snapshot{EventID: eventID, Seq: f.seq, Matches: matches}
	for sub := range f.subs {
		sub.deliver(snapshot)
	}
	return nil
}

// SubscriberCount returns how many subscriptions are open for an event.
func (b *Broker) SubscriberCount(eventID uuid.UUID) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if f, ok := b.feeds[eventID]; ok {
		return len(f.subs)
	}
	return 0
}

// C returns the channel snapshots arrive on. It is closed by Cancel.
func (s *Subscription) C() <-chan Snapshot {
	return s.c
}

// Cancel stops delivery. Nothing is sent on C after Cancel returns. Safe to call more than once.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		b := s.broker
		b.mu.Lock()
		defer b.mu.Unlock()

		delete(s.feed.subs, s)
		close(s.c)
		if len(s.feed.subs) == 0 && b.feeds[s.EventID] == s.feed {
			delete(b.feeds, s.EventID)
		}
	})
}

// deliver never blocks: a subscriber that has not read the previous snapshot yet
// gets it replaced by the newer one. Must be called with broker.mu held.
func (s *Subscription) deliver(snapshot Snapshot) {
	select {
	case s.c <- snapshot:
		return
	default:
	}

	select {
	case <-s.c:
	default:
	}
	s.c <- snapshot
}
