package live

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/AdamBeresnev/arena-hub/internal/bracket"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLedger stands in for the match store.
type fakeLedger struct {
	mu      sync.Mutex
	matches map[uuid.UUID][]bracket.Match
	loads   int
	fail    error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{matches: make(map[uuid.UUID][]bracket.Match)}
}

func (l *fakeLedger) load(ctx context.Context, eventID uuid.UUID) ([]bracket.Match, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loads++
	if l.fail != nil {
		return nil, l.fail
	}
	return append([]bracket.Match(nil), l.matches[eventID]...), nil
}

func (l *fakeLedger) add(eventID uuid.UUID, name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.matches[eventID] = append(l.matches[eventID], bracket.Match{
		ID:      uuid.New(),
		EventID: eventID,
		Team1:   bracket.TeamSnapshot{Name: name},
		Status:  bracket.MatchWaiting,
	})
}

func receive(t *testing.T, sub *Subscription) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-sub.C():
		require.True(t, ok, "subscription channel closed")
		return snap
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return Snapshot{}
}

func TestBroker_SubscribeDeliversCurrentSnapshot(t *testing.T) {
	ledger := newFakeLedger()
	eventID := uuid.New()
	ledger.add(eventID, "A")

	broker := NewBroker(ledger.load)
	sub, err := broker.Subscribe(context.Background(), eventID)
	require.NoError(t, err)
	defer sub.Cancel()

	snap := receive(t, sub)
	assert.Equal(t, eventID, snap.EventID)
	assert.Equal(t, uint64(1), snap.Seq)
	require.Len(t, snap.Matches, 1)
	assert.Equal(t, "A", snap.Matches[0].Team1.Name)
	assert.Equal(t, 1, broker.SubscriberCount(eventID))
}

func TestBroker_RefreshPublishesToEventSubscribersOnly(t *testing.T) {
	ledger := newFakeLedger()
	eventA, eventB := uuid.New(), uuid.New()
	broker := NewBroker(ledger.load)

	subA, err := broker.Subscribe(context.Background(), eventA)
	require.NoError(t, err)
	defer subA.Cancel()
	subB, err := broker.Subscribe(context.Background(), eventB)
	require.NoError(t, err)
	defer subB.Cancel()
	receive(t, subA)
	receive(t, subB)

	ledger.add(eventA, "A")
	broker.Refresh(context.Background(), eventA)

	snap := receive(t, subA)
	assert.Equal(t, uint64(2), snap.Seq)
	assert.Len(t, snap.Matches, 1)

	select {
	case <-subB.C():
		t.Fatal("event B should not get event A's snapshot")
	default:
	}
}

func TestBroker_RefreshWithoutSubscribersSkipsLoad(t *testing.T) {
	ledger := newFakeLedger()
	broker := NewBroker(ledger.load)

	broker.Refresh(context.Background(), uuid.New())
	assert.Equal(t, 0, ledger.loads)
}

func TestBroker_SlowSubscriberGetsLatest(t *testing.T) {
	ledger := newFakeLedger()
	eventID := uuid.New()
	broker := NewBroker(ledger.load)

	sub, err := broker.Subscribe(context.Background(), eventID)
	require.NoError(t, err)
	defer sub.Cancel()

	// Never read the first one, keep publishing
	for i := 0; i < 5; i++ {
		ledger.add(eventID, "team")
		broker.Refresh(context.Background(), eventID)
	}

	snap := receive(t, sub)
	assert.Equal(t, uint64(6), snap.Seq)
	assert.Len(t, snap.Matches, 5)
}

func TestBroker_SnapshotsNeverGoBackwards(t *testing.T) {
	ledger := newFakeLedger()
	eventID := uuid.New()
	broker := NewBroker(ledger.load)

	sub, err := broker.Subscribe(context.Background(), eventID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ledger.add(eventID, "team")
			broker.Refresh(context.Background(), eventID)
		}()
	}

	done := make(chan struct{})
	var seqs []uint64
	var sizes []int
	go func() {
		defer close(done)
		for snap := range sub.C() {
			seqs = append(seqs, snap.Seq)
			sizes = append(sizes, len(snap.Matches))
		}
	}()

	wg.Wait()
	sub.Cancel()
	<-done

	for i := 1; i < len(seqs); i++ {
		assert.Greater(t, seqs[i], seqs[i-1])
		assert.GreaterOrEqual(t, sizes[i], sizes[i-1])
	}
}

func TestBroker_CancelStopsDelivery(t *testing.T) {
	ledger := newFakeLedger()
	eventID := uuid.New()
	broker := NewBroker(ledger.load)

	sub, err := broker.Subscribe(context.Background(), eventID)
	require.NoError(t, err)
	receive(t, sub)

	sub.Cancel()
	sub.Cancel()
	assert.Equal(t, 0, broker.SubscriberCount(eventID))

	loadsBefore := ledger.loads
	broker.Refresh(context.Background(), eventID)
	assert.Equal(t, loadsBefore, ledger.loads, "no feed should be left for a cancelled event")

	_, ok := <-sub.C()
	assert.False(t, ok, "channel should be closed after cancel")
}

func TestBroker_SubscribeLoadError(t *testing.T) {
	ledger := newFakeLedger()
	ledger.fail = errors.New("disk on fire")
	eventID := uuid.New()
	broker := NewBroker(ledger.load)

	_, err := broker.Subscribe(context.Background(), eventID)
	assert.Error(t, err)
	assert.Equal(t, 0, broker.SubscriberCount(eventID))
}

func TestHub_StreamsSnapshots(t *testing.T) {
	ledger := newFakeLedger()
	eventID := uuid.New()
	ledger.add(eventID, "A")

	broker := NewBroker(ledger.load)
	hub := NewHub(broker, nil)
	defer hub.Stop()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWs(w, r, eventID)
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	readMessage := func() (string, Snapshot) {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var msg struct {
			Type string   `json:"type"`
			Data Snapshot `json:"data"`
		}
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg.Type, msg.Data
	}

	msgType, snap := readMessage()
	assert.Equal(t, SnapshotEventType, msgType)
	assert.Len(t, snap.Matches, 1)

	ledger.add(eventID, "B")
	broker.Refresh(context.Background(), eventID)

	_, snap = readMessage()
	assert.Len(t, snap.Matches, 2)
	assert.Equal(t, 1, hub.ClientCount())

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool {
		return hub.ClientCount() == 0 && broker.SubscriberCount(eventID) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHub_RejectsAfterStop(t *testing.T) {
	hub := NewHub(NewBroker(newFakeLedger().load), nil)
	hub.Stop()
	hub.Stop()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	hub.ServeWs(rec, req, uuid.New())
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestOriginChecker(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{name: "no origin header", origin: "", want: true},
		{name: "same host", origin: "http://arena.local:8080", want: true},
		{name: "same host other case", origin: "https://ARENA.local:8080", want: true},
		{name: "foreign by default", origin: "https://evil.example", want: false},
		{name: "foreign but listed", allowed: []string{"https://bracket.example"}, origin: "https://bracket.example", want: true},
		{name: "foreign not listed", allowed: []string{"https://bracket.example"}, origin: "https://evil.example", want: false},
		{name: "garbage", origin: "://", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "http://arena.local:8080/ws", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, originChecker(tt.allowed)(req))
		})
	}
}
