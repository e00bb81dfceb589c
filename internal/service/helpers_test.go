package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/AdamBeresnev/arena-hub/internal/bracket"
	"github.com/AdamBeresnev/arena-hub/internal/db"
	"github.com/AdamBeresnev/arena-hub/internal/middleware"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates a SQLite database in a temp dir and applies the migrations.
// A file is used instead of :memory: so every pooled connection sees the same data.
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := db.Connect(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err, "Failed to connect to test DB")
	t.Cleanup(func() { database.Close() })

	err = db.RunMigrations(database.DB, "file://../../migrations")
	require.NoError(t, err, "Failed to apply migrations")

	return database
}

func guestContext() context.Context {
	return context.WithValue(context.Background(), middleware.UserIDKey, uuid.MustParse(middleware.SuperUserID))
}

func makeTeams(names ...string) []bracket.Registration {
	teams := make([]bracket.Registration, 0, len(names))
	for _, name := range names {
		teams = append(teams, bracket.Registration{
			ID:         uuid.New(),
			PlayerName: name,
			GameID:     "valorant",
			Email:      fmt.Sprintf("%s@example.com", name),
			Phone:      "555-0100",
		})
	}
	return teams
}

// keepOrder is a shuffle that leaves the teams as given.
func keepOrder([]bracket.Registration) {}

// recordingFeed remembers which events were refreshed.
type recordingFeed struct {
	mu        sync.Mutex
	refreshed []uuid.UUID
	contexts  []context.Context
}

func (f *recordingFeed) Refresh(ctx context.Context, eventID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed = append(f.refreshed, eventID)
	f.contexts = append(f.contexts, ctx)
}

// liveContexts counts the recorded refresh contexts that are still usable.
func (f *recordingFeed) liveContexts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, ctx := range f.contexts {
		if ctx.Err() == nil {
			n++
		}
	}
	return n
}

func (f *recordingFeed) count(eventID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, id := range f.refreshed {
		if id == eventID {
			n++
		}
	}
	return n
}
