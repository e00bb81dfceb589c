package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/AdamBeresnev/arena-hub/internal/bracket"
	"github.com/AdamBeresnev/arena-hub/internal/db"
	users "github.com/AdamBeresnev/arena-hub/internal/user"
	"github.com/AdamBeresnev/arena-hub/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSuperUserID = "00000000-0000-0000-0000-000000000001"

// setupTestDB creates a SQLite database in a temp dir and applies migrations
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := db.Connect(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err, "Failed to connect to test DB")
	t.Cleanup(func() { database.Close() })

	err = db.RunMigrations(database.DB, "file://../../migrations")
	require.NoError(t, err, "Failed to apply migrations")

	return database
}

func createTestEvent(t *testing.T, events *EventStore) *bracket.Event {
	t.Helper()
	id := uuid.New()
	event := &bracket.Event{
		ID:        id,
		OwnerID:   uuid.MustParse(testSuperUserID),
		Name:      "Test Event",
		Slug:      "test-event-" + id.String()[:8],
		GameID:    "valorant",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, events.CreateEvent(context.Background(), event))
	return event
}

func TestEventStore(t *testing.T) {
	database := setupTestDB(t)
	events := NewEventStore(database)
	ctx := context.Background()

	event := createTestEvent(t, events)

	fetched, err := events.GetEvent(ctx, event.ID.String())
	require.NoError(t, err)
	assert.Equal(t, event.Name, fetched.Name)
	assert.Equal(t, event.OwnerID, fetched.OwnerID)

	bySlug, err := events.GetEventBySlug(ctx, event.Slug)
	require.NoError(t, err)
	assert.Equal(t, event.ID, bySlug.ID)

	err = events.CreateRegistration(ctx, &bracket.Registration{
		ID:           uuid.New(),
		EventID:      event.ID,
		PlayerName:   "Alpha",
		TeamName:     utils.Ptr("Alpha Squad"),
		GameID:       "valorant",
		Email:        "alpha@example.com",
		Phone:        "555-0100",
		RegisteredAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	tx, err := database.BeginTxx(ctx, nil)
	require.NoError(t, err)
	err = events.CreateRegistrationsTx(ctx, tx, []bracket.Registration{{
		ID:           uuid.New(),
		EventID:      event.ID,
		PlayerName:   "Bravo",
		GameID:       "valorant",
		Email:        "bravo@example.com",
		Phone:        "555-0101",
		RegisteredAt: time.Now().UTC().Add(time.Second),
	}})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	registrations, err := events.GetRegistrations(ctx, event.ID.String())
	require.NoError(t, err)
	require.Len(t, registrations, 2)
	assert.Equal(t, "Alpha", registrations[0].PlayerName)
	assert.Equal(t, "Alpha Squad", utils.OrZero(registrations[0].TeamName))
	assert.Nil(t, registrations[1].TeamName)

	list, err := events.ListEvents(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	deleted, err := events.DeleteEvent(ctx, event.ID.String())
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	registrations, err = events.GetRegistrations(ctx, event.ID.String())
	require.NoError(t, err)
	assert.Empty(t, registrations, "registrations cascade with the event")
}

func TestMatchStore(t *testing.T) {
	database := setupTestDB(t)
	events := NewEventStore(database)
	matches := NewMatchStore(database)
	ctx := context.Background()

	event := createTestEvent(t, events)
	createdAt := time.Now().UTC().Truncate(time.Second)

	team := func(name string) bracket.TeamSnapshot {
		return bracket.TeamSnapshot{RegistrationID: uuid.New(), Name: name, GameID: "valorant"}
	}
	bravo := team("Bravo")
	batch := []bracket.Match{
		{
			ID: uuid.New(), EventID: event.ID, MatchOrder: 1,
			Team1: team("Alpha"), Team2: &bravo, Status: bracket.MatchPending,
			Prediction: &bracket.Prediction{Confidence: 64, SuggestedWinner: bracket.Team2, Reason: "form"},
			CreatedAt:  createdAt,
		},
		{
			ID: uuid.New(), EventID: event.ID, MatchOrder: 2,
			Team1: team("Charlie"), Status: bracket.MatchWaiting,
			CreatedAt: createdAt,
		},
	}

	tx, err := database.BeginTxx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, matches.CreateMatches(ctx, tx, batch))
	require.NoError(t, tx.Commit())

	stored, err := matches.GetMatches(ctx, event.ID.String())
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "Alpha", stored[0].Team1.Name)
	require.NotNil(t, stored[0].Team2)
	assert.Equal(t, bravo, *stored[0].Team2)
	require.NotNil(t, stored[0].Prediction)
	assert.Equal(t, bracket.Team2, stored[0].Prediction.SuggestedWinner)
	assert.Nil(t, stored[1].Team2, "bye has no opponent")
	assert.Nil(t, stored[1].Prediction)

	t.Run("complete once", func(t *testing.T) {
		id := batch[0].ID.String()
		n, err := matches.CompleteMatch(ctx, id, bracket.Team1, time.Now().UTC())
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		n, err = matches.CompleteMatch(ctx, id, bracket.Team2, time.Now().UTC())
		require.NoError(t, err)
		assert.EqualValues(t, 0, n)

		n, err = matches.UpdateStatus(ctx, id, bracket.MatchPending)
		require.NoError(t, err)
		assert.EqualValues(t, 0, n, "completed matches keep their status")

		match, err := matches.GetMatch(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, match.Winner)
		assert.Equal(t, bracket.Team1, *match.Winner)
		assert.NotNil(t, match.CompletedAt)
	})

	t.Run("stats", func(t *testing.T) {
		n, err := matches.UpdateStats(ctx, batch[0].ID.String(), bracket.MatchStats{Score1: utils.Ptr(13), Score2: utils.Ptr(7)})
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		match, err := matches.GetMatch(ctx, batch[0].ID.String())
		require.NoError(t, err)
		require.NotNil(t, match.Stats)
		assert.Equal(t, 13, utils.OrZero(match.Stats.Score1))
	})

	t.Run("delete", func(t *testing.T) {
		ids, err := matches.GetMatchIDs(ctx, event.ID.String())
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{batch[0].ID, batch[1].ID}, ids)

		n, err := matches.DeleteMatch(ctx, uuid.NewString(), ids[1].String())
		require.NoError(t, err)
		assert.EqualValues(t, 0, n, "match belongs to another event")

		tx, err := database.BeginTxx(ctx, nil)
		require.NoError(t, err)
		n, err = matches.DeleteMatchesTx(ctx, tx, event.ID.String(), ids)
		require.NoError(t, err)
		require.NoError(t, tx.Commit())
		assert.EqualValues(t, 2, n)

		stored, err := matches.GetMatches(ctx, event.ID.String())
		require.NoError(t, err)
		assert.Empty(t, stored)
	})
}

func TestUserStore(t *testing.T) {
	database := setupTestDB(t)
	organizers := NewUserStore(database)
	ctx := context.Background()

	guest, err := organizers.GetUser(ctx, uuid.MustParse(testSuperUserID))
	require.NoError(t, err)
	assert.Equal(t, "Guest Organizer", guest.Username)
	assert.False(t, guest.CreatedAt.IsZero())

	t.Run("insert keeps existing rows", func(t *testing.T) {
		inserted, err := organizers.InsertUser(ctx, &users.User{ID: guest.ID, Email: "other@example.com", Username: "Other"})
		require.NoError(t, err)
		assert.False(t, inserted)

		stored, err := organizers.GetUser(ctx, guest.ID)
		require.NoError(t, err)
		assert.Equal(t, "Guest Organizer", stored.Username)
	})

	t.Run("provider login upserts", func(t *testing.T) {
		login := func(name string, avatar *string) *users.User {
			t.Helper()
			user, err := organizers.UpsertProviderUser(ctx, &users.User{
				ID:         uuid.New(),
				Email:      "ana@example.com",
				Username:   name,
				Provider:   utils.Ptr("discord"),
				ProviderID: utils.Ptr("42"),
				AvatarURL:  avatar,
			})
			require.NoError(t, err)
			return user
		}

		first := login("ana", nil)
		assert.Nil(t, first.AvatarURL)

		second := login("ana_plays", utils.Ptr("https://cdn.example.com/ana.png"))
		assert.Equal(t, first.ID, second.ID, "same provider account keeps its id")
		assert.Equal(t, "ana_plays", second.Username)
		assert.Equal(t, "https://cdn.example.com/ana.png", utils.OrZero(second.AvatarURL))

		var count int
		require.NoError(t, database.Get(&count, "SELECT COUNT(*) FROM users WHERE provider = 'discord'"))
		assert.Equal(t, 1, count)
	})

	_, err = organizers.GetUser(ctx, uuid.New())
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
