package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/AdamBeresnev/arena-hub/internal/bracket"
	"github.com/AdamBeresnev/arena-hub/internal/predict"
	"github.com/AdamBeresnev/arena-hub/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"
)

const defaultPredictionWorkers = 4

// MatchFeed is told about every change to an event's matches.
type MatchFeed interface {
	Refresh(ctx context.Context, eventID uuid.UUID)
}

type noopFeed struct{}

func (noopFeed) Refresh(context.Context, uuid.UUID) {}

// notifyFeed runs after the write is committed, so the caller going away must not
// keep viewers from seeing it.
func notifyFeed(ctx context.Context, feed MatchFeed, eventID uuid.UUID) {
	feed.Refresh(context.WithoutCancel(ctx), eventID)
}

// Matchmaker turns a flat list of registrations into one batch of head to head matches.
type Matchmaker struct {
	db        *sqlx.DB
	events    *store.EventStore
	matches   *store.MatchStore
	predictor predict.Predictor
	feed      MatchFeed

	shuffle         func(teams []bracket.Registration)
	now             func() time.Time
	predictionLimit int
}

type MatchmakerOption func(*Matchmaker)

// WithPredictor sets the backend asked about every two-team match. Nil disables predictions.
func WithPredictor(p predict.Predictor) MatchmakerOption {
	return func(m *Matchmaker) { m.predictor = p }
}

func WithMatchFeed(feed MatchFeed) MatchmakerOption {
	return func(m *Matchmaker) {
		if feed != nil {
			m.feed = feed
		}
	}
}

// WithPredictionWorkers bounds how many predictions run at the same time.
func WithPredictionWorkers(n int) MatchmakerOption {
	return func(m *Matchmaker) {
		if n > 0 {
			m.predictionLimit = n
		}
	}
}

func WithShuffle(shuffle func(teams []bracket.Registration)) MatchmakerOption {
	return func(m *Matchmaker) { m.shuffle = shuffle }
}

func WithClock(now func() time.Time) MatchmakerOption {
	return func(m *Matchmaker) { m.now = now }
}

func NewMatchmaker(db *sqlx.DB, events *store.EventStore, matches *store.MatchStore, opts ...MatchmakerOption) *Matchmaker {
	m := &Matchmaker{
		db:              db,
		events:          events,
		matches:         matches,
		feed:            noopFeed{},
		shuffle:         fisherYates,
		now:             time.Now,
		predictionLimit: defaultPredictionWorkers,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func fisherYates(teams []bracket.Registration) {
	rand.Shuffle(len(teams), func(i, j int) {
		teams[i], teams[j] = teams[j], teams[i]
	})
}

// CreateMatchesForEvent pairs everyone currently registered for the event.
func (m *Matchmaker) CreateMatchesForEvent(ctx context.Context, eventID uuid.UUID) ([]bracket.Match, error) {
	if _, err := m.events.GetEvent(ctx, eventID.String()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	registrations, err := m.events.GetRegistrations(ctx, eventID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get registrations: %w", err)
	}
	return m.CreateMatches(ctx, eventID, registrations)
}

// CreateMatches shuffles the teams, pairs them two at a time and stores the batch.
// An odd team out gets a bye. Existing matches of the event are left alone, so calling
// this twice without clearing produces a second batch.
func (m *Matchmaker) CreateMatches(ctx context.Context, eventID uuid.UUID, teams []bracket.Registration) ([]bracket.Match, error) {
	if len(teams) < 2 {
		return nil, ErrInsufficientTeams
	}

	startedAt := m.now().UTC()

	shuffled := make([]bracket.Registration, len(teams))
	copy(shuffled, teams)
	m.shuffle(shuffled)

	matches := pairTeams(eventID, shuffled, startedAt)
	m.predictAll(ctx, matches)

	// Predictions may have taken a while, do not write for a caller that gave up
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, writeFailed("begin transaction", err)
	}
	defer tx.Rollback()

	if err := m.matches.CreateMatches(ctx, tx, matches); err != nil {
		return nil, writeFailed("insert matches", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, writeFailed("commit matches", err)
	}

	slog.Info("matches created", "event_id", eventID, "matches", len(matches), "teams", len(teams))
	notifyFeed(ctx, m.feed, eventID)
	return matches, nil
}

// pairTeams walks the already shuffled teams two at a time.
func pairTeams(eventID uuid.UUID, teams []bracket.Registration, createdAt time.Time) []bracket.Match {
	matches := make([]bracket.Match, 0, (len(teams)+1)/2)
	for i := 0; i < len(teams); i += 2 {
		match := bracket.Match{
			ID:         uuid.New(),
			EventID:    eventID,
			MatchOrder: len(matches) + 1,
			Team1:      teams[i].Snapshot(),
			Status:     bracket.MatchPending,
			CreatedAt:  createdAt,
		}
		if i+1 < len(teams) {
			team2 := teams[i+1].Snapshot()
			match.Team2 = &team2
		} else {
			match.Status = bracket.MatchWaiting
		}
		matches = append(matches, match)
	}
	return matches
}

// predictAll fills in predictions in place. A failed prediction is logged and the match
// keeps going without one.
func (m *Matchmaker) predictAll(ctx context.Context, matches []bracket.Match) {
	if m.predictor == nil {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.predictionLimit)

	for i := range matches {
		match := &matches[i]
		if match.IsBye() {
			continue
		}
		g.Go(func() error {
			prediction, err := m.predictor.Predict(gctx, match.Team1, *match.Team2)
			if err == nil {
				prediction, err = predict.Normalize(prediction)
			}
			if err != nil {
				slog.Warn("prediction unavailable",
					"team1", match.Team1.Name,
					"team2", match.Team2.Name,
					"error", err)
				return nil
			}
			match.Prediction = prediction
			return nil
		})
	}

	// Workers never return an error
	_ = g.Wait()
}
