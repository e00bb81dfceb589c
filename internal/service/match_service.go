package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AdamBeresnev/arena-hub/internal/bracket"
	"github.com/AdamBeresnev/arena-hub/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const defaultClearBatchSize = 100

// MatchService is the ledger of an event's matches and their lifecycle.
type MatchService struct {
	db    *sqlx.DB
	store *store.MatchStore
	feed  MatchFeed

	now            func() time.Time
	clearBatchSize int
}

func NewMatchService(db *sqlx.DB, store *store.MatchStore, feed MatchFeed, clearBatchSize int) *MatchService {
	if feed == nil {
		feed = noopFeed{}
	}
	if clearBatchSize <= 0 {
		clearBatchSize = defaultClearBatchSize
	}
	return &MatchService{
		db:             db,
		store:          store,
		feed:           feed,
		now:            time.Now,
		clearBatchSize: clearBatchSize,
	}
}

// ClearResult counts what a bulk clear managed to delete.
type ClearResult struct {
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

func (s *MatchService) GetMatches(ctx context.Context, eventID uuid.UUID) ([]bracket.Match, error) {
	return s.store.GetMatches(ctx, eventID.String())
}

func (s *MatchService) GetMatch(ctx context.Context, matchID uuid.UUID) (*bracket.Match, error) {
	match, err := s.store.GetMatch(ctx, matchID.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	return match, nil
}

// DeclareWinner completes the match. Winner and completion time are written together
// and a completed match is never written again.
func (s *MatchService) DeclareWinner(ctx context.Context, matchID uuid.UUID, winner bracket.Side) (*bracket.Match, error) {
	match, err := s.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.Status == bracket.MatchCompleted {
		return nil, ErrMatchAlreadyCompleted
	}
	if _, err := bracket.ParseSide(string(winner)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidWinner, err)
	}
	// The empty side of a bye cannot win
	if match.Team(winner) == nil {
		return nil, ErrInvalidWinner
	}

	completedAt := s.now().UTC()
	affected, err := s.store.CompleteMatch(ctx, matchID.String(), winner, completedAt)
	if err != nil {
		return nil, writeFailed("complete match", err)
	}
	if affected == 0 {
		// Someone else got there between the read and the write
		return nil, s.missingOrCompleted(ctx, matchID)
	}

	notifyFeed(ctx, s.feed, match.EventID)

	match.Status = bracket.MatchCompleted
	match.Winner = &winner
	match.CompletedAt = &completedAt
	return match, nil
}

// UpdateStatus moves a two-team match between pending, ready and in progress.
// Completion only happens through DeclareWinner.
func (s *MatchService) UpdateStatus(ctx context.Context, matchID uuid.UUID, status bracket.MatchStatus) (*bracket.Match, error) {
	switch status {
	case bracket.MatchPending, bracket.MatchReady, bracket.MatchInProgress:
	default:
		return nil, fmt.Errorf("%w: cannot set status %q directly", ErrInvalidStatusTransition, status)
	}

	match, err := s.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.Status == bracket.MatchCompleted {
		return nil, ErrMatchAlreadyCompleted
	}
	if match.IsBye() {
		return nil, fmt.Errorf("%w: a bye has no opponent to play", ErrInvalidStatusTransition)
	}
	if match.Status == status {
		return match, nil
	}

	affected, err := s.store.UpdateStatus(ctx, matchID.String(), status)
	if err != nil {
		return nil, writeFailed("update match status", err)
	}
	if affected == 0 {
		return nil, s.missingOrCompleted(ctx, matchID)
	}

	notifyFeed(ctx, s.feed, match.EventID)
	match.Status = status
	return match, nil
}

// RecordStats replaces the stats of a match. Stats can be added at any point of its life.
func (s *MatchService) RecordStats(ctx context.Context, matchID uuid.UUID, stats bracket.MatchStats) (*bracket.Match, error) {
	if stats.DurationSeconds != nil && *stats.DurationSeconds < 0 {
		return nil, fmt.Errorf("%w: duration cannot be negative", ErrValidationFailed)
	}

	match, err := s.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}

	affected, err := s.store.UpdateStats(ctx, matchID.String(), stats)
	if err != nil {
		return nil, writeFailed("update match stats", err)
	}
	if affected == 0 {
		return nil, ErrMatchNotFound
	}

	notifyFeed(ctx, s.feed, match.EventID)
	match.Stats = &stats
	return match, nil
}

// DeleteMatch removes one match. Deleting a match that is already gone is not an error.
func (s *MatchService) DeleteMatch(ctx context.Context, eventID, matchID uuid.UUID) error {
	affected, err := s.store.DeleteMatch(ctx, eventID.String(), matchID.String())
	if err != nil {
		return writeFailed("delete match", err)
	}
	if affected > 0 {
		notifyFeed(ctx, s.feed, eventID)
	}
	return nil
}

// ClearAllMatches deletes every match of the event, one transaction per batch. Batches that
// fail are counted and reported through a *ClearError while the rest keep going.
func (s *MatchService) ClearAllMatches(ctx context.Context, eventID uuid.UUID) (ClearResult, error) {
	var result ClearResult

	ids, err := s.store.GetMatchIDs(ctx, eventID.String())
	if err != nil {
		return result, fmt.Errorf("failed to list matches: %w", err)
	}

	var errs []error
	for start := 0; start < len(ids); start += s.clearBatchSize {
		end := min(start+s.clearBatchSize, len(ids))
		batch := ids[start:end]

		deleted, err := s.deleteBatch(ctx, eventID, batch)
		if err != nil {
			slog.Error("failed to clear match batch", "event_id", eventID, "batch_size", len(batch), "error", err)
			result.Failed += len(batch)
			errs = append(errs, err)
			continue
		}
		result.Deleted += int(deleted)
	}

	if result.Deleted > 0 {
		notifyFeed(ctx, s.feed, eventID)
	}
	if result.Failed > 0 {
		return result, &ClearError{Deleted: result.Deleted, Failed: result.Failed, Err: errors.Join(errs...)}
	}
	return result, nil
}

func (s *MatchService) deleteBatch(ctx context.Context, eventID uuid.UUID, ids []uuid.UUID) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	deleted, err := s.store.DeleteMatchesTx(ctx, tx, eventID.String(), ids)
	if err != nil {
		return 0, err
	}
	return deleted, tx.Commit()
}

// GetStandings tallies wins, losses and byes of every team that has a match in the event.
func (s *MatchService) GetStandings(ctx context.Context, eventID uuid.UUID) ([]bracket.Standing, error) {
	matches, err := s.store.GetMatches(ctx, eventID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get matches: %w", err)
	}
	return computeStandings(matches), nil
}

func (s *MatchService) missingOrCompleted(ctx context.Context, matchID uuid.UUID) error {
	if _, err := s.GetMatch(ctx, matchID); err != nil {
		return err
	}
	return ErrMatchAlreadyCompleted
}
