package store

import (
	"context"
	"time"

	"github.com/AdamBeresnev/arena-hub/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type MatchStore struct {
	db *sqlx.DB
}

const (
	matchColumns = `id, event_id, match_order, team1, team2, status, winner, prediction, stats, created_at, completed_at`

	createMatchesQuery = `INSERT INTO matches (id, event_id, match_order, team1, team2, status, prediction, created_at)
		VALUES (:id, :event_id, :match_order, :team1, :team2, :status, :prediction, :created_at)`

	// Newest batch first, then in the order the batch was paired
	getMatchesQuery = `SELECT ` + matchColumns + ` FROM matches
		WHERE event_id = ?
		ORDER BY created_at DESC, match_order ASC`

	getMatchQuery = `SELECT ` + matchColumns + ` FROM matches WHERE id = ?`

	// The status guard keeps a completed match from being overwritten by a late writer
	completeMatchQuery = `UPDATE matches SET status = 'completed', winner = ?, completed_at = ?
		WHERE id = ? AND status <> 'completed'`

	updateStatusQuery = `UPDATE matches SET status = ? WHERE id = ? AND status <> 'completed'`

	updateStatsQuery = `UPDATE matches SET stats = ? WHERE id = ?`
)

func NewMatchStore(db *sqlx.DB) *MatchStore {
	return &MatchStore{db: db}
}

func (s *MatchStore) CreateMatches(ctx context.Context, tx *sqlx.Tx, matches []bracket.Match) error {
	if len(matches) == 0 {
		return nil
	}
	_, err := tx.NamedExecContext(ctx, createMatchesQuery, matches)
	return err
}

func (s *MatchStore) GetMatches(ctx context.Context, eventID string) ([]bracket.Match, error) {
	matches := []bracket.Match{}
	err := s.db.SelectContext(ctx, &matches, getMatchesQuery, eventID)
	return matches, err
}

func (s *MatchStore) GetMatch(ctx context.Context, id string) (*bracket.Match, error) {
	var match bracket.Match
	err := s.db.GetContext(ctx, &match, getMatchQuery, id)
	if err != nil {
		return nil, err
	}
	return &match, nil
}

// CompleteMatch returns the number of rows touched, zero when the match is gone or already completed.
func (s *MatchStore) CompleteMatch(ctx context.Context, id string, winner bracket.Side, completedAt time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, completeMatchQuery, winner, completedAt, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *MatchStore) UpdateStatus(ctx context.Context, id string, status bracket.MatchStatus) (int64, error) {
	res, err := s.db.ExecContext(ctx, updateStatusQuery, status, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *MatchStore) UpdateStats(ctx context.Context, id string, stats bracket.MatchStats) (int64, error) {
	res, err := s.db.ExecContext(ctx, updateStatsQuery, stats, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *MatchStore) DeleteMatch(ctx context.Context, eventID string, id string) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM matches WHERE event_id = ? AND id = ?", eventID, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *MatchStore) GetMatchIDs(ctx context.Context, eventID string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.db.SelectContext(ctx, &ids, "SELECT id FROM matches WHERE event_id = ? ORDER BY created_at ASC, match_order ASC", eventID)
	return ids, err
}

// DeleteMatchesTx deletes one batch of matches inside the caller's transaction.
func (s *MatchStore) DeleteMatchesTx(ctx context.Context, tx *sqlx.Tx, eventID string, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	idStrings := make([]string, 0, len(ids))
	for _, id := range ids {
		idStrings = append(idStrings, id.String())
	}

	query, args, err := sqlx.In("DELETE FROM matches WHERE event_id = ? AND id IN (?)", eventID, idStrings)
	if err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
