package bracket

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type MatchStatus string

const (
	// A bye: only one team, nobody to play against
	MatchWaiting    MatchStatus = "waiting"
	MatchPending    MatchStatus = "pending"
	MatchReady      MatchStatus = "ready"
	MatchInProgress MatchStatus = "in_progress"
	MatchCompleted  MatchStatus = "completed"
)

func ParseStatus(s string) (MatchStatus, error) {
	switch st := MatchStatus(s); st {
	case MatchWaiting, MatchPending, MatchReady, MatchInProgress, MatchCompleted:
		return st, nil
	}
	return "", fmt.Errorf("unknown match status %q", s)
}

type Side string

const (
	Team1 Side = "team1"
	Team2 Side = "team2"
)

func ParseSide(s string) (Side, error) {
	switch side := Side(s); side {
	case Team1, Team2:
		return side, nil
	}
	return "", fmt.Errorf("unknown side %q", s)
}

// TeamSnapshot is a copy of a registration taken when the match is created.
// It is not a live join, later edits to the registration do not show up here.
type TeamSnapshot struct {
	RegistrationID uuid.UUID `json:"registrationId"`
	Name           string    `json:"name"`
	GameID         string    `json:"gameId"`
}

type Prediction struct {
	Confidence      float64 `json:"confidence"`
	SuggestedWinner Side    `json:"suggestedWinner"`
	Reason          string  `json:"reason"`
}

type MatchStats struct {
	Score1          *int     `json:"score1,omitempty"`
	Score2          *int     `json:"score2,omitempty"`
	DurationSeconds *int     `json:"durationSeconds,omitempty"`
	Highlights      []string `json:"highlights,omitempty"`
}

type Match struct {
	ID      uuid.UUID `db:"id" json:"id"`
	EventID uuid.UUID `db:"event_id" json:"eventId"`

	// Position inside the batch the match was created in
	MatchOrder int `db:"match_order" json:"matchOrder"`

	Team1 TeamSnapshot  `db:"team1" json:"team1"`
	Team2 *TeamSnapshot `db:"team2" json:"team2"`

	Status MatchStatus `db:"status" json:"status"`
	Winner *Side       `db:"winner" json:"winner,omitempty"`

	Prediction *Prediction `db:"prediction" json:"prediction,omitempty"`
	Stats      *MatchStats `db:"stats" json:"stats,omitempty"`

	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	CompletedAt *time.Time `db:"completed_at" json:"completedAt,omitempty"`
}

func (m *Match) IsBye() bool {
	return m.Team2 == nil
}

func (m *Match) IsWinner(side Side) bool {
	return m.Status == MatchCompleted && m.Winner != nil && *m.Winner == side
}

func (m *Match) IsLoser(side Side) bool {
	return m.Status == MatchCompleted && m.Winner != nil && *m.Winner != side
}

// Team returns the snapshot on the given side, nil for the empty side of a bye.
func (m *Match) Team(side Side) *TeamSnapshot {
	switch side {
	case Team1:
		return &m.Team1
	case Team2:
		return m.Team2
	}
	return nil
}

type Standing struct {
	RegistrationID uuid.UUID `json:"registrationId"`
	Name           string    `json:"name"`
	Played         int       `json:"played"`
	Wins           int       `json:"wins"`
	Losses         int       `json:"losses"`
	Byes           int       `json:"byes"`
}

// The embedded values are stored as JSON text columns

func (t TeamSnapshot) Value() (driver.Value, error) {
	return marshalValue(t)
}

func (t *TeamSnapshot) Scan(src any) error {
	return scanJSON(src, t)
}

func (p Prediction) Value() (driver.Value, error) {
	return marshalValue(p)
}

func (p *Prediction) Scan(src any) error {
	return scanJSON(src, p)
}

func (s MatchStats) Value() (driver.Value, error) {
	return marshalValue(s)
}

func (s *MatchStats) Scan(src any) error {
	return scanJSON(src, s)
}

func marshalValue(v any) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func scanJSON(src any, dest any) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	case nil:
		return nil
	}
	return fmt.Errorf("cannot scan %T into %T", src, dest)
}
