package bracket

import (
	"time"

	"github.com/google/uuid"
)

type Event struct {
	ID        uuid.UUID `db:"id" json:"id"`
	OwnerID   uuid.UUID `db:"owner_id" json:"ownerId"`
	Name      string    `db:"name" json:"name"`
	Slug      string    `db:"slug" json:"slug"`
	GameID    string    `db:"game_id" json:"gameId"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

type Registration struct {
	ID           uuid.UUID `db:"id" json:"id"`
	EventID      uuid.UUID `db:"event_id" json:"eventId"`
	PlayerName   string    `db:"player_name" json:"playerName"`
	TeamName     *string   `db:"team_name" json:"teamName,omitempty"`
	GameID       string    `db:"game_id" json:"gameId"`
	Email        string    `db:"email" json:"email"`
	Phone        string    `db:"phone" json:"phone"`
	Discord      *string   `db:"discord" json:"discord,omitempty"`
	RegisteredAt time.Time `db:"registered_at" json:"registeredAt"`
}

// DisplayName prefers the team name and falls back to the player name.
func (r Registration) DisplayName() string {
	if r.TeamName != nil && *r.TeamName != "" {
		return *r.TeamName
	}
	return r.PlayerName
}

// Snapshot copies the display fields that get embedded into a match.
func (r Registration) Snapshot() TeamSnapshot {
	return TeamSnapshot{
		RegistrationID: r.ID,
		Name:           r.DisplayName(),
		GameID:         r.GameID,
	}
}
