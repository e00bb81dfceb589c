package store

import (
	"context"

	"github.com/AdamBeresnev/arena-hub/internal/bracket"
	"github.com/jmoiron/sqlx"
)

type EventStore struct {
	db *sqlx.DB
}

const (
	createEventQuery = `INSERT INTO events (id, owner_id, name, slug, game_id, created_at)
		VALUES (:id, :owner_id, :name, :slug, :game_id, :created_at)`
	createRegistrationQuery = `INSERT INTO registrations (id, event_id, player_name, team_name, game_id, email, phone, discord, registered_at)
		VALUES (:id, :event_id, :player_name, :team_name, :game_id, :email, :phone, :discord, :registered_at)`
)

func NewEventStore(db *sqlx.DB) *EventStore {
	return &EventStore{db: db}
}

func (s *EventStore) CreateEvent(ctx context.Context, event *bracket.Event) error {
	_, err := s.db.NamedExecContext(ctx, createEventQuery, event)
	return err
}

func (s *EventStore) GetEvent(ctx context.Context, id string) (*bracket.Event, error) {
	var event bracket.Event
	err := s.db.GetContext(ctx, &event, "SELECT * FROM events WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (s *EventStore) GetEventBySlug(ctx context.Context, slug string) (*bracket.Event, error) {
	var event bracket.Event
	err := s.db.GetContext(ctx, &event, "SELECT * FROM events WHERE slug = ?", slug)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (s *EventStore) ListEvents(ctx context.Context) ([]bracket.Event, error) {
	var events []bracket.Event
	err := s.db.SelectContext(ctx, &events, "SELECT * FROM events ORDER BY created_at DESC")
	return events, err
}

// DeleteEvent removes the event, registrations and matches go with it through the cascade.
func (s *EventStore) DeleteEvent(ctx context.Context, id string) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM events WHERE id = ?", id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *EventStore) CreateRegistration(ctx context.Context, registration *bracket.Registration) error {
	_, err := s.db.NamedExecContext(ctx, createRegistrationQuery, registration)
	return err
}

// CreateRegistrationsTx inserts a whole import inside the caller's transaction.
func (s *EventStore) CreateRegistrationsTx(ctx context.Context, tx *sqlx.Tx, registrations []bracket.Registration) error {
	if len(registrations) == 0 {
		return nil
	}
	_, err := tx.NamedExecContext(ctx, createRegistrationQuery, registrations)
	return err
}

func (s *EventStore) GetRegistrations(ctx context.Context, eventID string) ([]bracket.Registration, error) {
	var registrations []bracket.Registration
	err := s.db.SelectContext(ctx, &registrations, "SELECT * FROM registrations WHERE event_id = ? ORDER BY registered_at ASC", eventID)
	return registrations, err
}
