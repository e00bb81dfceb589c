package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AdamBeresnev/arena-hub/internal/bracket"
	"github.com/AdamBeresnev/arena-hub/internal/cache"
	"github.com/AdamBeresnev/arena-hub/internal/middleware"
	"github.com/AdamBeresnev/arena-hub/internal/store"
	"github.com/AdamBeresnev/arena-hub/internal/utils"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/jmoiron/sqlx"
)

type EventService struct {
	db       *sqlx.DB
	store    *store.EventStore
	cache    *cache.EventCache
	feed     MatchFeed
	validate *validator.Validate
	now      func() time.Time
}

// NewEventService wires the event store behind a cache. A nil cache reads straight through.
func NewEventService(db *sqlx.DB, store *store.EventStore, cache *cache.EventCache, feed MatchFeed) *EventService {
	if feed == nil {
		feed = noopFeed{}
	}
	return &EventService{
		db:       db,
		store:    store,
		cache:    cache,
		feed:     feed,
		validate: validator.New(),
		now:      time.Now,
	}
}

type EventInput struct {
	Name   string `json:"name" validate:"required,max=100"`
	GameID string `json:"gameId" validate:"required,max=50"`
}

type RegistrationInput struct {
	PlayerName string `json:"playerName" validate:"required,max=50"`
	TeamName   string `json:"teamName" validate:"omitempty,max=50"`
	GameID     string `json:"gameId" validate:"required,max=50"`
	Email      string `json:"email" validate:"required,email"`
	Phone      string `json:"phone" validate:"required,max=30"`
	Discord    string `json:"discord" validate:"omitempty,max=50"`
}

// CreateEvent creates an event owned by the user in the context.
func (s *EventService) CreateEvent(ctx context.Context, input EventInput) (*bracket.Event, error) {
	ownerID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("%w: user ID not found in the context", ErrForbidden)
	}

	input.Name = strings.TrimSpace(input.Name)
	input.GameID = strings.TrimSpace(input.GameID)
	if err := s.validateStruct(input); err != nil {
		return nil, err
	}

	id := uuid.New()
	event := &bracket.Event{
		ID:        id,
		OwnerID:   ownerID,
		Name:      input.Name,
		Slug:      eventSlug(input.Name, id),
		GameID:    input.GameID,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateEvent(ctx, event); err != nil {
		return nil, writeFailed("create event", err)
	}

	s.cache.InvalidateList()
	return event, nil
}

// Event names are not unique, the id prefix keeps slugs apart
func eventSlug(name string, id uuid.UUID) string {
	base := slug.Make(name)
	if base == "" {
		base = "event"
	}
	return base + "-" + id.String()[:8]
}

func (s *EventService) GetEvent(ctx context.Context, id uuid.UUID) (*bracket.Event, error) {
	if event, ok := s.cache.GetEvent(id); ok {
		return event, nil
	}

	event, err := s.store.GetEvent(ctx, id.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	s.cache.SetEvent(*event)
	return event, nil
}

func (s *EventService) GetEventBySlug(ctx context.Context, eventSlug string) (*bracket.Event, error) {
	event, err := s.store.GetEventBySlug(ctx, eventSlug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	s.cache.SetEvent(*event)
	return event, nil
}

// ResolveEvent accepts either an event id or a slug.
func (s *EventService) ResolveEvent(ctx context.Context, ref string) (*bracket.Event, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return s.GetEvent(ctx, id)
	}
	return s.GetEventBySlug(ctx, ref)
}

func (s *EventService) ListEvents(ctx context.Context) ([]bracket.Event, error) {
	if events, ok := s.cache.GetList(); ok {
		return events, nil
	}

	events, err := s.store.ListEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	events = utils.EmptyIfNil(events)
	s.cache.SetList(events)
	return events, nil
}

// DeleteEvent removes the event with its registrations and matches. Only the owner may do this.
func (s *EventService) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	if _, err := s.AuthorizeOwner(ctx, id); err != nil {
		return err
	}

	if _, err := s.store.DeleteEvent(ctx, id.String()); err != nil {
		return writeFailed("delete event", err)
	}

	s.cache.Invalidate(id)
	notifyFeed(ctx, s.feed, id)
	return nil
}

// AuthorizeOwner returns the event when the user in the context owns it, ErrForbidden otherwise.
func (s *EventService) AuthorizeOwner(ctx context.Context, id uuid.UUID) (*bracket.Event, error) {
	event, err := s.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if userID, ok := middleware.GetUserIDFromContext(ctx); !ok || userID != event.OwnerID {
		return nil, ErrForbidden
	}
	return event, nil
}

func (s *EventService) RegisterTeam(ctx context.Context, eventID uuid.UUID, input RegistrationInput) (*bracket.Registration, error) {
	input.PlayerName = strings.TrimSpace(input.PlayerName)
	input.TeamName = strings.TrimSpace(input.TeamName)
	input.GameID = strings.TrimSpace(input.GameID)
	input.Email = strings.TrimSpace(input.Email)
	input.Phone = strings.TrimSpace(input.Phone)
	input.Discord = strings.TrimSpace(input.Discord)
	if err := s.validateStruct(input); err != nil {
		return nil, err
	}

	if _, err := s.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}

	registration := &bracket.Registration{
		ID:           uuid.New(),
		EventID:      eventID,
		PlayerName:   input.PlayerName,
		TeamName:     utils.StringOrNil(input.TeamName),
		GameID:       input.GameID,
		Email:        input.Email,
		Phone:        input.Phone,
		Discord:      utils.StringOrNil(input.Discord),
		RegisteredAt: s.now().UTC(),
	}
	if err := s.store.CreateRegistration(ctx, registration); err != nil {
		return nil, writeFailed("create registration", err)
	}
	return registration, nil
}

func (s *EventService) GetRegistrations(ctx context.Context, eventID uuid.UUID) ([]bracket.Registration, error) {
	if _, err := s.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	registrations, err := s.store.GetRegistrations(ctx, eventID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get registrations: %w", err)
	}
	return utils.EmptyIfNil(registrations), nil
}

// validateStruct turns validator errors into a single ErrValidationFailed listing the bad fields.
func (s *EventService) validateStruct(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}
	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrValidationFailed, strings.Join(problems, ", "))
}
