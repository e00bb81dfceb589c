package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/AdamBeresnev/arena-hub/internal/middleware"
	"github.com/AdamBeresnev/arena-hub/internal/store"
	users "github.com/AdamBeresnev/arena-hub/internal/user"
	"github.com/AdamBeresnev/arena-hub/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/markbates/goth"
)

type UserService struct {
	db    *sqlx.DB
	store *store.UserStore
}

func NewUserService(db *sqlx.DB, store *store.UserStore) *UserService {
	return &UserService{db: db, store: store}
}

// FindOrCreateUserByProvider returns the organizer behind an OAuth login, creating it on first login.
// Name and avatar follow whatever the provider reports now.
func (s *UserService) FindOrCreateUserByProvider(ctx context.Context, gothUser goth.User) (*users.User, error) {
	username := gothUser.NickName
	if username == "" {
		username = gothUser.Name
	}

	user, err := s.store.UpsertProviderUser(ctx, &users.User{
		ID:         uuid.New(),
		Email:      gothUser.Email,
		Username:   username,
		Provider:   &gothUser.Provider,
		ProviderID: &gothUser.UserID,
		AvatarURL:  utils.StringOrNil(gothUser.AvatarURL),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store provider user: %w", err)
	}
	return user, nil
}

// EnsureGuestUser returns the shared guest organizer. The migration seeds it but an older
// database may lack the row.
func (s *UserService) EnsureGuestUser(ctx context.Context) (*users.User, error) {
	guestID := uuid.MustParse(middleware.SuperUserID)
	user, err := s.store.GetUser(ctx, guestID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	_, err = s.store.InsertUser(ctx, &users.User{
		ID:       guestID,
		Email:    "guest@arena-hub.app",
		Username: "Guest Organizer",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create guest user: %w", err)
	}
	return s.store.GetUser(ctx, guestID)
}
