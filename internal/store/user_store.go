package store

import (
	"context"

	users "github.com/AdamBeresnev/arena-hub/internal/user"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// UserStore keeps organizer accounts.
type UserStore struct {
	db *sqlx.DB
}

const userColumns = "id, email, username, provider, provider_id, avatar_url, created_at"

const (
	getOrganizerQuery           = "SELECT " + userColumns + " FROM users WHERE id = ?"
	getOrganizerByProviderQuery = "SELECT " + userColumns + " FROM users WHERE provider = ? AND provider_id = ?"

	// A returning login refreshes the profile and keeps its id and email
	upsertProviderOrganizerQuery = `
		INSERT INTO users (id, email, username, provider, provider_id, avatar_url)
		VALUES (:id, :email, :username, :provider, :provider_id, :avatar_url)
		ON CONFLICT (provider, provider_id) DO UPDATE SET
			username = excluded.username,
			avatar_url = excluded.avatar_url
	`
	insertOrganizerQuery = `
		INSERT INTO users (id, email, username, provider, provider_id, avatar_url)
		VALUES (:id, :email, :username, :provider, :provider_id, :avatar_url)
		ON CONFLICT (id) DO NOTHING
	`
)

func NewUserStore(db *sqlx.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) GetUser(ctx context.Context, id uuid.UUID) (*users.User, error) {
	var user users.User
	if err := s.db.GetContext(ctx, &user, getOrganizerQuery, id); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UserStore) GetUserByProvider(ctx context.Context, provider, providerID string) (*users.User, error) {
	var user users.User
	if err := s.db.GetContext(ctx, &user, getOrganizerByProviderQuery, provider, providerID); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpsertProviderUser stores an OAuth login and returns the account as it is now. Two
// concurrent first logins of the same provider account end up on one row.
func (s *UserStore) UpsertProviderUser(ctx context.Context, user *users.User) (*users.User, error) {
	if _, err := s.db.NamedExecContext(ctx, upsertProviderOrganizerQuery, user); err != nil {
		return nil, err
	}
	return s.GetUserByProvider(ctx, *user.Provider, *user.ProviderID)
}

// InsertUser adds the account unless its id is taken. It reports whether a row was written.
func (s *UserStore) InsertUser(ctx context.Context, user *users.User) (bool, error) {
	res, err := s.db.NamedExecContext(ctx, insertOrganizerQuery, user)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
