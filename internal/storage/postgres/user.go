package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/incuverse/presence/internal/auth"
)

// User type tags carried through presence entries.
const (
	UserTypeFounder  = "FOUNDER"
	UserTypeMentor   = "MENTOR"
	UserTypeInvestor = "INVESTOR"
	UserTypeAdmin    = "ADMIN"
)

// ValidUserType reports whether t is a recognised user type tag.
func ValidUserType(t string) bool {
	switch t {
	case UserTypeFounder, UserTypeMentor, UserTypeInvestor, UserTypeAdmin:
		return true
	}
	return false
}

// ErrInvalidUserType is returned when an unrecognised user type is supplied.
var ErrInvalidUserType = errors.New("invalid user type")

// User represents a user row in the database.
type User struct {
	ID         string
	Username   string
	UserType   string
	IsVerified bool
	LastActive time.Time
	CreatedAt  time.Time
}

// UserRepository provides user lookups for the connection gate. It
// satisfies auth.UserStore.
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository creates a UserRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// ResolveUser returns the identity for the given user ID.
//
// Postcondition: Returns the Identity, or auth.ErrUserNotFound.
func (r *UserRepository) ResolveUser(ctx context.Context, userID string) (auth.Identity, error) {
	var id auth.Identity
	err := r.db.QueryRow(ctx,
		`SELECT id, username, user_type FROM users WHERE id = $1`,
		userID,
	).Scan(&id.ID, &id.Username, &id.UserType)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return auth.Identity{}, auth.ErrUserNotFound
		}
		return auth.Identity{}, fmt.Errorf("querying user: %w", err)
	}
	return id, nil
}

// TouchLastActive sets the user's last_active timestamp to now.
//
// Postcondition: Returns auth.ErrUserNotFound if no row was updated.
func (r *UserRepository) TouchLastActive(ctx context.Context, userID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET last_active = NOW() WHERE id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("updating last active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrUserNotFound
	}
	return nil
}

// Create inserts a new user. Used by seeding tools and tests; account
// registration itself lives in the identity service.
//
// Precondition: id and username must be non-empty; userType must be valid.
// Postcondition: Returns the created User with timestamps set.
func (r *UserRepository) Create(ctx context.Context, id, username, userType string) (User, error) {
	if !ValidUserType(userType) {
		return User{}, ErrInvalidUserType
	}

	var u User
	err := r.db.QueryRow(ctx,
		`INSERT INTO users (id, username, user_type)
		 VALUES ($1, $2, $3)
		 RETURNING id, username, user_type, is_verified, last_active, created_at`,
		id, username, userType,
	).Scan(&u.ID, &u.Username, &u.UserType, &u.IsVerified, &u.LastActive, &u.CreatedAt)
	if err != nil {
		return User{}, fmt.Errorf("inserting user: %w", err)
	}
	return u, nil
}

// GetByID retrieves a full user row.
//
// Postcondition: Returns the User or auth.ErrUserNotFound.
func (r *UserRepository) GetByID(ctx context.Context, id string) (User, error) {
	var u User
	err := r.db.QueryRow(ctx,
		`SELECT id, username, user_type, is_verified, last_active, created_at
		 FROM users WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Username, &u.UserType, &u.IsVerified, &u.LastActive, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, auth.ErrUserNotFound
		}
		return User{}, fmt.Errorf("querying user: %w", err)
	}
	return u, nil
}
