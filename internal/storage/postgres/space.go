package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/incuverse/presence/internal/catalog"
)

// SpaceRepository serves space definitions from the spaces table. It
// satisfies catalog.Store.
type SpaceRepository struct {
	db *pgxpool.Pool
}

// NewSpaceRepository creates a SpaceRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewSpaceRepository(db *pgxpool.Pool) *SpaceRepository {
	return &SpaceRepository{db: db}
}

// Space returns the definition for the given ID.
//
// Postcondition: Returns the Space, or catalog.ErrSpaceNotFound.
func (r *SpaceRepository) Space(ctx context.Context, id string) (catalog.Space, error) {
	var s catalog.Space
	err := r.db.QueryRow(ctx,
		`SELECT id, name, width, height FROM spaces WHERE id = $1`,
		id,
	).Scan(&s.ID, &s.Name, &s.Width, &s.Height)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.Space{}, catalog.ErrSpaceNotFound
		}
		return catalog.Space{}, fmt.Errorf("querying space: %w", err)
	}
	return s, nil
}

// Create inserts a new space definition. Used by seeding tools and tests.
//
// Precondition: s must pass catalog validation.
// Postcondition: The space row exists, or an error is returned.
func (r *SpaceRepository) Create(ctx context.Context, s catalog.Space) error {
	if err := s.Validate(); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO spaces (id, name, width, height) VALUES ($1, $2, $3, $4)`,
		s.ID, s.Name, s.Width, s.Height,
	)
	if err != nil {
		return fmt.Errorf("inserting space: %w", err)
	}
	return nil
}
