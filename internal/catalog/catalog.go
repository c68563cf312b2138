// Package catalog defines spaces, the named virtual areas users can
// occupy, and the stores that serve their declared dimensions.
package catalog

import (
	"context"
	"errors"
	"fmt"
)

// Space is a named virtual area with a fixed width and height.
type Space struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

// Validate checks the space's invariants.
func (s Space) Validate() error {
	var errs []error
	if s.ID == "" {
		errs = append(errs, errors.New("space id must not be empty"))
	}
	if s.Width < 1 {
		errs = append(errs, fmt.Errorf("space %q: width must be >= 1, got %d", s.ID, s.Width))
	}
	if s.Height < 1 {
		errs = append(errs, fmt.Errorf("space %q: height must be >= 1, got %d", s.ID, s.Height))
	}
	return errors.Join(errs...)
}

// Contains reports whether (x, y) lies within the space bounds.
func (s Space) Contains(x, y int) bool {
	return x >= 0 && x < s.Width && y >= 0 && y < s.Height
}

// Store serves space definitions by ID.
type Store interface {
	// Space returns the definition for the given ID, or ErrSpaceNotFound.
	Space(ctx context.Context, id string) (Space, error)
}

// ErrSpaceNotFound is returned when a space lookup yields no results.
var ErrSpaceNotFound = errors.New("space not found")
