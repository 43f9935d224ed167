package drinks

import (
	"context"
	"io"
)

// Store persists drinks. Implementations are safe for concurrent use and
// enforce unique titles.
type Store interface {
	// List returns all drinks ordered by id.
	List(ctx context.Context) ([]Drink, error)
	Get(ctx context.Context, id int) (Drink, error)
	// Create assigns a new id and returns the stored drink.
	Create(ctx context.Context, d Drink) (Drink, error)
	// Update replaces the drink with the same id.
	Update(ctx context.Context, d Drink) (Drink, error)
	Delete(ctx context.Context, id int) error
	// Reset removes every drink and restarts id assignment.
	Reset(ctx context.Context) error
	io.Closer
}

// Seed empties the store and inserts the given drinks in order.
func Seed(ctx context.Context, s Store, seed []Drink) error {
	if err := s.Reset(ctx); err != nil {
		return err
	}
	for _, d := range seed {
		if _, err := s.Create(ctx, d); err != nil {
			return err
		}
	}
	return nil
}
