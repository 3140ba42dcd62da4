package store

import (
	"context"
	"errors"

	"github.com/emrgen/identity/internal/model"
)

var (
	// ErrContactNotFound is returned when no live contact has the requested id.
	ErrContactNotFound = errors.New("contact not found")
	// ErrNotPrimary is returned when a merge targets a row that is not a live primary.
	ErrNotPrimary = errors.New("merge target is not a live primary contact")
	// ErrEmptyMatch is returned when a match is requested without any identifying value.
	ErrEmptyMatch = errors.New("match requires an email or a phone number")
)

type Store interface {
	ContactStore
	Transaction(ctx context.Context, f func(tx Store) error) error
	Migrate() error
}

// ContactStore reads return live rows only, ordered by creation time then id.
type ContactStore interface {
	// FindMatches returns every contact whose email or phone number equals a provided value.
	FindMatches(ctx context.Context, email, phone *string) ([]*model.Contact, error)
	// GetContact retrieves a contact by ID.
	GetContact(ctx context.Context, id uint) (*model.Contact, error)
	// ListCluster returns the primary and every secondary linked to it.
	ListCluster(ctx context.Context, primaryID uint) ([]*model.Contact, error)
	// CreateContact inserts a contact, assigning its id and timestamps.
	CreateContact(ctx context.Context, contact *model.Contact) error
	// MergeCluster demotes loser to a secondary of winner and moves loser's secondaries to winner.
	MergeCluster(ctx context.Context, loserID, winnerID uint) error
	// RelinkContact points a secondary directly at the given primary.
	RelinkContact(ctx context.Context, id, primaryID uint) error
	// ListLinkageViolations returns live rows whose linkage breaks the flat cluster shape.
	ListLinkageViolations(ctx context.Context) ([]*model.Contact, error)
}
