package repository

import (
	"context"
	"errors"

	"pantrypal-api/internal/model"
)

var (
	// ErrItemNotFound is returned when an item does not exist or belongs
	// to another user.
	ErrItemNotFound = errors.New("item not found")

	// ErrUnsupportedQuery is returned for queries a backend cannot run.
	ErrUnsupportedQuery = errors.New("unsupported item query")

	// ErrUserNotFound is returned when no account matches.
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailTaken is returned when registering an email already in use.
	ErrEmailTaken = errors.New("email already in use")
)

// ItemRepository defines pantry item data access methods.
// Every operation is scoped to the owning user.
type ItemRepository interface {
	// QueryItems returns the user's documents in query order. Documents
	// without a creation time sort last.
	QueryItems(ctx context.Context, q model.ItemQuery) ([]model.Document, error)

	// CreateItem stores a new document and returns its id.
	CreateItem(ctx context.Context, userID string, fields model.Fields) (string, error)

	// UpdateItem merges top-level fields into an existing document.
	UpdateItem(ctx context.Context, userID, id string, fields model.Fields) error

	// DeleteItem removes a document. Deleting a missing id is not an error.
	DeleteItem(ctx context.Context, userID, id string) error

	// GetStats returns statistics about the item store.
	GetStats(ctx context.Context) (map[string]interface{}, error)

	// Close closes the repository connection.
	Close() error
}

// UserRepository defines account data access methods.
type UserRepository interface {
	// CreateUser stores a new account. Returns ErrEmailTaken on a duplicate email.
	CreateUser(ctx context.Context, u *model.User) error

	// GetUserByEmail finds an account by email, ignoring case.
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)

	// GetUserByID finds an account by id.
	GetUserByID(ctx context.Context, id string) (*model.User, error)

	// UpdatePassword replaces the stored password hash.
	UpdatePassword(ctx context.Context, id, passwordHash string) error

	// CountUsers returns the number of accounts.
	CountUsers(ctx context.Context) (int64, error)
}

// checkQuery validates the parts of a query every backend relies on.
func checkQuery(q model.ItemQuery) error {
	if q.Collection != "" && q.Collection != model.ItemsCollection {
		return ErrUnsupportedQuery
	}
	if q.OrderBy != "" && q.OrderBy != "createdAt" {
		return ErrUnsupportedQuery
	}
	if q.UserID == "" {
		return ErrUnsupportedQuery
	}
	return nil
}

// ownedFields copies fields and stamps the owner so stored documents always
// carry their userId.
func ownedFields(userID string, fields model.Fields) model.Fields {
	out := make(model.Fields, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["userId"] = userID
	return out
}

// withoutOwner drops userId from an update; ownership never changes.
func withoutOwner(fields model.Fields) model.Fields {
	if _, ok := fields["userId"]; !ok {
		return fields
	}
	out := make(model.Fields, len(fields))
	for k, v := range fields {
		if k != "userId" {
			out[k] = v
		}
	}
	return out
}
