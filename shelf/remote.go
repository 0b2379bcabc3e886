package shelf

import (
	"context"

	"bookshelf/library"
)

// Auth is the authentication side of the remote store.
type Auth interface {
	SignIn(ctx context.Context, email, password string) (*library.Session, error)
	// SignUp returns a nil session when the account still needs email
	// verification.
	SignUp(ctx context.Context, email, password string) (*library.Session, error)
	SignOut(ctx context.Context) error
	Subscribe(fn func(library.AuthEvent)) (unsubscribe func())
}

// Store is identity-scoped CRUD over the books collection.
type Store interface {
	ListBooks(ctx context.Context, ownerID string) ([]library.Book, error)
	HasDuplicate(ctx context.Context, ownerID, title, authors string) (bool, error)
	InsertBook(ctx context.Context, ownerID string, f library.BookFields) (library.Book, error)
	UpdateBook(ctx context.Context, ownerID, id string, f library.BookFields) (library.Book, error)
	DeleteBook(ctx context.Context, ownerID, id string) error
}

// Remote is everything the shelf needs from the backend. *library.Manager
// satisfies it.
type Remote interface {
	Auth
	Store
}

var _ Remote = (*library.Manager)(nil)
