package shelf

import (
	"errors"
	"fmt"

	"bookshelf/library"
)

var (
	ErrNotAuthenticated = errors.New("sign in to manage your books")
	ErrDuplicate        = errors.New("this book is already in your library")
	ErrEditInProgress   = errors.New("another book is already being edited")
	ErrNoEdit           = errors.New("no edit in progress")
	ErrNothingSelected  = errors.New("no book selected for deletion")
	ErrBookNotFound     = errors.New("book is not in your collection")
	ErrStale            = errors.New("result discarded: the session changed while the request was in flight")
)

// ValidationError is raised locally, before any store call, and names the
// offending field so it can be shown next to it.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Message }

// RemoteError wraps a store failure. The operation's local state is left as
// it was so the user can retry.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string { return fmt.Sprintf("%s failed: %v", e.Op, e.Err) }
func (e *RemoteError) Unwrap() error { return e.Err }

// AuthError is a sign-in, sign-up or sign-out failure with a message fit
// for the login form.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string { return e.Reason }
func (e *AuthError) Unwrap() error { return e.Err }

func authError(op string, err error) error {
	var reason string
	switch {
	case errors.Is(err, library.ErrInvalidCredentials):
		reason = "Invalid email or password."
	case errors.Is(err, library.ErrEmailNotVerified):
		reason = "Please confirm your email address before signing in."
	case errors.Is(err, library.ErrEmailTaken):
		reason = "An account with this email already exists."
	default:
		reason = fmt.Sprintf("%s failed: %v", op, err)
	}
	return &AuthError{Reason: reason, Err: err}
}
