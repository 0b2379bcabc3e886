package library

import "time"

// Book is a single record of a user's personal collection.
// Thumbnail holds either a remote URL or an inlined data URL.
type Book struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Authors   string    `json:"authors"`
	Thumbnail string    `json:"thumbnail,omitempty"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Fields returns the editable subset of the book.
func (b Book) Fields() BookFields {
	return BookFields{Title: b.Title, Authors: b.Authors, Thumbnail: b.Thumbnail}
}

// BookFields is what a client sends on insert and update. Updates always
// carry the full set.
type BookFields struct {
	Title     string `json:"title" validate:"required"`
	Authors   string `json:"authors"`
	Thumbnail string `json:"thumbnail,omitempty" validate:"omitempty,thumbnail"`
}

// User is an authenticated identity.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Verified     bool      `json:"verified"`
	PasswordHash string    `json:"-"` // Don't serialize password hash
	CreatedAt    time.Time `json:"created_at"`
}

// Session binds a bearer token to a user until ExpiresAt.
type Session struct {
	Token     string    `json:"token"`
	User      User      `json:"user"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is no longer usable at now.
func (s Session) Expired(now time.Time) bool { return !now.Before(s.ExpiresAt) }

// Profile is the free-form personal data kept next to an account.
type Profile struct {
	UserID   string `json:"user_id"`
	FullName string `json:"full_name"`
	Address  string `json:"address"`
}

// AuthEventKind enumerates session notifications.
type AuthEventKind int

const (
	SignedIn AuthEventKind = iota + 1
	SignedOut
	TokenRefreshed
	SessionExpired
)

func (k AuthEventKind) String() string {
	switch k {
	case SignedIn:
		return "signed_in"
	case SignedOut:
		return "signed_out"
	case TokenRefreshed:
		return "token_refreshed"
	case SessionExpired:
		return "session_expired"
	default:
		return "unknown"
	}
}

// AuthEvent is delivered to subscribers on every session transition.
// Session is nil for SignedOut and SessionExpired.
type AuthEvent struct {
	Kind    AuthEventKind
	Session *Session
}
