package library

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNoSession      = errors.New("not signed in")
	ErrSessionExpired = errors.New("session expired")
	ErrForbidden      = errors.New("not permitted for the signed-in user")
)

// Options tunes the account side of the Manager. Zero values fall back to
// the defaults documented on each field.
type Options struct {
	// SessionTTL is how long a session stays valid after sign-in or refresh.
	// Defaults to 24h.
	SessionTTL time.Duration
	// RequireVerification makes sign-up withhold a session until the email
	// address is confirmed through VerifyEmail.
	RequireVerification bool
	// VerifyRedirectURL and ResetRedirectURL receive a "token" query
	// parameter and are mailed to the user.
	VerifyRedirectURL string
	ResetRedirectURL  string
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
	// Now defaults to time.Now.
	Now func() time.Time
}

func (o *Options) setDefaults() {
	if o.SessionTTL <= 0 {
		o.SessionTTL = 24 * time.Hour
	}
	if o.BcryptCost == 0 {
		o.BcryptCost = bcrypt.DefaultCost
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Manager is the client of the book store: it holds the current session,
// fans out session notifications, and scopes every book operation to the
// signed-in identity.
type Manager struct {
	db     *Database
	mailer Mailer
	log    *zap.Logger
	opts   Options

	mu      sync.Mutex
	session *Session
	nextSub int
	subs    map[int]func(AuthEvent)
}

// NewManager opens (or creates) the SQLite database at dbPath.
func NewManager(dbPath string, mailer Mailer, log *zap.Logger, opts Options) (*Manager, error) {
	db, err := NewDatabase(dbPath)
	if err != nil {
		return nil, err
	}
	opts.setDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	if mailer == nil {
		mailer = LogMailer{Log: log}
	}
	return &Manager{
		db:     db,
		mailer: mailer,
		log:    log,
		opts:   opts,
		subs:   make(map[int]func(AuthEvent)),
	}, nil
}

// Close closes the underlying database.
func (m *Manager) Close() error { return m.db.Close() }

// ------------------ Notifications ------------------

// Subscribe registers fn for every session transition. The returned func
// removes the subscription.
func (m *Manager) Subscribe(fn func(AuthEvent)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// emit must be called without m.mu held; subscribers call back into the
// Manager.
func (m *Manager) emit(ev AuthEvent) {
	m.mu.Lock()
	fns := make([]func(AuthEvent), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	m.log.Debug("auth event", zap.Stringer("kind", ev.Kind))
	for _, fn := range fns {
		fn(ev)
	}
}

// Current returns a copy of the active session, or nil.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	s := *m.session
	return &s
}

func (m *Manager) setSession(s *Session) {
	m.mu.Lock()
	m.session = s
	m.mu.Unlock()
}

// authorize checks that the active session belongs to ownerID.
func (m *Manager) authorize(ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.session == nil:
		return ErrNoSession
	case m.session.Expired(m.opts.Now()):
		return ErrSessionExpired
	case m.session.User.ID != ownerID:
		return ErrForbidden
	}
	return nil
}

// ------------------ Book helpers ------------------

// ListBooks returns every book of ownerID, newest first.
func (m *Manager) ListBooks(ctx context.Context, ownerID string) ([]Book, error) {
	if err := m.authorize(ownerID); err != nil {
		return nil, err
	}
	return m.db.ListBooks(ctx, ownerID)
}

// HasDuplicate reports whether ownerID already owns a book with the same
// normalized title and authors.
func (m *Manager) HasDuplicate(ctx context.Context, ownerID, title, authors string) (bool, error) {
	if err := m.authorize(ownerID); err != nil {
		return false, err
	}
	return m.db.HasDuplicate(ctx, ownerID, title, authors)
}

// InsertBook stores a new book and returns it with its assigned ID and
// creation time.
func (m *Manager) InsertBook(ctx context.Context, ownerID string, f BookFields) (Book, error) {
	if err := m.authorize(ownerID); err != nil {
		return Book{}, err
	}
	b := Book{
		ID:        uuid.NewString(),
		Title:     f.Title,
		Authors:   f.Authors,
		Thumbnail: f.Thumbnail,
		OwnerID:   ownerID,
		CreatedAt: m.opts.Now().UTC(),
	}
	if err := m.db.InsertBook(ctx, b); err != nil {
		return Book{}, fmt.Errorf("insert book: %w", err)
	}
	m.log.Debug("book inserted", zap.String("id", b.ID), zap.String("owner", ownerID))
	return b, nil
}

func (m *Manager) UpdateBook(ctx context.Context, ownerID, id string, f BookFields) (Book, error) {
	if err := m.authorize(ownerID); err != nil {
		return Book{}, err
	}
	return m.db.UpdateBook(ctx, ownerID, id, f)
}

func (m *Manager) DeleteBook(ctx context.Context, ownerID, id string) error {
	if err := m.authorize(ownerID); err != nil {
		return err
	}
	return m.db.DeleteBook(ctx, ownerID, id)
}

// ------------------ Profile helpers ------------------

// Profile returns the signed-in user's profile, creating an empty one on
// first access.
func (m *Manager) Profile(ctx context.Context) (Profile, error) {
	s := m.Current()
	if s == nil {
		return Profile{}, ErrNoSession
	}
	return m.db.GetProfile(ctx, s.User.ID)
}

func (m *Manager) UpdateProfile(ctx context.Context, fullName, address string) error {
	s := m.Current()
	if s == nil {
		return ErrNoSession
	}
	return m.db.UpsertProfile(ctx, Profile{UserID: s.User.ID, FullName: fullName, Address: address})
}
