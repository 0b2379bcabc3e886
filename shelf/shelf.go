// Package shelf is the client-side state of a personal book collection: who
// is signed in, the cached list of their books, the single in-progress edit,
// the pending deletion and the searchable listing.
//
// All state is scoped to the current identity. When the identity changes
// the edit and deletion are cancelled, the cache is cleared and, for a new
// user, refetched. Store calls that were started for an earlier identity
// complete with ErrStale and leave the cache untouched.
package shelf

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type Options struct {
	MinPasswordLength int
	// FetchTimeout bounds the refetch triggered by auth events that do not
	// come with a caller context.
	FetchTimeout time.Duration
	View         ViewOptions
}

func (o *Options) setDefaults() {
	if o.MinPasswordLength <= 0 {
		o.MinPasswordLength = 6
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 30 * time.Second
	}
}

type Shelf struct {
	Session *Tracker
	Books   *Collection
	Edit    *Editor
	Delete  *Deletion
	View    *View

	log *zap.Logger
}

func New(remote Remote, log *zap.Logger, opts Options) *Shelf {
	if log == nil {
		log = zap.NewNop()
	}
	opts.setDefaults()

	tracker := NewTracker(remote, log.Named("session"), opts.MinPasswordLength, opts.FetchTimeout)
	books := NewCollection(remote, tracker, log.Named("books"))
	s := &Shelf{
		Session: tracker,
		Books:   books,
		Edit:    NewEditor(books),
		Delete:  NewDeletion(books),
		View:    NewView(books.Books, opts.View),
		log:     log,
	}

	tracker.OnReset(func() {
		s.Edit.Cancel()
		s.Delete.Cancel()
		s.Books.Clear()
	})
	tracker.OnChange(func(ctx context.Context, ch Change) error {
		if ch.Next == nil {
			return nil
		}
		return s.Books.FetchAll(ctx)
	})
	books.Subscribe(func(ev Event) {
		if ev.Kind == Cleared {
			s.View.Reset()
			return
		}
		s.View.Refresh()
	})
	tracker.Watch()
	return s
}

func (s *Shelf) Login(ctx context.Context, email, password string) error {
	return s.Session.Login(ctx, email, password)
}

func (s *Shelf) Signup(ctx context.Context, email, password string) (bool, error) {
	return s.Session.Signup(ctx, email, password)
}

func (s *Shelf) Logout(ctx context.Context) error {
	return s.Session.Logout(ctx)
}

// Close stops following auth events and drops pending search input.
func (s *Shelf) Close() {
	s.Session.Close()
	s.View.Stop()
}
