package shelf

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"bookshelf/library"
)

// Change describes one identity transition. Gen is the generation the
// tracker moved to; results fetched under an older generation are stale.
type Change struct {
	Prev *library.User
	Next *library.User
	Gen  uint64
}

// Tracker holds the current identity and notifies dependents when it
// changes. Every transition bumps a generation counter so that in-flight
// store calls started for a previous identity can be detected and dropped.
type Tracker struct {
	auth         Auth
	log          *zap.Logger
	minPassword  int
	eventTimeout time.Duration

	gen     atomic.Uint64
	calling atomic.Int32

	mu          sync.Mutex
	user        *library.User
	resets      []func()
	listeners   []func(context.Context, Change) error
	unsubscribe func()
}

// NewTracker returns an anonymous tracker over auth. minPassword applies to
// signups; eventTimeout bounds the work triggered by store notifications.
func NewTracker(auth Auth, log *zap.Logger, minPassword int, eventTimeout time.Duration) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	if eventTimeout <= 0 {
		eventTimeout = 30 * time.Second
	}
	return &Tracker{auth: auth, log: log, minPassword: minPassword, eventTimeout: eventTimeout}
}

// Current returns the signed-in user, if any.
func (t *Tracker) Current() (library.User, bool) {
	u, _, ok := t.Snapshot()
	return u, ok
}

// Snapshot returns the identity together with its generation.
func (t *Tracker) Snapshot() (library.User, uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	gen := t.gen.Load()
	if t.user == nil {
		return library.User{}, gen, false
	}
	return *t.user, gen, true
}

// IsCurrent reports whether no transition happened since gen was observed.
func (t *Tracker) IsCurrent(gen uint64) bool { return t.gen.Load() == gen }

// OnReset registers fn to run synchronously inside every identity
// transition, before the new identity becomes observable to listeners.
// fn must not call back into the tracker.
func (t *Tracker) OnReset(fn func()) {
	t.mu.Lock()
	t.resets = append(t.resets, fn)
	t.mu.Unlock()
}

// OnChange registers fn to run after every identity transition. Errors are
// returned to whoever caused the transition.
func (t *Tracker) OnChange(fn func(context.Context, Change) error) {
	t.mu.Lock()
	t.listeners = append(t.listeners, fn)
	t.mu.Unlock()
}

// Watch starts following auth events pushed by the remote store, such as
// a session resumed at startup or expiring while idle.
func (t *Tracker) Watch() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.unsubscribe != nil {
		return
	}
	t.unsubscribe = t.auth.Subscribe(t.handle)
}

// Close stops following auth events.
func (t *Tracker) Close() {
	t.mu.Lock()
	unsub := t.unsubscribe
	t.unsubscribe = nil
	t.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

func (t *Tracker) handle(ev library.AuthEvent) {
	var next *library.User
	switch ev.Kind {
	case library.SignedIn, library.TokenRefreshed:
		// Our own Login applies its result directly.
		if ev.Kind == library.SignedIn && t.calling.Load() > 0 {
			return
		}
		if ev.Session == nil {
			return
		}
		u := ev.Session.User
		next = &u
	case library.SignedOut, library.SessionExpired:
		if ev.Kind == library.SignedOut && t.calling.Load() > 0 {
			return
		}
	default:
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), t.eventTimeout)
	defer cancel()
	if err := t.transition(ctx, next); err != nil {
		t.log.Warn("apply auth event", zap.Stringer("event", ev.Kind), zap.Error(err))
	}
}

// Login signs in and, on success, makes the user current. A failed initial
// fetch is returned but leaves the user signed in.
func (t *Tracker) Login(ctx context.Context, email, password string) error {
	if err := checkCredentials(email, password, 0); err != nil {
		return err
	}
	t.calling.Add(1)
	s, err := t.auth.SignIn(ctx, strings.TrimSpace(email), password)
	t.calling.Add(-1)
	if err != nil {
		return authError("sign in", err)
	}
	return t.transition(ctx, &s.User)
}

// Signup registers an account. pending is true when the user has to
// confirm their email before signing in.
func (t *Tracker) Signup(ctx context.Context, email, password string) (pending bool, err error) {
	if err := checkCredentials(email, password, t.minPassword); err != nil {
		return false, err
	}
	t.calling.Add(1)
	s, err := t.auth.SignUp(ctx, strings.TrimSpace(email), password)
	t.calling.Add(-1)
	if err != nil {
		return false, authError("sign up", err)
	}
	if s == nil {
		return true, nil
	}
	return false, t.transition(ctx, &s.User)
}

// Logout signs out. The identity is kept when the store call fails.
func (t *Tracker) Logout(ctx context.Context) error {
	t.calling.Add(1)
	err := t.auth.SignOut(ctx)
	t.calling.Add(-1)
	if err != nil {
		return authError("sign out", err)
	}
	return t.transition(ctx, nil)
}

func sameIdentity(a, b *library.User) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID
}

func (t *Tracker) transition(ctx context.Context, next *library.User) error {
	t.mu.Lock()
	if sameIdentity(t.user, next) {
		if next != nil {
			u := *next
			t.user = &u
		}
		t.mu.Unlock()
		return nil
	}
	prev := t.user
	var cur *library.User
	if next != nil {
		u := *next
		cur = &u
	}
	t.user = cur
	gen := t.gen.Add(1)
	for _, fn := range t.resets {
		fn()
	}
	listeners := slices.Clone(t.listeners)
	t.mu.Unlock()

	if cur != nil {
		t.log.Info("signed in", zap.String("user_id", cur.ID), zap.Uint64("generation", gen))
	} else {
		t.log.Info("signed out", zap.Uint64("generation", gen))
	}

	var errs []error
	for _, fn := range listeners {
		if err := fn(ctx, Change{Prev: prev, Next: cur, Gen: gen}); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
