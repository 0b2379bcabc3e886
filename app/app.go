// Package app wires configuration, logging, the store and the shelf into
// one process.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"bookshelf/config"
	"bookshelf/isbn"
	"bookshelf/library"
	"bookshelf/shelf"
)

type App struct {
	Config  *config.Config
	Log     *zap.Logger
	Store   *library.Manager
	Lookup  *isbn.Client
	Scanner *isbn.Scanner
	Shelf   *shelf.Shelf

	sessions *sessionFile
	cleanup  []func() error
}

// New opens the store and builds the shelf. A nil log gets a logger built
// from cfg.Log.
func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	a := &App{Config: cfg}
	if log == nil {
		l, err := NewLogger(cfg.Log)
		if err != nil {
			return nil, err
		}
		log = l
		a.cleanup = append(a.cleanup, func() error { _ = l.Sync(); return nil })
	}
	a.Log = log

	store, err := library.NewManager(cfg.Database.Path, library.LogMailer{Log: log.Named("mail")}, log.Named("store"), cfg.ManagerOptions())
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.Store = store
	a.cleanup = append(a.cleanup, store.Close)
	log.Info("database ready", zap.String("path", cfg.Database.Path))

	a.Lookup = isbn.NewClient(cfg.Lookup.BaseURL, cfg.Lookup.APIKey, cfg.Lookup.Timeout, log.Named("lookup"))
	a.Scanner = isbn.NewScanner(a.Lookup)
	a.Shelf = shelf.New(store, log.Named("shelf"), cfg.ShelfOptions())
	a.cleanup = append(a.cleanup, func() error { a.Shelf.Close(); return nil })

	if cfg.SessionFile != "" {
		a.sessions = &sessionFile{path: cfg.SessionFile, log: log}
		unsub := store.Subscribe(a.sessions.track)
		a.cleanup = append(a.cleanup, func() error { unsub(); return nil })
	}
	return a, nil
}

// Context returns a context bounded by the configured store timeout.
func (a *App) Context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), a.Config.Store.Timeout)
}

// ResumeSession restores the session saved by a previous run, if any.
// The shelf picks the identity up from the store's SignedIn notification.
func (a *App) ResumeSession(ctx context.Context) (bool, error) {
	if a.sessions == nil {
		return false, nil
	}
	token, err := a.sessions.load()
	if err != nil || token == "" {
		return false, err
	}
	if _, err := a.Store.Resume(ctx, token); err != nil {
		if errors.Is(err, library.ErrSessionExpired) {
			a.sessions.clear()
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Close releases everything New acquired, in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		if err := a.cleanup[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.cleanup = nil
	return errors.Join(errs...)
}
