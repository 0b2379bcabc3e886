package app

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"bookshelf/library"
)

// sessionFile persists the current session token between runs.
type sessionFile struct {
	path string
	log  *zap.Logger
}

func (f *sessionFile) load() (string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (f *sessionFile) save(token string) {
	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			f.log.Warn("save session", zap.Error(err))
			return
		}
	}
	if err := os.WriteFile(f.path, []byte(token+"\n"), 0o600); err != nil {
		f.log.Warn("save session", zap.Error(err))
	}
}

func (f *sessionFile) clear() {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		f.log.Warn("clear session", zap.Error(err))
	}
}

func (f *sessionFile) track(ev library.AuthEvent) {
	switch ev.Kind {
	case library.SignedIn, library.TokenRefreshed:
		if ev.Session != nil {
			f.save(ev.Session.Token)
		}
	case library.SignedOut, library.SessionExpired:
		f.clear()
	}
}
