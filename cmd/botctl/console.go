package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"botdeck/backend/internal/model"
	"botdeck/backend/internal/notification"
)

// consoleSink prints notifications as they are published
type consoleSink struct {
	mu  sync.Mutex
	out io.Writer
}

func (s *consoleSink) NotificationAdded(n notification.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	line := n.Message
	if n.Title != "" {
		line = n.Title + ": " + line
	}
	fmt.Fprintf(s.out, "%s %s\n", kindPrefix(n.Kind), line)
}

func (s *consoleSink) NotificationRemoved(notification.Notification) {}

func kindPrefix(k notification.Kind) string {
	switch k {
	case notification.KindSuccess:
		return "[ok]"
	case notification.KindError:
		return "[error]"
	case notification.KindWarning:
		return "[warn]"
	}
	return "[info]"
}

// tokenStore keeps the trading service token between invocations
type tokenStore struct {
	path string
}

func defaultTokenStore() (*tokenStore, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil, err
	}
	return &tokenStore{path: filepath.Join(dir, "botdeck", "token")}, nil
}

var errNotLoggedIn = errors.New("not logged in, run `botctl login` first")

func (s *tokenStore) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", errNotLoggedIn
	}
	if err != nil {
		return "", err
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", errNotLoggedIn
	}
	return token, nil
}

func (s *tokenStore) Save(token string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(s.path, []byte(token+"\n"), 0o600)
}

func (s *tokenStore) Clear() error {
	err := os.Remove(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// cliSessions forgets the stored token once the trading service rejects it
type cliSessions struct {
	store *tokenStore
	out   io.Writer
}

func (s *cliSessions) Expire(_ context.Context, _ model.Principal) {
	_ = s.store.Clear()
	fmt.Fprintln(s.out, "Session expired, run `botctl login` again.")
}
