package sessions

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gsessions "github.com/gorilla/sessions"
)

const (
	sessionFilePrefix      = "session_"
	sessionFilePermissions = 0o600
)

// FilesystemStore is a gorilla session store that keeps session values in one file per session under
// dir. A file older than the lifetime counts as missing; its modification time is refreshed on every save.
type FilesystemStore struct {
	*idStore

	dir string
	mu  sync.RWMutex
}

var _ gsessions.Store = (*FilesystemStore)(nil)

func NewFilesystemStore(dir string, options *gsessions.Options, lifetime time.Duration, keyPairs ...[]byte) *FilesystemStore {
	s := &FilesystemStore{dir: dir}
	s.idStore = newIDStore("FilesystemStore", s, options, lifetime, keyPairs...)
	return s
}

// PurgeExpired removes the files of sessions that outlived the lifetime and returns how many went.
func (s *FilesystemStore) PurgeExpired() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("[FilesystemStore PurgeExpired] %w", err)
	}
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), sessionFilePrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || !s.expired(info) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("[FilesystemStore PurgeExpired] %w", err)
		}
		removed++
	}
	return removed, nil
}

func (s *FilesystemStore) path(id string) string {
	return filepath.Join(s.dir, sessionFilePrefix+id)
}

func (s *FilesystemStore) expired(info fs.FileInfo) bool {
	return time.Since(info.ModTime()) > s.lifetime
}

func (s *FilesystemStore) load(ctx context.Context, id string) (string, bool, error) {
	s.mu.RLock()
	info, err := os.Stat(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		s.mu.RUnlock()
		return "", false, nil
	}
	if err != nil {
		s.mu.RUnlock()
		return "", false, fmt.Errorf("[FilesystemStore load] %w", err)
	}
	if s.expired(info) {
		s.mu.RUnlock()
		return "", false, s.erase(ctx, id)
	}
	data, err := os.ReadFile(s.path(id))
	s.mu.RUnlock()
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("[FilesystemStore load] %w", err)
	}
	return string(data), true, nil
}

func (s *FilesystemStore) save(_ context.Context, id, data string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.WriteFile(s.path(id), []byte(data), sessionFilePermissions); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

func (s *FilesystemStore) erase(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("[FilesystemStore erase] %w", err)
	}
	return nil
}
