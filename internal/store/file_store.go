package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"truthguard/pkg/domain"
)

const stateFilename = "state.json"

// FileStore persists state as a single JSON document under a base directory.
// This is the default backend: the desktop analogue of browser local storage.
type FileStore struct {
	mu   sync.Mutex
	path string
}

type stateDoc struct {
	Token      string       `json:"token,omitempty"`
	User       *domain.User `json:"user,omitempty"`
	UsageCount int          `json:"usageCount"`
}

// NewFileStore creates the base directory if missing.
func NewFileStore(baseDir string) (*FileStore, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, fmt.Errorf("state dir is required")
	}
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &FileStore{path: filepath.Join(baseDir, stateFilename)}, nil
}

func (f *FileStore) SaveToken(token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc := f.loadLocked()
	doc.Token = token
	return f.writeLocked(doc)
}

func (f *FileStore) Token() (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc := f.loadLocked()
	return doc.Token, doc.Token != "", nil
}

func (f *FileStore) SaveUser(user domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc := f.loadLocked()
	u := user
	doc.User = &u
	return f.writeLocked(doc)
}

func (f *FileStore) User() (domain.User, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc := f.loadLocked()
	if doc.User == nil {
		return domain.User{}, false, nil
	}
	return *doc.User, true, nil
}

func (f *FileStore) ClearSession() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc := f.loadLocked()
	doc.Token = ""
	doc.User = nil
	return f.writeLocked(doc)
}

func (f *FileStore) UsageCount() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loadLocked().UsageCount, nil
}

func (f *FileStore) SaveUsageCount(n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n < 0 {
		n = 0
	}
	doc := f.loadLocked()
	doc.UsageCount = n
	return f.writeLocked(doc)
}

func (f *FileStore) Close() error { return nil }

// loadLocked reads the state document. A missing or corrupted file yields an
// empty document: stale state is discarded, never propagated as an error.
func (f *FileStore) loadLocked() stateDoc {
	var doc stateDoc
	data, err := os.ReadFile(f.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("state file unreadable, starting empty", "path", f.path, "err", err)
		}
		return stateDoc{}
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		slog.Warn("state file corrupted, starting empty", "path", f.path, "err", err)
		return stateDoc{}
	}
	return doc
}

// writeLocked replaces the state file atomically via rename.
func (f *FileStore) writeLocked(doc stateDoc) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}
