package store

import (
	"os"
	"path/filepath"
	"testing"

	"truthguard/pkg/domain"
)

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}

	if _, found, err := s.Token(); err != nil || found {
		t.Fatalf("fresh store should have no token, found=%v err=%v", found, err)
	}

	if err := s.SaveToken("tok-1"); err != nil {
		t.Fatalf("save token: %v", err)
	}
	user := domain.User{ID: "u1", Email: "a@example.com", Name: "A", Role: domain.RoleUser}
	if err := s.SaveUser(user); err != nil {
		t.Fatalf("save user: %v", err)
	}
	if err := s.SaveUsageCount(2); err != nil {
		t.Fatalf("save usage: %v", err)
	}

	// Reopen to prove the state survived.
	s2, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("reopen file store: %v", err)
	}
	tok, found, err := s2.Token()
	if err != nil || !found || tok != "tok-1" {
		t.Fatalf("token round trip: got %q found=%v err=%v", tok, found, err)
	}
	got, found, err := s2.User()
	if err != nil || !found || got.ID != "u1" || got.Email != "a@example.com" {
		t.Fatalf("user round trip: got %+v found=%v err=%v", got, found, err)
	}
	n, err := s2.UsageCount()
	if err != nil || n != 2 {
		t.Fatalf("usage round trip: got %d err=%v", n, err)
	}
}

func TestFileStoreClearSessionKeepsUsageCount(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	if err := s.SaveToken("tok"); err != nil {
		t.Fatalf("save token: %v", err)
	}
	if err := s.SaveUser(domain.User{ID: "u1", Email: "a@example.com"}); err != nil {
		t.Fatalf("save user: %v", err)
	}
	if err := s.SaveUsageCount(3); err != nil {
		t.Fatalf("save usage: %v", err)
	}

	if err := s.ClearSession(); err != nil {
		t.Fatalf("clear session: %v", err)
	}
	if _, found, _ := s.Token(); found {
		t.Fatal("token should be gone after clear")
	}
	if _, found, _ := s.User(); found {
		t.Fatal("user should be gone after clear")
	}
	n, err := s.UsageCount()
	if err != nil || n != 3 {
		t.Fatalf("usage count must survive clear, got %d err=%v", n, err)
	}
}

func TestFileStoreCorruptedFileYieldsEmptyState(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, stateFilename), []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	if _, found, err := s.Token(); err != nil || found {
		t.Fatalf("corrupt state must read as empty, found=%v err=%v", found, err)
	}
	n, err := s.UsageCount()
	if err != nil || n != 0 {
		t.Fatalf("corrupt state usage must be 0, got %d err=%v", n, err)
	}
	// Writes must recover the file.
	if err := s.SaveToken("tok"); err != nil {
		t.Fatalf("save after corruption: %v", err)
	}
	tok, found, err := s.Token()
	if err != nil || !found || tok != "tok" {
		t.Fatalf("recovered token: got %q found=%v err=%v", tok, found, err)
	}
}

func TestFileStoreNegativeUsageClamped(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	if err := s.SaveUsageCount(-5); err != nil {
		t.Fatalf("save usage: %v", err)
	}
	n, err := s.UsageCount()
	if err != nil || n != 0 {
		t.Fatalf("negative count should clamp to 0, got %d err=%v", n, err)
	}
}
