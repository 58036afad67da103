package state

import (
	"path/filepath"
	"testing"

	"github.com/nashra-hq/nashra-dispatch/internal/domain"
)

func TestBoltStoreRoundTrip(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	last, err := store.GetLast(domain.SourceCrunchyroll)
	if err != nil {
		t.Fatalf("GetLast on empty store: %v", err)
	}
	if last != "" {
		t.Fatalf("expected empty fingerprint for fresh store, got %q", last)
	}

	if err := store.SetLast(domain.SourceCrunchyroll, "ep42|https://img.example/42.jpg"); err != nil {
		t.Fatalf("SetLast: %v", err)
	}

	last, err = store.GetLast(domain.SourceCrunchyroll)
	if err != nil {
		t.Fatalf("GetLast: %v", err)
	}
	if last != "ep42|https://img.example/42.jpg" {
		t.Fatalf("unexpected fingerprint: %q", last)
	}

	// Other sources are independent keys.
	last, err = store.GetLast(domain.SourceYouTube)
	if err != nil {
		t.Fatalf("GetLast youtube: %v", err)
	}
	if last != "" {
		t.Fatalf("expected youtube untouched, got %q", last)
	}
}

func TestBoltStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.SetLast(domain.SourceYouTube, "vid-123"); err != nil {
		t.Fatalf("SetLast: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	last, err := reopened.GetLast(domain.SourceYouTube)
	if err != nil {
		t.Fatalf("GetLast after reopen: %v", err)
	}
	if last != "vid-123" {
		t.Fatalf("expected fingerprint to survive restart, got %q", last)
	}
}

func TestBoltStoreRejectsEmptyFingerprint(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	if err := store.SetLast(domain.SourceCrunchyroll, "  "); err == nil {
		t.Fatalf("expected error for empty fingerprint")
	}
}
