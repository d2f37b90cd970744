package store

import (
	"path/filepath"
	"testing"
	"time"
)

type pageStub struct {
	Title    string   `json:"title"`
	Sections []string `json:"sections"`
}

func openTestStore(t *testing.T, ttl time.Duration) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "pages.db"), ttl, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_SaveAndLoad(t *testing.T) {
	s := openTestStore(t, time.Hour)

	in := pageStub{Title: "Gato", Sections: []string{"Etimología", "Historia"}}
	if err := s.Save("page:es:Gato", in); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	var out pageStub
	ok, err := s.Load("page:es:Gato", &out)
	if err != nil || !ok {
		t.Fatalf("Load = %v, %v", ok, err)
	}
	if out.Title != "Gato" || len(out.Sections) != 2 || out.Sections[1] != "Historia" {
		t.Errorf("Load() = %+v", out)
	}
}

func TestStore_LoadMissing(t *testing.T) {
	s := openTestStore(t, time.Hour)

	var out pageStub
	ok, err := s.Load("page:en:Nope", &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected a miss")
	}
}

func TestStore_Expiry(t *testing.T) {
	s := openTestStore(t, time.Minute)
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	if err := s.Save("page:en:Go", pageStub{Title: "Go"}); err != nil {
		t.Fatal(err)
	}

	now = now.Add(2 * time.Minute)
	var out pageStub
	if ok, _ := s.Load("page:en:Go", &out); ok {
		t.Error("expected expired entry to read as a miss")
	}
}

func TestStore_ZeroTTLKeepsForever(t *testing.T) {
	s := openTestStore(t, 0)
	now := time.Now()
	s.now = func() time.Time { return now }

	if err := s.Save("k", pageStub{Title: "x"}); err != nil {
		t.Fatal(err)
	}
	now = now.Add(24 * 365 * time.Hour)

	var out pageStub
	if ok, err := s.Load("k", &out); !ok || err != nil {
		t.Errorf("Load = %v, %v; want a hit", ok, err)
	}
}

func TestStore_Prune(t *testing.T) {
	s := openTestStore(t, time.Minute)
	now := time.Now()
	s.now = func() time.Time { return now }

	_ = s.Save("page:en:Old", pageStub{Title: "Old"})
	_ = s.Save("page:es:Viejo", pageStub{Title: "Viejo"})
	now = now.Add(2 * time.Minute)
	_ = s.Save("page:en:New", pageStub{Title: "New"})

	n, err := s.Prune("page:en:")
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Prune(en) = %d, want 1", n)
	}

	n, err = s.Prune("")
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Prune(all) = %d, want 1", n)
	}

	var out pageStub
	if ok, _ := s.Load("page:en:New", &out); !ok {
		t.Error("fresh entry should survive pruning")
	}
}

func TestStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pages.db")

	s, err := Open(path, time.Hour, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Save("links:en:Go", []string{"C", "Plan 9"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = Open(path, time.Hour, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = s.Close() }()

	var links []string
	if ok, err := s.Load("links:en:Go", &links); !ok || err != nil {
		t.Fatalf("Load after reopen = %v, %v", ok, err)
	}
	if len(links) != 2 {
		t.Errorf("links = %v", links)
	}
}

func TestStore_Delete(t *testing.T) {
	s := openTestStore(t, time.Hour)

	_ = s.Save("page:en:Go", pageStub{Title: "Go"})
	_ = s.Save("page:en:Rust", pageStub{Title: "Rust"})
	_ = s.Save("page:es:Gato", pageStub{Title: "Gato"})
	_ = s.Save("links:en:Go", []string{"C"})

	n, err := s.Delete("page:en:")
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Delete(page:en:) = %d, want 2", n)
	}

	var out pageStub
	if ok, _ := s.Load("page:en:Go", &out); ok {
		t.Error("page:en:Go should be gone")
	}
	if ok, _ := s.Load("page:es:Gato", &out); !ok {
		t.Error("other languages must survive")
	}
	var links []string
	if ok, _ := s.Load("links:en:Go", &links); !ok {
		t.Error("links must survive a page delete")
	}

	if _, err := s.Delete(""); err == nil {
		t.Error("expected an error for an empty prefix")
	}
}
