package memory

import (
	"path/filepath"
	"testing"
)

func TestLongTermAddDedup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "longterm.json")
	lt, err := NewLongTerm(path, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := lt.Add("likes tea"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := lt.Add("likes tea"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := lt.Add(""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := lt.All(); len(got) != 1 {
		t.Fatalf("expected 1 fact after dedup, got %d: %v", len(got), got)
	}
}

func TestLongTermCapEvictsOldest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "longterm.json")
	lt, err := NewLongTerm(path, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lt.Add("a")
	lt.Add("b")
	lt.Add("c")

	got := lt.All()
	if len(got) != 2 {
		t.Fatalf("expected cap of 2, got %d: %v", len(got), got)
	}
	if got[0] != "b" || got[1] != "c" {
		t.Errorf("expected [b c], got %v", got)
	}
}

func TestLongTermPersistsAcrossLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "longterm.json")

	lt, err := NewLongTerm(path, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lt.Add("remembers this")

	reloaded, err := NewLongTerm(path, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := reloaded.All(); len(got) != 1 || got[0] != "remembers this" {
		t.Fatalf("expected reload to recover the fact, got %v", got)
	}
}

func TestLongTermIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "longterm.json")
	lt, err := NewLongTerm(path, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !lt.IsEmpty() {
		t.Error("expected new store to be empty")
	}
	lt.Add("fact")
	if lt.IsEmpty() {
		t.Error("expected non-empty store after Add")
	}
}

func TestLongTermRecent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "longterm.json")
	lt, err := NewLongTerm(path, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lt.Add("a")
	lt.Add("b")
	lt.Add("c")

	if got := lt.Recent(2); len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Errorf("expected [b c], got %v", got)
	}
}

func TestLongTermMissingFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.json")
	lt, err := NewLongTerm(path, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !lt.IsEmpty() {
		t.Error("expected empty store when file is absent")
	}
}
