package state

import (
	"encoding/json"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsEmpty(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "state.json"), nil)
	b := s.Load()
	if len(b.Global) != 0 || len(b.Conversations) != 0 {
		t.Fatalf("expected empty buckets, got %+v", b)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := New(path, nil)

	b := Empty()
	b.Global["counter"] = map[string]any{"calls": 3}
	b.Conversations["conv-1"] = map[string]any{
		"scratchpad": map[string]any{"note": "hello"},
	}

	if err := s.Save(b); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded := New(path, nil).Load()
	counter, ok := loaded.Global["counter"].(map[string]any)
	if !ok {
		t.Fatalf("expected global.counter to be an object, got %T", loaded.Global["counter"])
	}
	calls, ok := counter["calls"].(json.Number)
	_ = ok
	if calls.String() != "3" {
		t.Errorf("expected calls=3, got %v", calls)
	}

	conv, ok := loaded.Conversations["conv-1"]
	if !ok {
		t.Fatal("expected conv-1 bucket to round-trip")
	}
	scratch, ok := conv["scratchpad"].(map[string]any)
	if !ok || scratch["note"] != "hello" {
		t.Errorf("expected scratchpad.note=hello, got %+v", conv["scratchpad"])
	}
}

func TestResetClearsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := New(path, nil)

	b := Empty()
	b.Global["x"] = "y"
	if err := s.Save(b); err != nil {
		t.Fatalf("save: %v", err)
	}

	reset := s.Reset()
	if len(reset.Global) != 0 {
		t.Fatalf("expected reset to return empty buckets, got %+v", reset)
	}

	loaded := New(path, nil).Load()
	if len(loaded.Global) != 0 {
		t.Fatalf("expected file to be gone after reset, got %+v", loaded)
	}
}
