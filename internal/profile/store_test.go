package profile

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFieldsRoundTrip(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "profile.json"))

	if _, ok, err := s.GetField("name"); err != nil || ok {
		t.Fatalf("GetField on empty store = ok=%v err=%v", ok, err)
	}

	if err := s.SetField("name", "Ada"); err != nil {
		t.Fatalf("SetField: %v", err)
	}
	if err := s.SetField("language", "Go"); err != nil {
		t.Fatalf("SetField: %v", err)
	}

	value, ok, err := s.GetField("name")
	if err != nil || !ok || value != "Ada" {
		t.Errorf("GetField(name) = %q, %v, %v", value, ok, err)
	}

	fields, err := s.Fields()
	if err != nil {
		t.Fatalf("Fields: %v", err)
	}
	if len(fields) != 2 || fields["language"] != "Go" {
		t.Errorf("Fields = %v", fields)
	}
}

func TestSetFieldOverwrites(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "profile.json"))
	if err := s.SetField("city", "Berlin"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetField("city", "Lisbon"); err != nil {
		t.Fatal(err)
	}
	value, _, _ := s.GetField("city")
	if value != "Lisbon" {
		t.Errorf("city = %q, want Lisbon", value)
	}
}

func TestAppendNotePreservesOrder(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "profile.json"))
	for _, content := range []string{"first", "second", "third"} {
		if err := s.AppendNote("log", content); err != nil {
			t.Fatalf("AppendNote: %v", err)
		}
	}

	notes, err := s.Notes()
	if err != nil {
		t.Fatalf("Notes: %v", err)
	}
	if len(notes) != 3 {
		t.Fatalf("got %d notes, want 3", len(notes))
	}
	for i, want := range []string{"first", "second", "third"} {
		if notes[i].Content != want {
			t.Errorf("note %d = %q, want %q", i, notes[i].Content, want)
		}
		if notes[i].Category != "log" {
			t.Errorf("note %d category = %q", i, notes[i].Category)
		}
		if notes[i].CreatedAt.IsZero() {
			t.Errorf("note %d has zero timestamp", i)
		}
	}
}

func TestStoreCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deep", "nested", "profile.json")
	s := NewStore(path)
	if err := s.SetField("k", "v"); err != nil {
		t.Fatalf("SetField: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("store file missing: %v", err)
	}
}

func TestStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.json")
	first := NewStore(path)
	if err := first.SetField("k", "v"); err != nil {
		t.Fatal(err)
	}
	if err := first.AppendNote("c", "n"); err != nil {
		t.Fatal(err)
	}

	second := NewStore(path)
	value, ok, err := second.GetField("k")
	if err != nil || !ok || value != "v" {
		t.Errorf("reopened GetField = %q, %v, %v", value, ok, err)
	}
	notes, _ := second.Notes()
	if len(notes) != 1 {
		t.Errorf("reopened Notes = %d, want 1", len(notes))
	}
}
