// Package profile implements the JSON-file-backed user profile and notes
// store. The engine treats its contents as opaque strings; only the tool
// handlers read and write it.
package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Note is one structured note appended by the agent.
type Note struct {
	Category  string    `json:"category"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type fileData struct {
	Fields map[string]string `json:"fields"`
	Notes  []Note            `json:"notes"`
}

// Store persists profile fields and notes to a single JSON file. Safe for
// concurrent use by parallel tool execution.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a store at path. The file is created on first write.
func NewStore(path string) *Store {
	if strings.HasPrefix(path, "~") {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[1:])
	}
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// GetField returns one profile field, or ("", false) when unset.
func (s *Store) GetField(name string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.load()
	if err != nil {
		return "", false, err
	}
	v, ok := data.Fields[name]
	return v, ok, nil
}

// Fields returns a copy of all profile fields.
func (s *Store) Fields() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(data.Fields))
	for k, v := range data.Fields {
		out[k] = v
	}
	return out, nil
}

// SetField updates one profile field and persists immediately.
func (s *Store) SetField(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.load()
	if err != nil {
		return err
	}
	data.Fields[name] = value
	return s.save(data)
}

// AppendNote appends one structured note and persists immediately.
func (s *Store) AppendNote(category, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.load()
	if err != nil {
		return err
	}
	data.Notes = append(data.Notes, Note{
		Category:  category,
		Content:   content,
		CreatedAt: time.Now(),
	})
	return s.save(data)
}

// Notes returns all stored notes, oldest first.
func (s *Store) Notes() ([]Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.load()
	if err != nil {
		return nil, err
	}
	return append([]Note{}, data.Notes...), nil
}

func (s *Store) load() (*fileData, error) {
	data := &fileData{Fields: make(map[string]string)}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return data, nil
		}
		return nil, fmt.Errorf("read profile: %w", err)
	}
	if err := json.Unmarshal(raw, data); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}
	if data.Fields == nil {
		data.Fields = make(map[string]string)
	}
	return data, nil
}

func (s *Store) save(data *fileData) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	return os.WriteFile(s.path, raw, 0600)
}
