// Package storage provides the file-based draft store backing the fast
// path: the latest verified plan of each client, re-renderable without a
// new generation run.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"nutriplan/internal/compile"
)

// ErrNoStoredPlan is returned when a client has no saved plan yet.
var ErrNoStoredPlan = errors.New("no stored plan for client")

// StoredPlan is one persisted run result.
type StoredPlan struct {
	ClientID string                `json:"client_id"`
	SavedAt  time.Time             `json:"saved_at"`
	Plan     *compile.CompiledPlan `json:"plan"`
}

// DraftStore keeps one JSON file per client under a base directory.
type DraftStore struct {
	basePath string
}

// NewDraftStore creates the store and ensures the base directory exists.
func NewDraftStore(basePath string) (*DraftStore, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create draft store directory %s: %w", basePath, err)
	}
	return &DraftStore{basePath: basePath}, nil
}

// Save persists the compiled plan as the client's latest. The write goes
// through a temp file and rename so a crash never leaves a torn file.
func (s *DraftStore) Save(clientID string, cp *compile.CompiledPlan) error {
	stored := StoredPlan{ClientID: clientID, SavedAt: time.Now().UTC(), Plan: cp}
	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal stored plan: %w", err)
	}

	final := s.pathFor(clientID)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write stored plan: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("commit stored plan: %w", err)
	}
	return nil
}

// LoadLatest returns the client's saved plan, or ErrNoStoredPlan.
func (s *DraftStore) LoadLatest(clientID string) (*StoredPlan, error) {
	data, err := os.ReadFile(s.pathFor(clientID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoStoredPlan, clientID)
		}
		return nil, fmt.Errorf("read stored plan: %w", err)
	}

	var stored StoredPlan
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("decode stored plan: %w", err)
	}
	return &stored, nil
}

// Exists reports whether the client has a saved plan.
func (s *DraftStore) Exists(clientID string) bool {
	_, err := os.Stat(s.pathFor(clientID))
	return err == nil
}

func (s *DraftStore) pathFor(clientID string) string {
	return filepath.Join(s.basePath, sanitizeID(clientID)+".json")
}

// sanitizeID keeps client ids filesystem-safe.
func sanitizeID(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
}
