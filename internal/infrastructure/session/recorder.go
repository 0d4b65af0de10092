package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"browser-pilot/internal/application/port/output"
	"browser-pilot/internal/domain/entity"
)

var _ output.SessionRecorderPort = (*JSONLRecorder)(nil)

// JSONLRecorder keeps a durable per-session log: one JSON line per event
// under dir/<session-id>.jsonl. It is a best-effort collaborator; callers
// ignore its errors.
type JSONLRecorder struct {
	dir string

	mu    sync.Mutex
	files map[string]*os.File
}

func NewJSONLRecorder(dir string) *JSONLRecorder {
	if dir == "" {
		dir = "sessions"
	}
	return &JSONLRecorder{dir: dir, files: make(map[string]*os.File)}
}

type record struct {
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

func (r *JSONLRecorder) CreateSession(goal string) (string, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("create session dir: %w", err)
	}

	id := uuid.NewString()
	file, err := os.Create(filepath.Join(r.dir, id+".jsonl"))
	if err != nil {
		return "", fmt.Errorf("create session file: %w", err)
	}

	r.mu.Lock()
	r.files[id] = file
	r.mu.Unlock()

	if err := r.append(id, record{
		Kind:      "session",
		Timestamp: time.Now(),
		Payload:   map[string]any{"goal": goal},
	}); err != nil {
		return "", err
	}
	return id, nil
}

func (r *JSONLRecorder) UpdateSession(sessionID string, fields map[string]any) error {
	return r.append(sessionID, record{
		Kind:      "update",
		Timestamp: time.Now(),
		Payload:   fields,
	})
}

func (r *JSONLRecorder) AddStep(sessionID string, step int, obs entity.Observation, action entity.Action, outcome entity.ActionOutcome) error {
	return r.append(sessionID, record{
		Kind:      "step",
		Timestamp: time.Now(),
		Payload: map[string]any{
			"step":    step,
			"url":     obs.URL,
			"title":   obs.Title,
			"stuck":   obs.Stuck,
			"action":  action,
			"outcome": outcome,
		},
	})
}

func (r *JSONLRecorder) append(sessionID string, rec record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	file, ok := r.files[sessionID]
	if !ok {
		return fmt.Errorf("unknown session %s", sessionID)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session record: %w", err)
	}
	if _, err := file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write session record: %w", err)
	}
	return nil
}

// Close releases all open session files.
func (r *JSONLRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for id, file := range r.files {
		if err := file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(r.files, id)
	}
	return firstErr
}
