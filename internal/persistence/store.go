// Package persistence implements the session-record store of spec.md §6
// ("Session record (produced)"): a write-only emission of in-flight
// session snapshots to disk, removed on teardown. Nothing in the core
// reads these back; FileStore exists purely as the external collaborator
// the session layer talks to.
package persistence

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/nanashili/dap-client/internal/jsonvalue"
	"github.com/nanashili/dap-client/internal/protoerr"
)

// SessionRecord is the persisted snapshot of one session.
type SessionRecord struct {
	SessionID         uuid.UUID       `json:"session_id"`
	AdapterIdentifier string          `json:"adapter_identifier"`
	Configuration     jsonvalue.Value `json:"configuration"`
	Timestamp         time.Time       `json:"timestamp"`
}

// Store persists and removes SessionRecords. Implementations must treat
// Remove of an unknown ID as a no-op, not an error, since teardown may
// race a record that was never successfully saved.
type Store interface {
	Save(record SessionRecord) error
	Remove(id uuid.UUID) error
}

// FileStore is a Store backed by one JSON file per session under dir.
type FileStore struct {
	dir string
}

// NewFileStore returns a FileStore rooted at dir, creating it if absent.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, protoerr.Wrap(protoerr.KindPersistenceFailure, "create session record directory", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(id uuid.UUID) string {
	return filepath.Join(s.dir, id.String()+".json")
}

func (s *FileStore) Save(record SessionRecord) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return protoerr.Wrap(protoerr.KindPersistenceFailure, "encode session record", err)
	}
	if err := os.WriteFile(s.path(record.SessionID), data, 0o644); err != nil {
		return protoerr.Wrap(protoerr.KindPersistenceFailure, "write session record", err)
	}
	return nil
}

func (s *FileStore) Remove(id uuid.UUID) error {
	err := os.Remove(s.path(id))
	if err != nil && !os.IsNotExist(err) {
		return protoerr.Wrap(protoerr.KindPersistenceFailure, "remove session record", err)
	}
	return nil
}
