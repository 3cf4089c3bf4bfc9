// Package persist atomically snapshots a block.DocumentState to disk, for
// callers that want to resume a long-running stream (e.g. after a process
// restart) without replaying the entire source from scratch.
package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/google/renameio"

	"github.com/omgpointless/mdstream/block"
)

// ErrNotExist is returned by Load when no snapshot exists at the given path.
var ErrNotExist = errors.New("persist: snapshot does not exist")

// Snapshot is the on-disk representation of a block.DocumentState.
type Snapshot struct {
	Committed []block.Block `json:"committed"`
	Pending   *block.Block  `json:"pending,omitempty"`
}

// Store snapshots DocumentStates to a fixed path using atomic rename-in-place
// writes, so a reader never observes a partially-written file.
type Store struct {
	path   string
	logger *log.Logger
}

// NewStore builds a Store writing snapshots to path.
func NewStore(path string) *Store {
	return &Store{path: path, logger: log.New(io.Discard)}
}

// SetLogger replaces the store's diagnostic logger.
func (s *Store) SetLogger(logger *log.Logger) { s.logger = logger }

// Save atomically writes state to the store's path. A reader racing with
// Save always sees either the old or the new snapshot, never a partial one.
func (s *Store) Save(state *block.DocumentState) error {
	snap := Snapshot{Committed: state.Committed, Pending: state.Pending}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("mdstream: snapshot %s: %w", s.path, err)
	}

	t, err := renameio.TempFile("", s.path)
	if err != nil {
		return fmt.Errorf("mdstream: snapshot %s: %w", s.path, err)
	}
	defer t.Cleanup()

	if _, err := t.Write(data); err != nil {
		return fmt.Errorf("mdstream: snapshot %s: %w", s.path, err)
	}
	if err := t.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("mdstream: snapshot %s: %w", s.path, err)
	}

	s.logger.Debug("wrote snapshot", "path", s.path, "committed", len(snap.Committed), "bytes", len(data))
	return nil
}

// Load reads back a previously-saved DocumentState. Returns ErrNotExist if no
// snapshot has ever been written.
func (s *Store) Load() (*block.DocumentState, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("mdstream: snapshot %s: %w", s.path, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.logger.Error("corrupt snapshot", "path", s.path, "err", err)
		return nil, fmt.Errorf("mdstream: snapshot %s: %w", s.path, err)
	}

	s.logger.Debug("loaded snapshot", "path", s.path, "committed", len(snap.Committed))
	return &block.DocumentState{Committed: snap.Committed, Pending: snap.Pending}, nil
}

// Remove deletes any existing snapshot. It is not an error for none to exist.
func (s *Store) Remove() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("mdstream: snapshot %s: %w", s.path, err)
	}
	return nil
}
