// Package storage holds selected files in memory until a workflow is reset.
package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oncoscope/backend/internal/models"
)

var (
	ErrNotFound = errors.New("staged file not found")
	ErrTooLarge = errors.New("file exceeds staging limit")
)

// Store defines the interface for staged file storage.
type Store interface {
	Stage(sel *models.FileSelection, r io.Reader) (*models.FileSelection, error)
	Open(id string) (io.ReadSeeker, error)
	Delete(id string) error
	Usage() (files int, bytes int64)
}

type staged struct {
	sel  *models.FileSelection
	data []byte
}

// MemoryStore implements Store with per-file byte slices. Nothing touches
// disk.
type MemoryStore struct {
	mu       sync.RWMutex
	maxBytes int64
	files    map[string]*staged
	total    int64
}

// NewMemoryStore creates a store; maxBytes <= 0 disables the per-file limit.
func NewMemoryStore(maxBytes int64) *MemoryStore {
	return &MemoryStore{
		maxBytes: maxBytes,
		files:    make(map[string]*staged),
	}
}

// Stage copies r under sel.ID. The returned selection carries the measured
// size and staging time.
func (s *MemoryStore) Stage(sel *models.FileSelection, r io.Reader) (*models.FileSelection, error) {
	if sel == nil || sel.ID == "" {
		return nil, errors.New("selection has no id")
	}

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, s.maxBytes)
	}

	cp := *sel
	cp.Size = int64(len(data))
	cp.SelectedAt = time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.files[cp.ID]; ok {
		s.total -= int64(len(old.data))
	}
	s.files[cp.ID] = &staged{sel: &cp, data: data}
	s.total += int64(len(data))

	out := cp
	return &out, nil
}

// Open returns a reader over the staged bytes. The bytes are never mutated
// after staging, so readers need no lock.
func (s *MemoryStore) Open(id string) (io.ReadSeeker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return bytes.NewReader(f.data), nil
}

// Delete drops a staged file. Deleting an unknown id is not an error.
func (s *MemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f, ok := s.files[id]; ok {
		s.total -= int64(len(f.data))
		delete(s.files, id)
	}
	return nil
}

// Usage reports the number of staged files and their total size.
func (s *MemoryStore) Usage() (int, int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files), s.total
}
