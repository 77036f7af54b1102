package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	ProjectFileName = "ce-dps-state.json"
	LoopFileName    = "skynet-loop-state.json"
)

var (
	// ErrNotFound reports that a record has never been written.
	ErrNotFound = errors.New("state record not found")
	// ErrCorrupt reports a record that exists but cannot be decoded.
	ErrCorrupt = errors.New("state record is corrupt")
	// ErrConflict reports that the on-disk record changed since it was loaded.
	ErrConflict = errors.New("state record was modified by another writer")
	// ErrStoreUnavailable reports an I/O failure reading or writing a record.
	ErrStoreUnavailable = errors.New("state store unavailable")
)

// Store owns the two persisted records. Every component receives the store
// explicitly; nothing reads the state files directly.
//
// Saves are whole-record writes guarded by the record's Revision: a save whose
// Revision does not match the stored one fails with ErrConflict. A successful
// save increments Revision on the passed record.
type Store interface {
	LoadProject() (*ProjectState, error)
	SaveProject(p *ProjectState) error
	LoadLoop() (*LoopState, error)
	SaveLoop(l *LoopState) error
	// SaveBoth writes both records so that either both new values are
	// visible or neither is. A nil loop record behaves like SaveProject.
	SaveBoth(p *ProjectState, l *LoopState) error
	DeleteLoop() error
}

// FileStore is a Store backed by two JSON files in Dir.
//
// Writes go through a temp file and rename, so readers never observe a torn
// record. Revision checks catch writers racing across processes, except for
// the short window between the check and the rename.
type FileStore struct {
	Dir string
	mu  sync.Mutex
}

// NewFileStore returns a FileStore rooted at dir. The directory is created on
// first write.
func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

// LoadProject reads the project record.
func (s *FileStore) LoadProject() (*ProjectState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var p ProjectState
	if err := s.load(ProjectFileName, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// LoadLoop reads the loop record.
func (s *FileStore) LoadLoop() (*LoopState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var l LoopState
	if err := s.load(LoopFileName, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// SaveProject persists the project record.
func (s *FileStore) SaveProject(p *ProjectState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkRevision(ProjectFileName, p.Revision); err != nil {
		return err
	}
	return s.save(ProjectFileName, p, &p.Revision)
}

// SaveLoop persists the loop record.
func (s *FileStore) SaveLoop(l *LoopState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkRevision(LoopFileName, l.Revision); err != nil {
		return err
	}
	return s.save(LoopFileName, l, &l.Revision)
}

// SaveBoth persists both records. Revisions of both are checked before
// anything is written; if the loop write fails the project file is restored
// to its previous content.
func (s *FileStore) SaveBoth(p *ProjectState, l *LoopState) error {
	if l == nil {
		return s.SaveProject(p)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkRevision(ProjectFileName, p.Revision); err != nil {
		return err
	}
	if err := s.checkRevision(LoopFileName, l.Revision); err != nil {
		return err
	}

	projectPath := filepath.Join(s.Dir, ProjectFileName)
	previous, readErr := os.ReadFile(projectPath)
	if readErr != nil && !errors.Is(readErr, os.ErrNotExist) {
		return fmt.Errorf("snapshot %s: %w: %w", ProjectFileName, ErrStoreUnavailable, readErr)
	}

	if err := s.save(ProjectFileName, p, &p.Revision); err != nil {
		return err
	}
	if err := s.save(LoopFileName, l, &l.Revision); err != nil {
		p.Revision--
		if readErr == nil {
			_ = writeAtomic(s.Dir, ProjectFileName, previous)
		} else {
			_ = os.Remove(projectPath)
		}
		return err
	}
	return nil
}

// DeleteLoop removes the loop record. Deleting a missing record is not an
// error.
func (s *FileStore) DeleteLoop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(filepath.Join(s.Dir, LoopFileName))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w: %w", LoopFileName, ErrStoreUnavailable, err)
	}
	return nil
}

func (s *FileStore) load(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.Dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return fmt.Errorf("read %s: %w: %w", name, ErrStoreUnavailable, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %s: %w: %w", name, ErrCorrupt, err)
	}
	return nil
}

// checkRevision compares the revision the caller loaded with the one on disk.
func (s *FileStore) checkRevision(name string, want int64) error {
	data, err := os.ReadFile(filepath.Join(s.Dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if want != 0 {
				return fmt.Errorf("%s: record vanished at revision %d: %w", name, want, ErrConflict)
			}
			return nil
		}
		return fmt.Errorf("read %s: %w: %w", name, ErrStoreUnavailable, err)
	}

	var head struct {
		Revision int64 `json:"revision"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return fmt.Errorf("unmarshal %s: %w: %w", name, ErrCorrupt, err)
	}
	if head.Revision != want {
		return fmt.Errorf("%s: loaded revision %d, stored revision %d: %w", name, want, head.Revision, ErrConflict)
	}
	return nil
}

// save bumps *revision, marshals v and writes it. The revision is restored if
// anything fails.
func (s *FileStore) save(name string, v any, revision *int64) error {
	*revision++

	// Marshal with 4-space indent
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		*revision--
		return fmt.Errorf("marshal %s: %w", name, err)
	}

	if err := writeAtomic(s.Dir, name, data); err != nil {
		*revision--
		return err
	}
	return nil
}

// writeAtomic writes data to dir/name through a temp file in the same
// directory followed by a rename.
func writeAtomic(dir, name string, data []byte) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create state dir: %w: %w", ErrStoreUnavailable, err)
	}

	tmp, err := os.CreateTemp(dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w: %w", ErrStoreUnavailable, err)
	}
	tmpPath := tmp.Name()

	if err := tmp.Chmod(0644); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("chmod %s: %w: %w", name, ErrStoreUnavailable, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w: %w", name, ErrStoreUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close %s: %w: %w", name, ErrStoreUnavailable, err)
	}
	if err := os.Rename(tmpPath, filepath.Join(dir, name)); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace %s: %w: %w", name, ErrStoreUnavailable, err)
	}
	return nil
}
