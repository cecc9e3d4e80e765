package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// LockFile records the class table fingerprint of the last successful run
// for each program, so interface changes show up between runs.
type LockFile struct {
	Programs []LockedProgram `toml:"program"`
}

// LockedProgram is one program's recorded state.
type LockedProgram struct {
	Path        string `toml:"path"`
	Fingerprint string `toml:"fingerprint"` // hex SHA-256 of the class table
	Classes     int    `toml:"classes"`
}

// Find returns the entry for path, or nil.
func (lf *LockFile) Find(path string) *LockedProgram {
	for i := range lf.Programs {
		if lf.Programs[i].Path == path {
			return &lf.Programs[i]
		}
	}
	return nil
}

// Put inserts or replaces the entry for p.Path.
func (lf *LockFile) Put(p LockedProgram) {
	if existing := lf.Find(p.Path); existing != nil {
		*existing = p
		return
	}
	lf.Programs = append(lf.Programs, p)
}

// ReadLock reads a lock file. A missing file yields nil, nil.
func ReadLock(path string) (*LockFile, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var lf LockFile
	if err := toml.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	return &lf, nil
}

// WriteLock writes lf to path, creating parent directories.
func WriteLock(path string, lf *LockFile) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(lf); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return f.Close()
}
