// Package manifest handles cool.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the manifest file looked up next to the program.
const FileName = "cool.toml"

// Manifest represents a cool.toml project configuration.
type Manifest struct {
	Project     Project     `toml:"project" json:"project"`
	Diagnostics Diagnostics `toml:"diagnostics" json:"diagnostics"`
	Output      Output      `toml:"output" json:"output"`

	// Dir is the directory containing the cool.toml file (set at load time).
	Dir string `toml:"-" json:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name" json:"name"`
	Version string `toml:"version" json:"version"`
	Main    string `toml:"main" json:"main"`
}

// Diagnostics configures how errors are reported.
type Diagnostics struct {
	// KeepGoing reports every error instead of stopping at the first one.
	KeepGoing bool `toml:"keep-going" json:"keep-going"`
	// MaxErrors caps the errors reported with keep-going; 0 means no cap.
	MaxErrors int `toml:"max-errors" json:"max-errors"`
}

// Output configures what a successful run writes.
type Output struct {
	Tokens   bool   `toml:"tokens" json:"tokens"`
	Snapshot string `toml:"snapshot" json:"snapshot"`
	Index    string `toml:"index" json:"index"`
}

// Load parses a cool.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	if err := Validate(&m); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a cool.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// MaxErrors returns how many errors a run may report before stopping.
// 0 means no limit.
func (m *Manifest) MaxErrors() int {
	if !m.Diagnostics.KeepGoing {
		return 1
	}
	return m.Diagnostics.MaxErrors
}

// resolve makes a configured path absolute relative to the manifest.
func (m *Manifest) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// MainPath returns the program file named by [project] main, if any.
func (m *Manifest) MainPath() string {
	return m.resolve(m.Project.Main)
}

// SnapshotPath returns where the CBOR class table goes, or "".
func (m *Manifest) SnapshotPath() string {
	return m.resolve(m.Output.Snapshot)
}

// IndexPath returns where the SQLite symbol index goes, or "".
func (m *Manifest) IndexPath() string {
	return m.resolve(m.Output.Index)
}

// StateDir returns the path to the .cool directory.
func (m *Manifest) StateDir() string {
	return filepath.Join(m.Dir, ".cool")
}

// LockFilePath returns the path to .cool/lock.toml.
func (m *Manifest) LockFilePath() string {
	return filepath.Join(m.StateDir(), "lock.toml")
}
