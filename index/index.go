// Package index persists a finished class table to SQLite so editors and
// other tools can query classes and features without re-running analysis.
package index

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/cool/compiler/semant"
)

var log = commonlog.GetLogger("coolc.index")

// ErrClassNotFound indicates the requested class isn't in the index.
var ErrClassNotFound = errors.New("class not found")

const schema = `
CREATE TABLE IF NOT EXISTS classes (
	name   TEXT PRIMARY KEY,
	parent TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS features (
	class TEXT NOT NULL,
	name  TEXT NOT NULL,
	kind  TEXT NOT NULL,
	type  TEXT NOT NULL,
	label TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (class, name)
);
CREATE TABLE IF NOT EXISTS params (
	class  TEXT NOT NULL,
	method TEXT NOT NULL,
	pos    INTEGER NOT NULL,
	name   TEXT NOT NULL,
	type   TEXT NOT NULL,
	PRIMARY KEY (class, method, pos)
);
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Store is a SQLite-backed symbol index.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open creates or opens the index database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save replaces the indexed class table with snap. source names the
// program the snapshot was taken from.
func (s *Store) Save(source string, snap *semant.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"params", "features", "classes", "meta"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	for _, c := range snap.Classes {
		if _, err := tx.Exec("INSERT INTO classes (name, parent) VALUES (?, ?)", c.Name, c.Parent); err != nil {
			return fmt.Errorf("saving class %s: %w", c.Name, err)
		}
		for _, f := range c.Features {
			_, err := tx.Exec(
				"INSERT INTO features (class, name, kind, type, label) VALUES (?, ?, ?, ?, ?)",
				c.Name, f.Name, f.Kind, f.Type, f.Label,
			)
			if err != nil {
				return fmt.Errorf("saving feature %s.%s: %w", c.Name, f.Name, err)
			}
			for i, p := range f.Params {
				_, err := tx.Exec(
					"INSERT INTO params (class, method, pos, name, type) VALUES (?, ?, ?, ?, ?)",
					c.Name, f.Name, i, p.Name, p.Type,
				)
				if err != nil {
					return fmt.Errorf("saving parameter %s of %s.%s: %w", p.Name, c.Name, f.Name, err)
				}
			}
		}
	}

	if _, err := tx.Exec("INSERT INTO meta (key, value) VALUES ('source', ?)", source); err != nil {
		return fmt.Errorf("saving source: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing index: %w", err)
	}
	log.Infof("indexed %d classes from %s into %s", len(snap.Classes), source, s.path)
	return nil
}

// Source returns the program name recorded by the last Save.
func (s *Store) Source() (string, error) {
	var source string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = 'source'").Scan(&source)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("querying source: %w", err)
	}
	return source, nil
}

// ClassNames returns the indexed class names, sorted.
func (s *Store) ClassNames() ([]string, error) {
	rows, err := s.db.Query("SELECT name FROM classes ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("querying classes: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning class: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Class loads one class with its features and parameters.
func (s *Store) Class(name string) (semant.ClassSnapshot, error) {
	c := semant.ClassSnapshot{Name: name}
	err := s.db.QueryRow("SELECT parent FROM classes WHERE name = ?", name).Scan(&c.Parent)
	if errors.Is(err, sql.ErrNoRows) {
		return c, fmt.Errorf("%w: %s", ErrClassNotFound, name)
	}
	if err != nil {
		return c, fmt.Errorf("querying class %s: %w", name, err)
	}

	c.Features, err = s.features(name)
	return c, err
}

func (s *Store) features(class string) ([]semant.FeatureSnapshot, error) {
	rows, err := s.db.Query(
		"SELECT name, kind, type, label FROM features WHERE class = ? ORDER BY name", class)
	if err != nil {
		return nil, fmt.Errorf("querying features of %s: %w", class, err)
	}
	var features []semant.FeatureSnapshot
	for rows.Next() {
		var f semant.FeatureSnapshot
		if err := rows.Scan(&f.Name, &f.Kind, &f.Type, &f.Label); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning feature: %w", err)
		}
		features = append(features, f)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range features {
		if features[i].Kind != semant.FeatureMethod {
			continue
		}
		features[i].Params, err = s.params(class, features[i].Name)
		if err != nil {
			return nil, err
		}
	}
	return features, nil
}

func (s *Store) params(class, method string) ([]semant.ParamSnapshot, error) {
	rows, err := s.db.Query(
		"SELECT name, type FROM params WHERE class = ? AND method = ? ORDER BY pos", class, method)
	if err != nil {
		return nil, fmt.Errorf("querying parameters of %s.%s: %w", class, method, err)
	}
	defer rows.Close()

	var params []semant.ParamSnapshot
	for rows.Next() {
		var p semant.ParamSnapshot
		if err := rows.Scan(&p.Name, &p.Type); err != nil {
			return nil, fmt.Errorf("scanning parameter: %w", err)
		}
		params = append(params, p)
	}
	return params, rows.Err()
}

// Snapshot reloads the whole indexed class table.
func (s *Store) Snapshot() (*semant.Snapshot, error) {
	names, err := s.ClassNames()
	if err != nil {
		return nil, err
	}
	snap := &semant.Snapshot{}
	for _, name := range names {
		c, err := s.Class(name)
		if err != nil {
			return nil, err
		}
		snap.Classes = append(snap.Classes, c)
	}
	return snap, nil
}

// MethodsByLabel maps every indexed method label to its class.
func (s *Store) MethodsByLabel() (map[string]string, error) {
	rows, err := s.db.Query("SELECT label, class FROM features WHERE kind = ?", semant.FeatureMethod)
	if err != nil {
		return nil, fmt.Errorf("querying methods: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var label, class string
		if err := rows.Scan(&label, &class); err != nil {
			return nil, fmt.Errorf("scanning method: %w", err)
		}
		out[label] = class
	}
	return out, rows.Err()
}
