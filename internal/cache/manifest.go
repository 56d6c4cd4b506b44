package cache

import (
	"database/sql"
	"strings"
)

// Manifest records, under a key derived from the *unresolved* provider
// arguments, the resolved column set and the table fingerprint that
// resolution produced. Portable deployments use it to reach frozen tables
// without re-discovering the vector universe from the (absent) sources.
type Manifest struct {
	Fingerprint string
	Columns     []string
}

func (s *Store) PutManifest(key string, m Manifest) error {
	_, err := s.db.Exec(`
		INSERT INTO manifests (key, fingerprint, columns)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO NOTHING
	`, key, m.Fingerprint, strings.Join(m.Columns, "\x1f"))
	return err
}

func (s *Store) GetManifest(key string) (*Manifest, bool, error) {
	var fingerprint, columns string
	err := s.db.QueryRow(`
		SELECT fingerprint, columns FROM manifests WHERE key = ?
	`, key).Scan(&fingerprint, &columns)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	m := &Manifest{Fingerprint: fingerprint}
	if columns != "" {
		m.Columns = strings.Split(columns, "\x1f")
	}
	return m, true, nil
}

// Portable reports whether the store is in frozen (portable) mode.
func (s *Store) Portable() bool {
	return s.portable
}
