package store

import (
	"database/sql"
)

const importKeyPrefix = "import:"

// SetMetadata upserts a key-value pair in the metadata table.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.exec(
		`INSERT INTO metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

// GetMetadata returns the value for a metadata key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.queryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// GetImportedFileHash returns the SHA-256 recorded for an imported test file,
// or empty string if the file was never imported.
func (s *Store) GetImportedFileHash(name string) (string, error) {
	return s.GetMetadata(importKeyPrefix + name)
}

// SetImportedFileHash records the SHA-256 of an imported test file.
func (s *Store) SetImportedFileHash(name, hash string) error {
	return s.SetMetadata(importKeyPrefix+name, hash)
}
