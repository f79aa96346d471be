package ledger

import "fmt"

// SetSchemaVersionForTest overwrites the database's user_version.
func (s *Store) SetSchemaVersionForTest(version int) error {
	_, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", version))
	return err
}
