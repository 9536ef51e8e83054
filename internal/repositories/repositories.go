// package repositories provides the sqlite anomaly journal.
package repositories

import (
	"database/sql"
	"fmt"
)

// nextSequence increments and returns the next sequence number for table inside tx.
//
// Sequence numbers order journal entries independently of their uuids and timestamps.
func nextSequence(tx *sql.Tx, table string) (int64, error) {
	sequenceTable := table + "_sequence"

	if _, err := tx.Exec(fmt.Sprintf("UPDATE %s SET value = value + 1 WHERE id = 1", sequenceTable)); err != nil {
		return 0, fmt.Errorf("failed to increment sequence: %w", err)
	}

	var sequence int64
	if err := tx.QueryRow(fmt.Sprintf("SELECT value FROM %s WHERE id = 1", sequenceTable)).Scan(&sequence); err != nil {
		return 0, fmt.Errorf("failed to get sequence value: %w", err)
	}

	return sequence, nil
}
