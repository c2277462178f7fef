package repositories

import (
	"database/sql"
	"fmt"

	"github.com/desertthunder/visionary/internal/shared"
)

// DBTX is the query surface shared by [sql.DB] and [sql.Tx].
//
// Repositories bound to a transaction run every statement on that transaction, which matters for
// single-connection in-memory databases where a second statement outside it would wait forever.
type DBTX interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// NextSequence increments and returns the next sequence number for the given table.
//
// Callers that need the counter to stay consistent with the inserted row pass the transaction
// performing the insert.
func NextSequence(q DBTX, table string) (int, error) {
	sequenceTable := table + "_sequence"

	if _, err := q.Exec(fmt.Sprintf("UPDATE %s SET value = value + 1 WHERE id = 1", sequenceTable)); err != nil {
		return 0, fmt.Errorf("%w: failed to increment sequence: %w", shared.ErrPersistence, err)
	}

	var sequence int
	if err := q.QueryRow(fmt.Sprintf("SELECT value FROM %s WHERE id = 1", sequenceTable)).Scan(&sequence); err != nil {
		return 0, fmt.Errorf("%w: failed to get sequence value: %w", shared.ErrPersistence, err)
	}

	return sequence, nil
}

// softDeleteState distinguishes a deleted record from one that never existed.
//
// It returns nil when the row exists (deleted or not) and [shared.ErrNotFound] otherwise.
func softDeleteState(q DBTX, table, entity, id string) error {
	var deletedAt sql.NullTime
	err := q.QueryRow(fmt.Sprintf("SELECT deleted_at FROM %s WHERE id = ?", table), id).Scan(&deletedAt)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: %s %s", shared.ErrNotFound, entity, id)
	}
	if err != nil {
		return fmt.Errorf("%w: failed to look up %s: %w", shared.ErrPersistence, entity, err)
	}
	return nil
}

func affected(result sql.Result) (int64, error) {
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: failed to get affected rows: %w", shared.ErrPersistence, err)
	}
	return rows, nil
}
