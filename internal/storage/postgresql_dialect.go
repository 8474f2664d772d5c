package storage

import (
	"fmt"

	"github.com/lib/pq"

	"github.com/allisson/gatekeeper/internal/errors"
)

type postgresDialect struct{}

func (postgresDialect) getQuery() string {
	return `SELECT entry_value FROM kv_entries WHERE entry_key = $1`
}

func (postgresDialect) lockQuery() string {
	return `SELECT entry_value FROM kv_entries WHERE entry_key = $1 FOR UPDATE`
}

func (postgresDialect) insertQuery() string {
	return `INSERT INTO kv_entries (entry_key, entry_value, updated_at) VALUES ($1, $2, NOW())`
}

func (postgresDialect) upsertQuery() string {
	return `INSERT INTO kv_entries (entry_key, entry_value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (entry_key) DO UPDATE SET entry_value = EXCLUDED.entry_value, updated_at = NOW()`
}

func (postgresDialect) scanQuery(limit int) string {
	query := `SELECT entry_key, entry_value FROM kv_entries
		WHERE entry_key LIKE $1 AND entry_key >= $2 ORDER BY entry_key`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	return query
}

func (postgresDialect) isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
