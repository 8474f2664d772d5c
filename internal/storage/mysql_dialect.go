package storage

import (
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/allisson/gatekeeper/internal/errors"
)

type mysqlDialect struct{}

func (mysqlDialect) getQuery() string {
	return `SELECT entry_value FROM kv_entries WHERE entry_key = ?`
}

func (mysqlDialect) lockQuery() string {
	return `SELECT entry_value FROM kv_entries WHERE entry_key = ? FOR UPDATE`
}

func (mysqlDialect) insertQuery() string {
	return `INSERT INTO kv_entries (entry_key, entry_value, updated_at) VALUES (?, ?, NOW())`
}

func (mysqlDialect) upsertQuery() string {
	return `INSERT INTO kv_entries (entry_key, entry_value, updated_at) VALUES (?, ?, NOW())
		ON DUPLICATE KEY UPDATE entry_value = VALUES(entry_value), updated_at = NOW()`
}

func (mysqlDialect) scanQuery(limit int) string {
	query := `SELECT entry_key, entry_value FROM kv_entries
		WHERE entry_key LIKE ? AND entry_key >= ? ORDER BY entry_key`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	return query
}

func (mysqlDialect) isUniqueViolation(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == 1062
}
