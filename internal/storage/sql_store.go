package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/allisson/gatekeeper/internal/database"
	"github.com/allisson/gatekeeper/internal/errors"
)

// dialect holds the driver-specific SQL of the kv_entries table.
type dialect interface {
	getQuery() string
	lockQuery() string
	insertQuery() string
	upsertQuery() string
	scanQuery(limit int) string
	isUniqueViolation(err error) bool
}

// SQLStore is a Store persisted in the kv_entries table of PostgreSQL or MySQL.
type SQLStore struct {
	db        *sql.DB
	txManager database.TxManager
	dialect   dialect
}

// NewSQLStore creates a SQLStore for the given driver ("postgres" or "mysql").
func NewSQLStore(db *sql.DB, txManager database.TxManager, driver string) (*SQLStore, error) {
	var d dialect
	switch driver {
	case "postgres":
		d = postgresDialect{}
	case "mysql":
		d = mysqlDialect{}
	default:
		return nil, fmt.Errorf("unsupported sql storage driver: %s", driver)
	}
	return &SQLStore{db: db, txManager: txManager, dialect: d}, nil
}

// Get implements Store.
func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, error) {
	querier := database.GetTx(ctx, s.db)

	var value []byte
	err := querier.QueryRowContext(ctx, s.dialect.getQuery(), key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get kv entry")
	}
	return value, nil
}

// Put implements Store.
func (s *SQLStore) Put(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return ErrEmptyKey
	}
	querier := database.GetTx(ctx, s.db)
	if _, err := querier.ExecContext(ctx, s.dialect.upsertQuery(), key, value); err != nil {
		return errors.Wrap(err, "failed to put kv entry")
	}
	return nil
}

// Apply implements Store.
func (s *SQLStore) Apply(ctx context.Context, ops ...Op) error {
	if err := validateOps(ops); err != nil {
		return err
	}

	return s.txManager.WithTx(ctx, func(ctx context.Context) error {
		querier := database.GetTx(ctx, s.db)
		for _, op := range ops {
			if op.Expect != nil {
				if err := s.checkLocked(ctx, querier, op); err != nil {
					return err
				}
			}
			query := s.dialect.upsertQuery()
			if op.CreateOnly {
				query = s.dialect.insertQuery()
			}
			if _, err := querier.ExecContext(ctx, query, op.Key, op.Value); err != nil {
				if op.CreateOnly && s.dialect.isUniqueViolation(err) {
					return ErrKeyExists
				}
				return errors.Wrap(err, "failed to write kv entry")
			}
		}
		return nil
	})
}

// checkLocked reads the row under a write lock held until the transaction ends.
func (s *SQLStore) checkLocked(ctx context.Context, querier database.Querier, op Op) error {
	var current []byte
	err := querier.QueryRowContext(ctx, s.dialect.lockQuery(), op.Key).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return checkExpected(op, nil, false)
	}
	if err != nil {
		return errors.Wrap(err, "failed to lock kv entry")
	}
	return checkExpected(op, current, true)
}

// Scan implements Store.
func (s *SQLStore) Scan(
	ctx context.Context,
	prefix, start string,
	limit int,
	fn func(key string, value []byte) error,
) error {
	querier := database.GetTx(ctx, s.db)

	rows, err := querier.QueryContext(ctx, s.dialect.scanQuery(limit), escapeLike(prefix)+"%", start)
	if err != nil {
		return errors.Wrap(err, "failed to scan kv entries")
	}
	defer func() {
		_ = rows.Close()
	}()

	type entry struct {
		key   string
		value []byte
	}
	var entries []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.key, &e.value); err != nil {
			return errors.Wrap(err, "failed to scan kv entry")
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, "failed to iterate kv entries")
	}

	for _, e := range entries {
		if err := fn(e.key, e.value); err != nil {
			return err
		}
	}
	return nil
}

// Close implements Store.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
