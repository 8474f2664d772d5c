package storage

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/gatekeeper/internal/database"
)

func newMockSQLStore(t *testing.T, driver string) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s, err := NewSQLStore(db, database.NewTxManager(db), driver)
	require.NoError(t, err)
	return s, mock
}

func TestNewSQLStore_UnsupportedDriver(t *testing.T) {
	_, err := NewSQLStore(nil, nil, "sqlite")
	assert.Error(t, err)
}

func TestSQLStore_Get(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		s, mock := newMockSQLStore(t, "postgres")
		mock.ExpectQuery(`SELECT entry_value FROM kv_entries WHERE entry_key = \$1`).
			WithArgs("a").
			WillReturnRows(sqlmock.NewRows([]string{"entry_value"}).AddRow([]byte("one")))

		value, err := s.Get(context.Background(), "a")
		require.NoError(t, err)
		assert.Equal(t, []byte("one"), value)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		s, mock := newMockSQLStore(t, "mysql")
		mock.ExpectQuery(`SELECT entry_value FROM kv_entries WHERE entry_key = \?`).
			WithArgs("a").
			WillReturnError(sql.ErrNoRows)

		_, err := s.Get(context.Background(), "a")
		assert.ErrorIs(t, err, ErrKeyNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSQLStore_Put(t *testing.T) {
	s, mock := newMockSQLStore(t, "postgres")
	mock.ExpectExec(`ON CONFLICT \(entry_key\) DO UPDATE`).
		WithArgs("a", []byte("one")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Put(context.Background(), "a", []byte("one")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_Apply(t *testing.T) {
	t.Run("commits all ops", func(t *testing.T) {
		s, mock := newMockSQLStore(t, "mysql")
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO kv_entries`).
			WithArgs("entry/1", []byte("e1")).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`ON DUPLICATE KEY UPDATE`).
			WithArgs("head", []byte("1")).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := s.Apply(context.Background(),
			Op{Key: "entry/1", Value: []byte("e1"), CreateOnly: true},
			Op{Key: "head", Value: []byte("1")},
		)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("postgres unique violation rolls back", func(t *testing.T) {
		s, mock := newMockSQLStore(t, "postgres")
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO kv_entries`).
			WithArgs("entry/1", []byte("e1")).
			WillReturnError(&pq.Error{Code: "23505"})
		mock.ExpectRollback()

		err := s.Apply(context.Background(), Op{Key: "entry/1", Value: []byte("e1"), CreateOnly: true})
		assert.ErrorIs(t, err, ErrKeyExists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("mysql duplicate entry rolls back", func(t *testing.T) {
		s, mock := newMockSQLStore(t, "mysql")
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO kv_entries`).
			WithArgs("entry/1", []byte("e1")).
			WillReturnError(&mysql.MySQLError{Number: 1062})
		mock.ExpectRollback()

		err := s.Apply(context.Background(), Op{Key: "entry/1", Value: []byte("e1"), CreateOnly: true})
		assert.ErrorIs(t, err, ErrKeyExists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("expected value matches", func(t *testing.T) {
		s, mock := newMockSQLStore(t, "postgres")
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT entry_value FROM kv_entries WHERE entry_key = \$1 FOR UPDATE`).
			WithArgs("res/a").
			WillReturnRows(sqlmock.NewRows([]string{"entry_value"}).AddRow([]byte("v1")))
		mock.ExpectExec(`ON CONFLICT \(entry_key\) DO UPDATE`).
			WithArgs("res/a", []byte("v2")).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := s.Apply(context.Background(), Op{Key: "res/a", Value: []byte("v2"), Expect: []byte("v1")})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("expected value changed rolls back", func(t *testing.T) {
		s, mock := newMockSQLStore(t, "mysql")
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT entry_value FROM kv_entries WHERE entry_key = \? FOR UPDATE`).
			WithArgs("res/a").
			WillReturnRows(sqlmock.NewRows([]string{"entry_value"}).AddRow([]byte("newer")))
		mock.ExpectRollback()

		err := s.Apply(context.Background(), Op{Key: "res/a", Value: []byte("v2"), Expect: []byte("v1")})
		assert.ErrorIs(t, err, ErrKeyChanged)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty key", func(t *testing.T) {
		s, _ := newMockSQLStore(t, "postgres")
		assert.ErrorIs(t, s.Apply(context.Background(), Op{Key: ""}), ErrEmptyKey)
	})
}

func TestSQLStore_Scan(t *testing.T) {
	s, mock := newMockSQLStore(t, "postgres")
	mock.ExpectQuery(`SELECT entry_key, entry_value FROM kv_entries`).
		WithArgs(`audit\_log/%`, "audit_log/002").
		WillReturnRows(sqlmock.NewRows([]string{"entry_key", "entry_value"}).
			AddRow("audit_log/002", []byte{2}).
			AddRow("audit_log/003", []byte{3}))

	var keys []string
	err := s.Scan(context.Background(), "audit_log/", "audit_log/002", 2, func(key string, _ []byte) error {
		keys = append(keys, key)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"audit_log/002", "audit_log/003"}, keys)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `a\%b\_c\\d`, escapeLike(`a%b_c\d`))
}
