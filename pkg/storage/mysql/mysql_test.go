package mysql

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/require"

	"github.com/energia/resourcecatalog/pkg/storage"
)

func TestPrepareDSN(t *testing.T) {
	dsn, err := PrepareDSN("root:secret@tcp(localhost:3306)/catalog", "", "")
	require.NoError(t, err)

	cfg, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	require.True(t, cfg.ParseTime)
	require.Equal(t, "root", cfg.User)
	require.Equal(t, "secret", cfg.Passwd)
	require.Equal(t, "catalog", cfg.DBName)

	dsn, err = PrepareDSN("root:secret@tcp(localhost:3306)/catalog", "catalog", "other")
	require.NoError(t, err)

	cfg, err = mysql.ParseDSN(dsn)
	require.NoError(t, err)
	require.Equal(t, "catalog", cfg.User)
	require.Equal(t, "other", cfg.Passwd)

	_, err = PrepareDSN("not a dsn", "", "")
	require.Error(t, err)
}

func TestHandleSQLError(t *testing.T) {
	t.Run("duplicate_entry_value_error_returns_collision", func(t *testing.T) {
		duplicateKeyError := &mysql.MySQLError{
			Number:  1062,
			Message: "Duplicate entry '' for key ''",
		}
		err := HandleSQLError(duplicateKeyError)
		require.ErrorIs(t, err, storage.ErrCollision)
	})

	t.Run("sql.ErrNoRows_is_converted_to_storage.ErrNotFound_error", func(t *testing.T) {
		err := HandleSQLError(sql.ErrNoRows)
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("other_errors_are_wrapped", func(t *testing.T) {
		cause := errors.New("bad connection")
		require.ErrorIs(t, HandleSQLError(cause), cause)
	})
}
