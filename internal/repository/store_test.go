package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBlobRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return sqlxDB, mock, func() {
		sqlxDB.Close()
		db.Close()
	}
}

func exerciseStore(t *testing.T, store Store) {
	ctx := context.Background()

	value, err := store.Load(ctx, KeyGlobalData)
	require.NoError(t, err)
	assert.Nil(t, value)

	require.NoError(t, store.Save(ctx, KeyGlobalData, []byte(`{"header":{}}`)))
	value, err = store.Load(ctx, KeyGlobalData)
	require.NoError(t, err)
	assert.JSONEq(t, `{"header":{}}`, string(value))

	require.NoError(t, store.Clear(ctx, KeyGlobalData))
	value, err = store.Load(ctx, KeyGlobalData)
	require.NoError(t, err)
	assert.Nil(t, value)

	require.NoError(t, store.Save(ctx, KeyGlobalData, []byte(`{}`)))
	require.NoError(t, store.Save(ctx, SessionKey("autumn"), []byte(`{"sessions":[]}`)))
	require.NoError(t, store.ClearAll(ctx))
	for _, key := range []string{KeyGlobalData, SessionKey("autumn")} {
		value, err = store.Load(ctx, key)
		require.NoError(t, err)
		assert.Nil(t, value, key)
	}
	assert.True(t, store.IsAuthenticated())
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	store := NewMemoryStore()
	payload := []byte("abc")
	require.NoError(t, store.Save(context.Background(), "k", payload))
	payload[0] = 'x'

	value, err := store.Load(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(value))
	assert.Equal(t, []string{"k"}, store.Keys("k"))
}

func TestFileStore(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	exerciseStore(t, store)
}

func TestFileStoreHonoursContext(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, store.Save(ctx, "k", []byte("{}")), context.Canceled)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "session_L3 info", SessionKey(" L3 info "))
	at := time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, "backup_autumn_1725264000", BackupKey("autumn", at))
}

func TestPostgresStoreLoad(t *testing.T) {
	db, mock, cleanup := newBlobRepoMock(t)
	defer cleanup()
	store := NewPostgresStore(db)

	mock.ExpectQuery("SELECT value FROM project_blobs").
		WithArgs(KeyGlobalData).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte(`{"teachers":[]}`)))

	value, err := store.Load(context.Background(), KeyGlobalData)
	require.NoError(t, err)
	assert.JSONEq(t, `{"teachers":[]}`, string(value))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreLoadMissing(t *testing.T) {
	db, mock, cleanup := newBlobRepoMock(t)
	defer cleanup()
	store := NewPostgresStore(db)

	mock.ExpectQuery("SELECT value FROM project_blobs").
		WithArgs("session_none").
		WillReturnError(sql.ErrNoRows)

	value, err := store.Load(context.Background(), "session_none")
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestPostgresStoreSave(t *testing.T) {
	db, mock, cleanup := newBlobRepoMock(t)
	defer cleanup()
	store := NewPostgresStore(db)

	mock.ExpectExec("INSERT INTO project_blobs").
		WithArgs(KeyGlobalData, []byte(`{}`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, store.Save(context.Background(), KeyGlobalData, []byte(`{}`)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreClearAndKeys(t *testing.T) {
	db, mock, cleanup := newBlobRepoMock(t)
	defer cleanup()
	store := NewPostgresStore(db)

	mock.ExpectExec("DELETE FROM project_blobs").
		WithArgs(KeyLastActiveSession).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT key FROM project_blobs").
		WithArgs("backup_%").
		WillReturnRows(sqlmock.NewRows([]string{"key"}).AddRow("backup_autumn_2").AddRow("backup_autumn_1"))

	mock.ExpectExec("DELETE FROM project_blobs").
		WithArgs().
		WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, store.Clear(context.Background(), KeyLastActiveSession))
	keys, err := store.Keys(context.Background(), "backup_")
	require.NoError(t, err)
	assert.Equal(t, []string{"backup_autumn_2", "backup_autumn_1"}, keys)
	require.NoError(t, store.ClearAll(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStoreWithoutClient(t *testing.T) {
	store := NewRedisStore(nil, "", nil)
	assert.Equal(t, "edt:global_data", store.Key(KeyGlobalData))
	assert.False(t, store.IsAuthenticated())

	value, err := store.Load(context.Background(), KeyGlobalData)
	require.NoError(t, err)
	assert.Nil(t, value)
	assert.Error(t, store.Save(context.Background(), KeyGlobalData, []byte("{}")))
	assert.NoError(t, store.Clear(context.Background(), KeyGlobalData))
	assert.NoError(t, store.ClearAll(context.Background()))
	assert.NoError(t, store.Close())
}
