package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryDSN(t *testing.T) string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
}

func TestBuildConnectionString(t *testing.T) {
	assert.Equal(t,
		"file:x?mode=memory&_pragma=temp_store(MEMORY)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
		buildConnectionString("file:x?mode=memory", ProfileMemory))

	assert.Equal(t,
		"/tmp/a.db?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=temp_store(MEMORY)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
		buildConnectionString("/tmp/a.db", ProfileStandard))
}

func TestNew_MemoryProfileAndMigrate(t *testing.T) {
	db, err := New(Config{Path: memoryDSN(t), Name: "journal"})
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, ProfileMemory, db.Profile())
	assert.Equal(t, "journal", db.Name())
	require.NoError(t, db.Migrate())
	require.NoError(t, db.Migrate(), "schema is idempotent")

	var count int
	err = db.Conn().QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('trades','equity_snapshots')").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.NoError(t, db.QuickCheck(context.Background()))
}

func TestNew_FileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "test.db")
	db, err := New(Config{Path: path, Name: "unknown"})
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, ProfileStandard, db.Profile())
	assert.NoError(t, db.Migrate(), "unknown schema is a no-op")
}

func TestNew_EmptyPath(t *testing.T) {
	_, err := New(Config{Name: "journal"})
	assert.Error(t, err)
}

func TestWithTransaction(t *testing.T) {
	db, err := New(Config{Path: memoryDSN(t), Name: "tx"})
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Conn().Exec("CREATE TABLE items (v INTEGER)")
	require.NoError(t, err)

	count := func() int {
		var n int
		require.NoError(t, db.Conn().QueryRow("SELECT COUNT(*) FROM items").Scan(&n))
		return n
	}

	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO items VALUES (1)")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count())

	boom := errors.New("boom")
	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, _ = tx.Exec("INSERT INTO items VALUES (2)")
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, count())

	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, _ = tx.Exec("INSERT INTO items VALUES (3)")
		panic("bad")
	})
	assert.ErrorContains(t, err, "panic in transaction")
	assert.Equal(t, 1, count())

	assert.Error(t, WithTransaction(nil, func(tx *sql.Tx) error { return nil }))
}
