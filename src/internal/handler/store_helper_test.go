package handler

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/admi-n/nullshot-auditor/src/internal/store"
)

func newStore(t *testing.T) *store.SQLStore {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	st, err := store.NewSQLStore(context.Background(), db, "sqlite")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}
