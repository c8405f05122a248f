package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/quadmatch/internal/ir"
)

func TestOpen_AppliesPragmas(t *testing.T) {
	s := createTestStore(t)

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("synchronous", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")

	s1, err := Open(path)
	require.NoError(t, err)
	_, err = s1.AddQuads(context.Background(), []ir.Quad{triple("a", "p", ex("b"))})
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path, WithMaxOpenConns(1))
	require.NoError(t, err)
	defer s2.Close()

	n, err := s2.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "data survives reopen")
}

func TestStore_CloseNil(t *testing.T) {
	var s Store
	assert.NoError(t, s.Close())
}

func TestOpen_PragmasOnEveryPooledConnection(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// Hold several connections at once so the pool has to open new ones.
	conns := make([]*sql.Conn, DefaultMaxOpenConns)
	for i := range conns {
		c, err := s.DB().Conn(ctx)
		require.NoError(t, err)
		defer c.Close()
		conns[i] = c
	}
	for i, c := range conns {
		var timeout int
		require.NoError(t, c.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout))
		assert.Equal(t, 5000, timeout, "connection %d", i)

		var fk int
		require.NoError(t, c.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk))
		assert.Equal(t, 1, fk, "connection %d", i)
	}
}

func TestOpen_CreatesIndexes(t *testing.T) {
	s := createTestStore(t)

	rs, err := s.DB().Query("SELECT name FROM sqlite_master WHERE type = 'index' AND tbl_name = 'quads' AND name LIKE 'idx_%' ORDER BY name")
	require.NoError(t, err)
	defer rs.Close()
	var names []string
	for rs.Next() {
		var name string
		require.NoError(t, rs.Scan(&name))
		names = append(names, name)
	}
	require.NoError(t, rs.Err())
	assert.Equal(t, []string{"idx_quads_gsp", "idx_quads_osp", "idx_quads_pos", "idx_quads_spo"}, names)
}
