package filegc

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-classroom/internal/db"
	"github.com/mind-engage/mindengage-classroom/internal/db/dbtest"
	"github.com/mind-engage/mindengage-classroom/internal/logging"
	"github.com/mind-engage/mindengage-classroom/internal/storage"
)

type brokenStore struct{ storage.BlobStore }

func (brokenStore) Delete(string) error { return errors.New("disk on fire") }

func TestKeysAndOrphans(t *testing.T) {
	keys := Keys("", "/api/uploads/a.png", "https://x.test/api/uploads/a.png", "https://cdn.test/b.png", "/api/uploads/c.pdf")
	assert.Equal(t, []string{"a.png", "c.pdf"}, keys)

	got := Orphans([]string{"/api/uploads/a", "/api/uploads/b", ""}, []string{"/api/uploads/b"})
	assert.Equal(t, []string{"/api/uploads/a"}, got)
}

func TestSweepDeletesQueuedFiles(t *testing.T) {
	ctx := context.Background()
	blobs, err := storage.NewFSStore(t.TempDir())
	require.NoError(t, err)
	_, err = blobs.Put("papers/questions/q.png", strings.NewReader("img"))
	require.NoError(t, err)

	ob := NewSQLOutbox(dbtest.OpenSQLite(t))
	require.NoError(t, ob.Enqueue(ctx, "paper updated", "papers/questions/q.png", "already/gone.png"))

	sw := NewSweeper(ob, blobs, logging.Discard(), 0)
	deleted, failed, err := sw.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
	assert.Equal(t, 0, failed)

	_, err = blobs.Get("papers/questions/q.png")
	assert.True(t, errors.Is(err, storage.ErrNotExist))

	pending, err := ob.Pending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSweepRetriesThenGivesUp(t *testing.T) {
	ctx := context.Background()
	ob := NewSQLOutbox(dbtest.OpenSQLite(t))
	require.NoError(t, ob.Enqueue(ctx, "paper deleted", "x.pdf"))

	sw := NewSweeper(ob, brokenStore{}, logging.Discard(), 0)
	sw.maxAttempts = 2

	_, failed, err := sw.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, failed)

	pending, err := ob.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.Equal(t, "disk on fire", pending[0].LastError)

	_, _, err = sw.SweepOnce(ctx)
	require.NoError(t, err)
	pending, err = ob.Pending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestEnqueueTxRollsBackWithOwner(t *testing.T) {
	ctx := context.Background()
	d := dbtest.OpenSQLite(t)
	ob := NewSQLOutbox(d)

	err := db.WithTx(ctx, d, func(tx *sql.Tx) error {
		require.NoError(t, EnqueueTx(ctx, tx, "paper deleted", "a.png"))
		return io.ErrUnexpectedEOF
	})
	require.Error(t, err)

	pending, err := ob.Pending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
