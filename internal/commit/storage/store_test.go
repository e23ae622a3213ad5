package storage

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bitstore/internal/blob"
	"bitstore/internal/commit"
	"bitstore/internal/errors"
)

func setupTestDB(t *testing.T) (*badger.DB, func()) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil // Disable logging for tests

	db, err := badger.Open(opts)
	require.NoError(t, err)

	return db, func() { db.Close() }
}

func addOp(t *testing.T, path, content string) commit.Operation {
	t.Helper()
	compressed, err := blob.Compress([]byte(content))
	require.NoError(t, err)
	return commit.Operation{
		Type:    commit.OpAdd,
		Path:    path,
		Content: base64.StdEncoding.EncodeToString(compressed),
	}
}

func deleteOp(path string) commit.Operation {
	return commit.Operation{Type: commit.OpDelete, Path: path}
}

func TestCommitStore(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	blobs, err := blob.NewDedupStore(db, 16)
	require.NoError(t, err)
	store := NewStore(db, blobs)

	t.Run("Build", func(t *testing.T) {
		stamp := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		c, summary, err := store.Build(&commit.BuildRequest{
			Author:    "ada",
			Email:     "ada@example.com",
			Message:   "first snapshot",
			Timestamp: stamp,
			Operations: []commit.Operation{
				addOp(t, "src/main.py", "print('hi')\n"),
				addOp(t, "README.md", "# project\n"),
				deleteOp("legacy/old.txt"),
			},
		})
		require.NoError(t, err)

		assert.Len(t, c.CommitHash, 40)
		assert.Equal(t, "ada", c.Author)
		assert.Len(t, c.Blobs, 2)
		assert.Equal(t, []string{"legacy/old.txt"}, c.DeletedPaths)
		assert.Equal(t, stamp, c.Timestamp)

		assert.Equal(t, []string{"src/main.py", "README.md"}, summary.Updated)
		assert.Equal(t, []string{"legacy/old.txt"}, summary.Deleted)
		assert.Empty(t, summary.Unchanged)
	})

	t.Run("IdenticalBuildsDiverge", func(t *testing.T) {
		// The same wall-clock second on both builds, so only the nonce
		// can tell them apart.
		stamp := time.Now().UTC()
		req := func() *commit.BuildRequest {
			return &commit.BuildRequest{
				Author:    "ada",
				Email:     "ada@example.com",
				Message:   "same message",
				Timestamp: stamp,
				Operations: []commit.Operation{
					addOp(t, "same.txt", "same content"),
				},
			}
		}

		first, _, err := store.Build(req())
		require.NoError(t, err)
		second, _, err := store.Build(req())
		require.NoError(t, err)

		// The nonce in the identity keeps replayed builds distinct.
		assert.NotEqual(t, first.CommitHash, second.CommitHash)
	})

	t.Run("DuplicatePathFirstWins", func(t *testing.T) {
		c, summary, err := store.Build(&commit.BuildRequest{
			Author:    "ada",
			Email:     "ada@example.com",
			Message:   "duplicate adds",
			Timestamp: time.Now().UTC(),
			Operations: []commit.Operation{
				addOp(t, "dup.txt", "first version"),
				addOp(t, "dup.txt", "second version"),
			},
		})
		require.NoError(t, err)

		require.Len(t, c.Blobs, 1)
		assert.Equal(t, []string{"dup.txt"}, summary.Updated)

		stored, err := blobs.Get(c.Blobs[0])
		require.NoError(t, err)
		assert.Equal(t, []byte("first version"), stored.Content)
	})

	t.Run("MissingFields", func(t *testing.T) {
		now := time.Now().UTC()
		for _, req := range []*commit.BuildRequest{
			{Email: "a@b.c", Message: "m", Timestamp: now},
			{Author: "a", Message: "m", Timestamp: now},
			{Author: "a", Email: "a@b.c", Timestamp: now},
			{Author: "a", Email: "a@b.c", Message: "m"},
		} {
			_, _, err := store.Build(req)
			require.Error(t, err)
			assert.True(t, errors.IsKind(err, errors.KindMissingRequiredField))
		}
	})

	t.Run("UnknownOperation", func(t *testing.T) {
		_, _, err := store.Build(&commit.BuildRequest{
			Author:    "a",
			Email:     "a@b.c",
			Message:   "m",
			Timestamp: time.Now().UTC(),
			Operations: []commit.Operation{
				{Type: "RENAME", Path: "x.txt"},
			},
		})
		require.Error(t, err)
		assert.True(t, errors.IsKind(err, errors.KindValidation))
	})

	t.Run("DeleteWithoutPath", func(t *testing.T) {
		_, _, err := store.Build(&commit.BuildRequest{
			Author:     "a",
			Email:      "a@b.c",
			Message:    "m",
			Timestamp:  time.Now().UTC(),
			Operations: []commit.Operation{{Type: commit.OpDelete}},
		})
		require.Error(t, err)
		assert.True(t, errors.IsKind(err, errors.KindMissingRequiredField))
	})

	t.Run("BadPayloadRejectsBuild", func(t *testing.T) {
		before, err := store.List()
		require.NoError(t, err)

		_, _, err = store.Build(&commit.BuildRequest{
			Author:    "ada",
			Email:     "ada@example.com",
			Message:   "broken upload",
			Timestamp: time.Now().UTC(),
			Operations: []commit.Operation{
				addOp(t, "good.txt", "fine"),
				{
					Type:    commit.OpAdd,
					Path:    "bad.bin",
					Content: base64.StdEncoding.EncodeToString([]byte("not compressed data")),
				},
			},
		})
		require.Error(t, err)
		assert.True(t, errors.IsKind(err, errors.KindPartialCommitRejected))

		// No commit row was written.
		after, err := store.List()
		require.NoError(t, err)
		assert.Len(t, after, len(before))
	})

	t.Run("GetAndList", func(t *testing.T) {
		c, _, err := store.Build(&commit.BuildRequest{
			Author:     "grace",
			Email:      "grace@example.com",
			Message:    "lookup me",
			Timestamp:  time.Now().UTC(),
			Operations: []commit.Operation{addOp(t, "g.txt", "g")},
		})
		require.NoError(t, err)

		got, err := store.Get(c.CommitHash)
		require.NoError(t, err)
		assert.Equal(t, c.CommitHash, got.CommitHash)
		assert.Equal(t, c.Blobs, got.Blobs)

		_, err = store.Get("0000000000000000000000000000000000000000")
		require.Error(t, err)
		assert.True(t, errors.IsKind(err, errors.KindNotFound))

		list, err := store.List()
		require.NoError(t, err)
		found := false
		for _, item := range list {
			if item.CommitHash == c.CommitHash {
				found = true
			}
		}
		assert.True(t, found)
	})

	t.Run("FindByAuthor", func(t *testing.T) {
		commits, err := store.FindByAuthor("grace")
		require.NoError(t, err)
		require.NotEmpty(t, commits)
		for _, c := range commits {
			assert.Equal(t, "grace", c.Author)
		}

		_, err = store.FindByAuthor("")
		require.Error(t, err)
	})
}
