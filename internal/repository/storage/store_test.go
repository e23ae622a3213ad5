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
	commitStorage "bitstore/internal/commit/storage"
	"bitstore/internal/errors"
	"bitstore/internal/repository"
	"bitstore/internal/storage"
)

func setupTestDB(t *testing.T) (*badger.DB, func()) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil // Disable logging for tests

	db, err := badger.Open(opts)
	require.NoError(t, err)

	return db, func() { db.Close() }
}

type fixture struct {
	blobs   *blob.DedupStore
	commits *commitStorage.Store
	repos   *Store
	clock   time.Time
}

func setupStores(t *testing.T, db *badger.DB) *fixture {
	t.Helper()
	blobs, err := blob.NewDedupStore(db, 16)
	require.NoError(t, err)
	commits := commitStorage.NewStore(db, blobs)
	return &fixture{
		blobs:   blobs,
		commits: commits,
		repos:   NewStore(db, commits, blobs),
		clock:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

// tick hands out strictly increasing whole-second timestamps, so
// ordering by timestamp is deterministic.
func (f *fixture) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
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

func buildCommit(t *testing.T, f *fixture, parent string, ops ...commit.Operation) *commit.Commit {
	t.Helper()
	c, _, err := f.commits.Build(&commit.BuildRequest{
		Author:     "ada",
		Email:      "ada@example.com",
		Message:    "test commit",
		Timestamp:  f.tick(),
		ParentHash: parent,
		Operations: ops,
	})
	require.NoError(t, err)
	return c
}

func newRepo(t *testing.T, f *fixture, name string) *repository.Repository {
	t.Helper()
	repo := &repository.Repository{Name: name, Author: "ada"}
	require.NoError(t, f.repos.Create(repo))
	return repo
}

func TestRepositoryStore(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	f := setupStores(t, db)

	t.Run("Create", func(t *testing.T) {
		repo := newRepo(t, f, "demo")
		assert.NotEmpty(t, repo.ID)
		assert.False(t, repo.CreatedAt.IsZero())
		assert.Empty(t, repo.CommitHashes)
		assert.Empty(t, repo.Blobs)

		err := f.repos.Create(&repository.Repository{Author: "ada"})
		require.Error(t, err)
		assert.True(t, errors.IsKind(err, errors.KindMissingRequiredField))

		err = f.repos.Create(&repository.Repository{Name: "nameless-owner"})
		require.Error(t, err)
		assert.True(t, errors.IsKind(err, errors.KindMissingRequiredField))
	})

	t.Run("GetListDelete", func(t *testing.T) {
		repo := newRepo(t, f, "lifecycle")

		got, err := f.repos.Get(repo.ID)
		require.NoError(t, err)
		assert.Equal(t, "lifecycle", got.Name)

		list, err := f.repos.List()
		require.NoError(t, err)
		assert.NotEmpty(t, list)

		require.NoError(t, f.repos.Delete(repo.ID))
		_, err = f.repos.Get(repo.ID)
		require.Error(t, err)
		assert.True(t, errors.IsKind(err, errors.KindNotFound))

		err = f.repos.Delete(repo.ID)
		require.Error(t, err)
		assert.True(t, errors.IsKind(err, errors.KindNotFound))
	})

	t.Run("FindByAuthor", func(t *testing.T) {
		newRepo(t, f, "by-author")
		repos, err := f.repos.FindByAuthor("ada")
		require.NoError(t, err)
		assert.NotEmpty(t, repos)

		repos, err = f.repos.FindByAuthor("nobody")
		require.NoError(t, err)
		assert.Empty(t, repos)
	})

	t.Run("AttachCommit", func(t *testing.T) {
		repo := newRepo(t, f, "attach")
		c := buildCommit(t, f, "",
			addOp(t, "src/a.py", "a = 1\n"),
			addOp(t, "src/b.py", "b = 2\n"),
		)

		updated, err := f.repos.AttachCommit(repo.ID, c)
		require.NoError(t, err)
		assert.Equal(t, []string{c.CommitHash}, updated.CommitHashes)
		assert.Len(t, updated.Blobs, 2)

		// Attaching the same commit again is a no-op.
		again, err := f.repos.AttachCommit(repo.ID, c)
		require.NoError(t, err)
		assert.Equal(t, updated.CommitHashes, again.CommitHashes)
		assert.Equal(t, updated.Blobs, again.Blobs)
	})

	t.Run("LiveSetAcrossCommits", func(t *testing.T) {
		repo := newRepo(t, f, "live-set")

		first := buildCommit(t, f, "",
			addOp(t, "src/a.py", "a = 1\n"),
			addOp(t, "src/b.py", "b = 2\n"),
		)
		_, err := f.repos.AttachCommit(repo.ID, first)
		require.NoError(t, err)

		second := buildCommit(t, f, first.CommitHash,
			addOp(t, "src/c.py", "c = 3\n"),
			commit.Operation{Type: commit.OpDelete, Path: "src/a.py"},
		)
		updated, err := f.repos.AttachCommit(repo.ID, second)
		require.NoError(t, err)

		paths := map[string]bool{}
		for _, k := range updated.Blobs {
			paths[k.Path] = true
		}
		assert.Equal(t, map[string]bool{"src/b.py": true, "src/c.py": true}, paths)
	})

	t.Run("Head", func(t *testing.T) {
		repo := newRepo(t, f, "head")

		head, err := f.repos.Head(repo)
		require.NoError(t, err)
		assert.Nil(t, head)

		first := buildCommit(t, f, "", addOp(t, "one.txt", "1"))
		_, err = f.repos.AttachCommit(repo.ID, first)
		require.NoError(t, err)
		second := buildCommit(t, f, first.CommitHash, addOp(t, "two.txt", "2"))
		updated, err := f.repos.AttachCommit(repo.ID, second)
		require.NoError(t, err)

		head, err = f.repos.Head(updated)
		require.NoError(t, err)
		require.NotNil(t, head)
		assert.Equal(t, second.CommitHash, head.CommitHash)
	})

	t.Run("RebuildFromHistory", func(t *testing.T) {
		repo := newRepo(t, f, "rebuild")

		first := buildCommit(t, f, "", addOp(t, "keep.txt", "keep"))
		_, err := f.repos.AttachCommit(repo.ID, first)
		require.NoError(t, err)
		second := buildCommit(t, f, first.CommitHash,
			addOp(t, "new.txt", "new"),
			commit.Operation{Type: commit.OpDelete, Path: "keep.txt"},
		)
		want, err := f.repos.AttachCommit(repo.ID, second)
		require.NoError(t, err)

		// Clobber the stored live set, then replay history over it.
		broken, err := f.repos.Get(repo.ID)
		require.NoError(t, err)
		broken.Blobs = []blob.Key{{SHA1: "ffffffffffffffffffffffffffffffffffffffff", Path: "junk"}}
		raw := storage.NewBadgerStore(db, "repository")
		require.NoError(t, raw.Update(&repoEntity{Repository: broken}))

		rebuilt, err := f.repos.RebuildFromHistory(repo.ID)
		require.NoError(t, err)
		assert.ElementsMatch(t, want.Blobs, rebuilt.Blobs)

		stored, err := f.repos.Get(repo.ID)
		require.NoError(t, err)
		assert.ElementsMatch(t, want.Blobs, stored.Blobs)
	})

	t.Run("GetFile", func(t *testing.T) {
		repo := newRepo(t, f, "get-file")

		c := buildCommit(t, f, "",
			addOp(t, "src/app.py", "version = 1\n"),
			addOp(t, "docs/app.py", "version = 1\n"),
		)
		_, err := f.repos.AttachCommit(repo.ID, c)
		require.NoError(t, err)

		// Same content at two paths shares a hash, so a hash-only
		// lookup is ambiguous.
		sha := c.Blobs[0].SHA1
		_, err = f.repos.GetFile(repo.ID, sha, "")
		require.Error(t, err)
		assert.True(t, errors.IsKind(err, errors.KindAmbiguousReference))

		b, err := f.repos.GetFile(repo.ID, sha, "src/app.py")
		require.NoError(t, err)
		assert.Equal(t, []byte("version = 1\n"), b.Content)

		b, err = f.repos.GetFile(repo.ID, "", "docs/app.py")
		require.NoError(t, err)
		assert.Equal(t, sha, b.SHA1)

		_, err = f.repos.GetFile(repo.ID, "", "missing.txt")
		require.Error(t, err)
		assert.True(t, errors.IsKind(err, errors.KindNotFound))

		_, err = f.repos.GetFile(repo.ID, "", "")
		require.Error(t, err)
		assert.True(t, errors.IsKind(err, errors.KindValidation))
	})

	t.Run("PathOnlyLookupAmbiguousAfterRewrite", func(t *testing.T) {
		repo := newRepo(t, f, "rewrite")

		first := buildCommit(t, f, "", addOp(t, "conf.yaml", "v: 1\n"))
		_, err := f.repos.AttachCommit(repo.ID, first)
		require.NoError(t, err)
		second := buildCommit(t, f, first.CommitHash, addOp(t, "conf.yaml", "v: 2\n"))
		_, err = f.repos.AttachCommit(repo.ID, second)
		require.NoError(t, err)

		// Both revisions of the path are live until a delete clears it.
		_, err = f.repos.GetFile(repo.ID, "", "conf.yaml")
		require.Error(t, err)
		assert.True(t, errors.IsKind(err, errors.KindAmbiguousReference))

		b, err := f.repos.GetFile(repo.ID, second.Blobs[0].SHA1, "conf.yaml")
		require.NoError(t, err)
		assert.Equal(t, []byte("v: 2\n"), b.Content)
	})
}
