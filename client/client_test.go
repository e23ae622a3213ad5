package client

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bitstore/internal/accounts"
	"bitstore/internal/api"
	"bitstore/internal/auth"
	"bitstore/internal/blob"
	"bitstore/internal/commit"
	commitStorage "bitstore/internal/commit/storage"
	repositoryStorage "bitstore/internal/repository/storage"
	sharelinkStorage "bitstore/internal/sharelink/storage"
)

func startServer(t *testing.T) *httptest.Server {
	t.Helper()

	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	blobs, err := blob.NewDedupStore(db, 32)
	require.NoError(t, err)
	commits := commitStorage.NewStore(db, blobs)
	repos := repositoryStorage.NewStore(db, commits, blobs)
	links := sharelinkStorage.NewStore(db, 10*24*time.Hour)
	users := accounts.NewStore(db)
	tokens := auth.NewManager("client-test-secret", time.Hour, 24*time.Hour)

	mux := api.NewRouter(
		api.NewRepositoryHandler(repos, commits, blobs, links, users),
		api.NewCommitHandler(commits, repos, blobs, links),
		api.NewShareLinkHandler(links, repos, blobs),
		api.NewAuthHandler(users, tokens),
		tokens,
	)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestClientWorkflow(t *testing.T) {
	server := startServer(t)
	c := New(server.URL)

	require.NoError(t, c.Register("alice", "s3cret-pass"))
	require.NoError(t, c.Login("alice", "s3cret-pass"))

	repo, err := c.CreateRepository("tooling", "shared scripts")
	require.NoError(t, err)
	require.Len(t, repo.ShareLinks, 1)
	token := repo.ShareLinks[0].Token

	addScript, err := AddFile("cmd/run.sh", []byte("#!/bin/sh\necho run\n"))
	require.NoError(t, err)
	addDocs, err := AddFile("docs/usage.md", []byte("# usage\n"))
	require.NoError(t, err)

	pushed, err := c.PushCommit(token, "alice", "alice@example.com", "initial import", []commit.Operation{addScript, addDocs})
	require.NoError(t, err)
	assert.Len(t, pushed.CommitHash, 40)
	assert.Len(t, pushed.Blobs, 2)
	require.NotNil(t, pushed.Summary)
	assert.Len(t, pushed.Summary.Updated, 2)

	fetched, err := c.Commit(pushed.CommitHash)
	require.NoError(t, err)
	assert.Equal(t, "initial import", fetched.Message)

	file, err := c.File(repo.ID, "", "docs/usage.md")
	require.NoError(t, err)
	assert.Equal(t, "utf-8", file.Encoding)
	assert.Equal(t, []byte("# usage\n"), file.Bytes())

	contents, err := c.Structure(repo.ID)
	require.NoError(t, err)
	assert.Contains(t, string(contents), `"docs"`)

	status, err := c.CheckLink(token)
	require.NoError(t, err)
	assert.True(t, status.Valid)
	assert.Equal(t, "tooling", status.Repository)

	shared, err := c.SharedRepository(token)
	require.NoError(t, err)
	assert.Equal(t, repo.ID, shared.ID)

	fresh, err := c.GenerateLink(repo.ID)
	require.NoError(t, err)
	assert.NotEqual(t, token, fresh.Token)

	// The retired link no longer authorizes pushes.
	_, err = c.PushCommit(token, "alice", "alice@example.com", "stale push", []commit.Operation{DeleteFile("docs/usage.md")})
	assert.Error(t, err)

	removed, err := c.PushCommit(fresh.Token, "alice", "alice@example.com", "remove docs", []commit.Operation{DeleteFile("docs/usage.md")})
	require.NoError(t, err)
	assert.Equal(t, []string{"docs/usage.md"}, removed.DeletedPaths)

	mine, err := c.RepositoriesByAuthor("alice")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "tooling", mine[0].Name)

	require.NoError(t, c.DeleteRepository(repo.ID))
	_, err = c.Repository(repo.ID)
	assert.Error(t, err)
}

func TestClientAuthRequired(t *testing.T) {
	server := startServer(t)
	c := New(server.URL)

	_, err := c.Repositories()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestClientTokenRefresh(t *testing.T) {
	server := startServer(t)
	c := New(server.URL)

	require.NoError(t, c.Register("bob", "pass-12345"))
	require.NoError(t, c.Login("bob", "pass-12345"))
	require.NoError(t, c.RefreshToken())

	_, err := c.Repositories()
	require.NoError(t, err)
}
