package storage

import (
	stderrors "errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"bitstore/internal/blob"
	"bitstore/internal/commit"
	"bitstore/internal/errors"
	"bitstore/internal/repository"
	"bitstore/internal/storage"
)

type Store struct {
	store   *storage.BadgerStore
	commits commit.Box
	blobs   blob.Store
}

func NewStore(db *badger.DB, commits commit.Box, blobs blob.Store) *Store {
	return &Store{
		store:   storage.NewBadgerStore(db, "repository"),
		commits: commits,
		blobs:   blobs,
	}
}

// repoEntity wraps repository.Repository to implement storage.Entity
type repoEntity struct {
	*repository.Repository
}

func (r *repoEntity) GetID() string {
	return r.ID
}

func (s *Store) Create(repo *repository.Repository) error {
	if repo.Name == "" {
		return errors.MissingRequiredField("name")
	}
	if repo.Author == "" {
		return errors.MissingRequiredField("author")
	}

	if repo.ID == "" {
		repo.ID = uuid.New().String()
	}
	if repo.CreatedAt.IsZero() {
		repo.CreatedAt = time.Now().UTC()
	}
	if repo.CommitHashes == nil {
		repo.CommitHashes = []string{}
	}
	if repo.Blobs == nil {
		repo.Blobs = []blob.Key{}
	}

	return s.store.Create(&repoEntity{Repository: repo})
}

func (s *Store) Get(id string) (*repository.Repository, error) {
	var entity repoEntity
	entity.Repository = &repository.Repository{}

	if err := s.store.Get(id, &entity); err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil, errors.NotFound(fmt.Sprintf("no repository %s", id))
		}
		return nil, fmt.Errorf("getting repository: %w", err)
	}

	return entity.Repository, nil
}

func (s *Store) List() ([]*repository.Repository, error) {
	var entities []repoEntity
	if err := s.store.List(&entities); err != nil {
		return nil, fmt.Errorf("listing repositories: %w", err)
	}

	repos := make([]*repository.Repository, len(entities))
	for i, entity := range entities {
		repos[i] = entity.Repository
	}
	return repos, nil
}

// Delete removes the repository row. Blob and commit rows stay: they
// are content addressed and may be shared.
func (s *Store) Delete(id string) error {
	if err := s.store.Delete(id); err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return errors.NotFound(fmt.Sprintf("no repository %s", id))
		}
		return err
	}
	return nil
}

func (s *Store) FindByAuthor(author string) ([]*repository.Repository, error) {
	if author == "" {
		return nil, errors.MissingRequiredField("author")
	}

	repos, err := s.List()
	if err != nil {
		return nil, err
	}

	var result []*repository.Repository
	for _, r := range repos {
		if r.Author == author {
			result = append(result, r)
		}
	}
	return result, nil
}

// Head returns the latest attached commit, picked by timestamp with
// hash order breaking ties, or nil for a repository with no commits.
func (s *Store) Head(repo *repository.Repository) (*commit.Commit, error) {
	var head *commit.Commit
	for _, hash := range repo.CommitHashes {
		c, err := s.commits.Get(hash)
		if err != nil {
			return nil, err
		}
		if head == nil || later(c, head) {
			head = c
		}
	}
	return head, nil
}

func later(a, b *commit.Commit) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.After(b.Timestamp)
	}
	return a.CommitHash > b.CommitHash
}

// AttachCommit appends the commit to the repository's history and
// folds it into the live set in one transaction, so two builds landing
// at once serialize instead of losing updates. Attaching a commit the
// repository already has changes nothing.
func (s *Store) AttachCommit(id string, c *commit.Commit) (*repository.Repository, error) {
	repo := &repository.Repository{}
	err := s.store.Mutate(id, &repoEntity{Repository: repo}, func() error {
		for _, h := range repo.CommitHashes {
			if h == c.CommitHash {
				return nil
			}
		}
		repo.CommitHashes = append(repo.CommitHashes, c.CommitHash)
		repo.Apply(c)
		return nil
	})
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil, errors.NotFound(fmt.Sprintf("no repository %s", id))
		}
		return nil, fmt.Errorf("attaching commit: %w", err)
	}
	return repo, nil
}

// RebuildFromHistory recomputes the live set from scratch by replaying
// every attached commit in ascending timestamp order, ties broken by
// hash. The replayed set replaces whatever was stored.
func (s *Store) RebuildFromHistory(id string) (*repository.Repository, error) {
	repo := &repository.Repository{}
	err := s.store.Mutate(id, &repoEntity{Repository: repo}, func() error {
		commits := make([]*commit.Commit, 0, len(repo.CommitHashes))
		for _, hash := range repo.CommitHashes {
			c, err := s.commits.Get(hash)
			if err != nil {
				return err
			}
			commits = append(commits, c)
		}
		sort.Slice(commits, func(i, j int) bool {
			return later(commits[j], commits[i])
		})

		repo.Blobs = []blob.Key{}
		for _, c := range commits {
			repo.Apply(c)
		}
		return nil
	})
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil, errors.NotFound(fmt.Sprintf("no repository %s", id))
		}
		return nil, fmt.Errorf("rebuilding repository: %w", err)
	}
	return repo, nil
}

// GetFile resolves a live file by content hash, path, or both. A
// reference matching several live keys is ambiguous and the error
// carries the candidates, so callers can retry with both halves.
func (s *Store) GetFile(id string, sha1 string, path string) (*blob.Blob, error) {
	if sha1 == "" && path == "" {
		return nil, errors.ValidationError("either sha1 or path is required", nil)
	}

	repo, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	var matches []blob.Key
	for _, k := range repo.Blobs {
		if sha1 != "" && k.SHA1 != sha1 {
			continue
		}
		if path != "" && k.Path != path {
			continue
		}
		matches = append(matches, k)
	}

	switch len(matches) {
	case 0:
		return nil, errors.NotFound("no live file matches the reference")
	case 1:
		return s.blobs.Get(matches[0])
	default:
		return nil, errors.AmbiguousReference("reference matches multiple live files", map[string]any{"candidates": matches})
	}
}
