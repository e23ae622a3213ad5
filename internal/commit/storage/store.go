package storage

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"bitstore/internal/blob"
	"bitstore/internal/commit"
	"bitstore/internal/errors"
	"bitstore/internal/storage"
	"bitstore/shared/utils"
)

type Store struct {
	store *storage.BadgerStore
	blobs blob.Store
}

func NewStore(db *badger.DB, blobs blob.Store) *Store {
	return &Store{
		store: storage.NewBadgerStore(db, "commit"),
		blobs: blobs,
	}
}

// commitEntity wraps commit.Commit to implement storage.Entity
type commitEntity struct {
	*commit.Commit
}

func (c *commitEntity) GetID() string {
	return c.CommitHash
}

func validate(req *commit.BuildRequest) error {
	if req.Author == "" {
		return errors.MissingRequiredField("author")
	}
	if req.Email == "" {
		return errors.MissingRequiredField("email")
	}
	if req.Message == "" {
		return errors.MissingRequiredField("message")
	}
	if req.Timestamp.IsZero() {
		return errors.MissingRequiredField("timestamp")
	}
	for i, op := range req.Operations {
		switch op.Type {
		case commit.OpAdd:
			// Ingestion validates the payload and path.
		case commit.OpDelete:
			if op.Path == "" {
				return errors.MissingRequiredField("path")
			}
		default:
			return errors.ValidationError(
				fmt.Sprintf("unsupported operation %q at index %d", op.Type, i), nil)
		}
	}
	return nil
}

// identityHash digests the canonical JSON form of a commit's
// identifying fields. Marshaling a map emits its keys sorted, so the
// document is deterministic; the nonce keeps otherwise identical
// builds distinct. The timestamp enters as whole epoch seconds,
// matching the stored precision.
func identityHash(c *commit.Commit, nonce string) (string, error) {
	payload := map[string]any{
		"author":        c.Author,
		"email":         c.Email,
		"timestamp":     strconv.FormatInt(c.Timestamp.Unix(), 10),
		"message":       c.Message,
		"parent_hash":   c.ParentHash,
		"deleted_paths": c.DeletedPaths,
		"nonce":         nonce,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("hashing commit identity: %w", err)
	}
	return utils.HashContent(data), nil
}

// Build ingests every add in the request, then writes the commit row.
// Duplicate paths keep their first occurrence. Any payload that fails
// to decode or decompress rejects the whole build before a commit row
// exists; blob rows ingested up to that point are content addressed,
// so a later successful build simply reuses them.
func (s *Store) Build(req *commit.BuildRequest) (*commit.Commit, *commit.Summary, error) {
	if err := validate(req); err != nil {
		return nil, nil, err
	}

	summary := &commit.Summary{
		Updated:   []string{},
		Deleted:   []string{},
		Unchanged: []string{},
	}

	keys := []blob.Key{}
	seenAdds := map[string]bool{}
	seenDeletes := map[string]bool{}
	for _, op := range req.Operations {
		switch op.Type {
		case commit.OpAdd:
			if seenAdds[op.Path] {
				continue
			}
			seenAdds[op.Path] = true

			b, err := s.blobs.Ingest(op.Path, op.Content)
			if err != nil {
				return nil, nil, errors.PartialCommitRejected(
					fmt.Sprintf("file %q could not be processed", op.Path), err)
			}
			keys = append(keys, b.Key())
			summary.Updated = append(summary.Updated, op.Path)
		case commit.OpDelete:
			if seenDeletes[op.Path] {
				continue
			}
			seenDeletes[op.Path] = true
			summary.Deleted = append(summary.Deleted, op.Path)
		}
	}

	c := &commit.Commit{
		Author:       req.Author,
		Email:        req.Email,
		Message:      req.Message,
		Timestamp:    time.Unix(req.Timestamp.Unix(), 0).UTC(),
		ParentHash:   req.ParentHash,
		Blobs:        keys,
		DeletedPaths: summary.Deleted,
	}

	// Regenerate the nonce in the unlikely case the hash is taken.
	for attempt := 0; attempt < 3; attempt++ {
		hash, err := identityHash(c, uuid.New().String())
		if err != nil {
			return nil, nil, err
		}
		c.CommitHash = hash

		err = s.store.Create(&commitEntity{Commit: c})
		if err == nil {
			return c, summary, nil
		}
		if !stderrors.Is(err, storage.ErrExists) {
			return nil, nil, fmt.Errorf("storing commit: %w", err)
		}
	}
	return nil, nil, errors.Internal("could not allocate a unique commit hash")
}

func (s *Store) Get(hash string) (*commit.Commit, error) {
	var entity commitEntity
	entity.Commit = &commit.Commit{}

	if err := s.store.Get(hash, &entity); err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil, errors.NotFound(fmt.Sprintf("no commit %s", hash))
		}
		return nil, fmt.Errorf("getting commit: %w", err)
	}

	return entity.Commit, nil
}

func (s *Store) List() ([]*commit.Commit, error) {
	var entities []commitEntity
	if err := s.store.List(&entities); err != nil {
		return nil, fmt.Errorf("listing commits: %w", err)
	}

	commits := make([]*commit.Commit, len(entities))
	for i, entity := range entities {
		commits[i] = entity.Commit
	}
	return commits, nil
}

func (s *Store) FindByAuthor(author string) ([]*commit.Commit, error) {
	if author == "" {
		return nil, errors.MissingRequiredField("author")
	}

	commits, err := s.List()
	if err != nil {
		return nil, err
	}

	var result []*commit.Commit
	for _, c := range commits {
		if c.Author == author {
			result = append(result, c)
		}
	}
	return result, nil
}
