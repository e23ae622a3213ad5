package blob

import (
	stderrors "errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	lru "github.com/hashicorp/golang-lru/v2"

	"bitstore/internal/errors"
	"bitstore/internal/storage"
	"bitstore/shared/utils"
)

const blobPrefix = "blob"

// blobEntity adapts Blob to the generic store's Entity contract.
type blobEntity struct {
	*Blob
}

func (e *blobEntity) GetID() string {
	return e.Key().ID()
}

// DedupStore persists blobs keyed by (content hash, path) and keeps a
// bounded in-memory cache of decompressed content, keyed by hash alone
// so paths sharing content share the cached bytes.
type DedupStore struct {
	store *storage.BadgerStore
	cache *lru.Cache[string, []byte]
}

func NewDedupStore(db *badger.DB, cacheSize int) (*DedupStore, error) {
	cache, err := lru.New[string, []byte](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating content cache: %w", err)
	}
	return &DedupStore{
		store: storage.NewBadgerStore(db, blobPrefix),
		cache: cache,
	}, nil
}

// Ingest decodes a base64 compressed payload, recovers the original
// bytes, and stores the row unless one already exists for the same
// content at the same path. A zero-byte decoded payload is a valid
// empty file and skips decompression entirely, so the hash of empty
// content never depends on how a client compressed nothing.
func (s *DedupStore) Ingest(path string, compressedPayload string) (*Blob, error) {
	if path == "" {
		return nil, errors.MissingRequiredField("path")
	}

	compressed, err := DecodePayload(compressedPayload)
	if err != nil {
		return nil, err
	}

	content := []byte{}
	if len(compressed) > 0 {
		content, err = Decompress(compressed)
		if err != nil {
			return nil, err
		}
	}

	b := &Blob{
		SHA1:           utils.HashContent(content),
		Path:           path,
		Size:           len(content),
		CompressedSize: len(compressed),
		Compressed:     compressed,
		Content:        content,
	}

	if _, err := s.store.GetOrCreate(&blobEntity{b}); err != nil {
		return nil, fmt.Errorf("storing blob %s: %w", b.Key().ID(), err)
	}

	s.cache.Add(b.SHA1, b.Content)
	return b, nil
}

func (s *DedupStore) Get(key Key) (*Blob, error) {
	b := &Blob{}
	if err := s.store.Get(key.ID(), &blobEntity{b}); err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil, errors.NotFound(fmt.Sprintf("no blob %s at %s", key.SHA1, key.Path))
		}
		return nil, err
	}
	return b, nil
}

// Content returns the decompressed bytes for key, serving repeat reads
// from the cache.
func (s *DedupStore) Content(key Key) ([]byte, error) {
	if content, ok := s.cache.Get(key.SHA1); ok {
		return content, nil
	}

	b, err := s.Get(key)
	if err != nil {
		return nil, err
	}
	s.cache.Add(b.SHA1, b.Content)
	return b.Content, nil
}

func (s *DedupStore) List() ([]*Blob, error) {
	var blobs []*Blob
	if err := s.store.List(&blobs); err != nil {
		return nil, err
	}
	return blobs, nil
}

func (s *DedupStore) Delete(key Key) error {
	if err := s.store.Delete(key.ID()); err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return errors.NotFound(fmt.Sprintf("no blob %s at %s", key.SHA1, key.Path))
		}
		return err
	}
	s.cache.Remove(key.SHA1)
	return nil
}

// RemoveDuplicates sweeps rows whose stored identity disagrees with
// the key they live under, which is how duplicates from older imports
// or hand-written rows appear. The canonically keyed row wins; a stray
// with no canonical twin is rewritten under its proper key. Returns
// the number of rows removed.
func (s *DedupStore) RemoveDuplicates() (int, error) {
	keys, err := s.store.Keys()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, rawID := range keys {
		b := &Blob{}
		if err := s.store.Get(rawID, &blobEntity{b}); err != nil {
			return removed, fmt.Errorf("reading blob row %s: %w", rawID, err)
		}

		canonical := b.Key().ID()
		if canonical == rawID {
			continue
		}

		if _, err := s.store.GetOrCreate(&blobEntity{b}); err != nil {
			return removed, fmt.Errorf("restoring canonical row %s: %w", canonical, err)
		}
		if err := s.store.Delete(rawID); err != nil {
			return removed, fmt.Errorf("removing stray row %s: %w", rawID, err)
		}
		removed++
	}
	return removed, nil
}
