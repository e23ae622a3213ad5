package storage

import (
	stderrors "errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"bitstore/internal/errors"
	"bitstore/internal/sharelink"
	"bitstore/internal/storage"
)

type Store struct {
	store *storage.BadgerStore
	ttl   time.Duration
}

func NewStore(db *badger.DB, ttl time.Duration) *Store {
	return &Store{
		store: storage.NewBadgerStore(db, "sharelink"),
		ttl:   ttl,
	}
}

// linkEntity wraps sharelink.Link to implement storage.Entity
type linkEntity struct {
	*sharelink.Link
}

func (l *linkEntity) GetID() string {
	return l.Token
}

func (s *Store) Issue(repositoryID string) (*sharelink.Link, error) {
	if repositoryID == "" {
		return nil, errors.MissingRequiredField("repository_id")
	}

	existing, err := s.FindByRepository(repositoryID)
	if err != nil {
		return nil, err
	}
	for _, link := range existing {
		if !link.Active {
			continue
		}
		link.Active = false
		if err := s.store.Update(&linkEntity{Link: link}); err != nil {
			return nil, fmt.Errorf("deactivating link %s: %w", link.Token, err)
		}
	}

	now := time.Now().UTC()
	link := &sharelink.Link{
		Token:        uuid.New().String(),
		RepositoryID: repositoryID,
		Expiration:   now.Add(s.ttl),
		Active:       true,
		CreatedAt:    now,
	}
	if err := s.store.Create(&linkEntity{Link: link}); err != nil {
		return nil, fmt.Errorf("storing link: %w", err)
	}
	return link, nil
}

func (s *Store) Get(token string) (*sharelink.Link, error) {
	var entity linkEntity
	entity.Link = &sharelink.Link{}

	if err := s.store.Get(token, &entity); err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil, errors.NotFound(fmt.Sprintf("no share link %s", token))
		}
		return nil, fmt.Errorf("getting link: %w", err)
	}

	return entity.Link, nil
}

func (s *Store) FindByRepository(repositoryID string) ([]*sharelink.Link, error) {
	var entities []linkEntity
	if err := s.store.List(&entities); err != nil {
		return nil, fmt.Errorf("listing links: %w", err)
	}

	var result []*sharelink.Link
	for _, entity := range entities {
		if entity.RepositoryID == repositoryID {
			result = append(result, entity.Link)
		}
	}
	return result, nil
}

func (s *Store) DeleteByRepository(repositoryID string) error {
	links, err := s.FindByRepository(repositoryID)
	if err != nil {
		return err
	}
	for _, link := range links {
		if err := s.store.Delete(link.Token); err != nil {
			return fmt.Errorf("deleting link %s: %w", link.Token, err)
		}
	}
	return nil
}
