// Package accounts stores registered users and checks their
// credentials. Passwords are held only as bcrypt hashes.
package accounts

import (
	stderrors "errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"golang.org/x/crypto/bcrypt"

	"bitstore/internal/errors"
	"bitstore/internal/storage"
)

type User struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// Box defines how users are registered and authenticated.
type Box interface {
	Register(username, password string) (*User, error)
	Authenticate(username, password string) (*User, error)
	Get(username string) (*User, error)
}

type Store struct {
	store *storage.BadgerStore
}

func NewStore(db *badger.DB) *Store {
	return &Store{store: storage.NewBadgerStore(db, "user")}
}

// userEntity wraps User to implement storage.Entity
type userEntity struct {
	*User
}

func (u *userEntity) GetID() string {
	return u.Username
}

func (s *Store) Register(username, password string) (*User, error) {
	if username == "" {
		return nil, errors.MissingRequiredField("username")
	}
	if password == "" {
		return nil, errors.MissingRequiredField("password")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &User{
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.Create(&userEntity{User: user}); err != nil {
		if stderrors.Is(err, storage.ErrExists) {
			return nil, errors.ValidationError(fmt.Sprintf("username %q is taken", username), nil)
		}
		return nil, fmt.Errorf("storing user: %w", err)
	}
	return user, nil
}

// Authenticate returns the user when the password matches. Unknown
// usernames and wrong passwords produce the same error, so callers
// cannot probe which usernames exist.
func (s *Store) Authenticate(username, password string) (*User, error) {
	user, err := s.Get(username)
	if err != nil {
		if errors.IsKind(err, errors.KindNotFound) {
			return nil, errors.Unauthorized("invalid credentials")
		}
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, errors.Unauthorized("invalid credentials")
	}
	return user, nil
}

func (s *Store) Get(username string) (*User, error) {
	var entity userEntity
	entity.User = &User{}

	if err := s.store.Get(username, &entity); err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil, errors.NotFound(fmt.Sprintf("no user %q", username))
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}

	return entity.User, nil
}
