package sharelink

import (
	"time"
)

// Link is a temporary access token for one repository. Issuing a new
// link retires the previous active one, so a repository has at most
// one working link at a time.
type Link struct {
	Token        string    `json:"token"`
	RepositoryID string    `json:"repository_id"`
	Expiration   time.Time `json:"expiration"`
	Active       bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// Valid reports whether the link still grants access.
func (l *Link) Valid() bool {
	return l.Active && time.Now().Before(l.Expiration)
}

// Box defines how share links are issued and checked.
type Box interface {
	// Issue creates a fresh active link for the repository and
	// deactivates any links issued before it.
	Issue(repositoryID string) (*Link, error)

	Get(token string) (*Link, error)
	FindByRepository(repositoryID string) ([]*Link, error)

	// DeleteByRepository removes every link of a repository, used
	// when the repository itself goes away.
	DeleteByRepository(repositoryID string) error
}
