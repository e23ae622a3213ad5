package repository

import (
	"time"

	"bitstore/internal/blob"
	"bitstore/internal/commit"
)

// Repository is a named line of history: the ordered set of commits
// attached to it and the live file set those commits produce. The live
// set is stored denormalized so reads never replay history; it can
// always be rebuilt from the commits.
type Repository struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Description  string     `json:"description,omitempty"`
	Author       string     `json:"author"`
	CreatedAt    time.Time  `json:"created_at"`
	CommitHashes []string   `json:"commit_hashes"`
	Blobs        []blob.Key `json:"blobs"`
}

// Apply folds one commit into the live file set: the commit's blob
// keys join the set, then every key whose path the commit deletes
// drops out. Keys are whole (hash, path) pairs, so a path committed
// with new content coexists with its older row until a delete clears
// the path. Applying the same commit twice changes nothing.
func (r *Repository) Apply(c *commit.Commit) {
	seen := make(map[blob.Key]bool, len(r.Blobs))
	for _, k := range r.Blobs {
		seen[k] = true
	}
	for _, k := range c.Blobs {
		if !seen[k] {
			r.Blobs = append(r.Blobs, k)
			seen[k] = true
		}
	}

	if len(c.DeletedPaths) == 0 {
		return
	}
	deleted := make(map[string]bool, len(c.DeletedPaths))
	for _, p := range c.DeletedPaths {
		deleted[p] = true
	}
	kept := r.Blobs[:0]
	for _, k := range r.Blobs {
		if !deleted[k.Path] {
			kept = append(kept, k)
		}
	}
	r.Blobs = kept
}

// Box defines how repositories are stored and how commits land in them.
type Box interface {
	Create(repo *Repository) error
	Get(id string) (*Repository, error)
	List() ([]*Repository, error)
	Delete(id string) error
	FindByAuthor(author string) ([]*Repository, error)

	// Head returns the repository's latest commit, or nil when it has
	// none.
	Head(repo *Repository) (*commit.Commit, error)

	// AttachCommit records the commit in the repository and folds it
	// into the live set, atomically with respect to other attaches.
	AttachCommit(id string, c *commit.Commit) (*Repository, error)

	// RebuildFromHistory discards the live set and replays every
	// attached commit in timestamp order.
	RebuildFromHistory(id string) (*Repository, error)

	// GetFile resolves one live file by content hash, path, or both.
	GetFile(id string, sha1 string, path string) (*blob.Blob, error)
}
