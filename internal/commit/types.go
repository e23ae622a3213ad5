package commit

import (
	"time"

	"bitstore/internal/blob"
)

// Operation types accepted in a build request.
const (
	OpAdd    = "ADD"
	OpDelete = "DELETE"
)

// Operation is one step of a build: add a file under a path, or delete
// a path. Content carries the base64 compressed payload for adds and
// is ignored for deletes.
type Operation struct {
	Type    string `json:"type"`
	Path    string `json:"path"`
	Content string `json:"content,omitempty"`
}

// BuildRequest is everything a client supplies to build one commit.
// The parent hash comes from the repository head at build time, and
// the timestamp from the server clock when the request is accepted,
// never from the wire.
type BuildRequest struct {
	Author     string      `json:"author"`
	Email      string      `json:"email"`
	Message    string      `json:"message"`
	Timestamp  time.Time   `json:"-"`
	ParentHash string      `json:"parent_hash,omitempty"`
	Operations []Operation `json:"operations"`
}

// Commit is one immutable snapshot step: the blobs it added and the
// paths it removed, hashed together with author metadata and a random
// nonce so no two builds ever share an identity.
type Commit struct {
	CommitHash   string     `json:"commit_hash"`
	Author       string     `json:"author"`
	Email        string     `json:"email"`
	Message      string     `json:"message"`
	Timestamp    time.Time  `json:"timestamp"`
	ParentHash   string     `json:"parent_hash,omitempty"`
	Blobs        []blob.Key `json:"blobs"`
	DeletedPaths []string   `json:"deleted_paths"`
}

// Summary reports what a build did, path by path. Unchanged stays
// empty today; clients already consume the field.
type Summary struct {
	Updated   []string `json:"updated"`
	Deleted   []string `json:"deleted"`
	Unchanged []string `json:"unchanged"`
}

// Box defines how commits are built and retrieved.
type Box interface {
	Build(req *BuildRequest) (*Commit, *Summary, error)
	Get(hash string) (*Commit, error)
	List() ([]*Commit, error)
	FindByAuthor(author string) ([]*Commit, error)
}
