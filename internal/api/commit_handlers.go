// internal/api/commit_handlers.go
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"bitstore/internal/blob"
	"bitstore/internal/commit"
	"bitstore/internal/errors"
	"bitstore/internal/repository"
	"bitstore/internal/sharelink"
	"bitstore/internal/tree"
)

type commitBlob struct {
	SHA1           string `json:"sha1_hash"`
	FileSize       int    `json:"file_size"`
	CompressedSize int    `json:"compressed_size"`
	Path           string `json:"path"`
}

type commitResponse struct {
	CommitHash   string       `json:"commit_hash"`
	Author       string       `json:"author"`
	Email        string       `json:"email"`
	Timestamp    time.Time    `json:"timestamp"`
	Message      string       `json:"message"`
	ParentHash   string       `json:"parent_hash,omitempty"`
	Blobs        []commitBlob `json:"blobs"`
	DeletedPaths []string     `json:"deleted_paths"`
}

func newCommitResponse(c *commit.Commit, blobs blob.Store) (*commitResponse, error) {
	rows := make([]commitBlob, 0, len(c.Blobs))
	for _, key := range c.Blobs {
		b, err := blobs.Get(key)
		if err != nil {
			return nil, err
		}
		rows = append(rows, commitBlob{
			SHA1:           b.SHA1,
			FileSize:       b.Size,
			CompressedSize: b.CompressedSize,
			Path:           b.Path,
		})
	}
	return &commitResponse{
		CommitHash:   c.CommitHash,
		Author:       c.Author,
		Email:        c.Email,
		Timestamp:    c.Timestamp,
		Message:      c.Message,
		ParentHash:   c.ParentHash,
		Blobs:        rows,
		DeletedPaths: c.DeletedPaths,
	}, nil
}

type CommitHandler struct {
	commits commit.Box
	repos   repository.Box
	blobs   blob.Store
	links   sharelink.Box
}

func NewCommitHandler(commits commit.Box, repos repository.Box, blobs blob.Store, links sharelink.Box) *CommitHandler {
	return &CommitHandler{
		commits: commits,
		repos:   repos,
		blobs:   blobs,
		links:   links,
	}
}

// Create builds a commit for the repository a share token points at.
// No login is required; the token is the whole grant.
func (h *CommitHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ShareToken string             `json:"share_token"`
		Author     string             `json:"author"`
		Email      string             `json:"email"`
		Message    string             `json:"message"`
		Operations []commit.Operation `json:"operations"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	link, err := h.links.Get(req.ShareToken)
	if err != nil || !link.Active {
		writeError(w, errors.Forbidden("invalid share token"))
		return
	}
	if !link.Valid() {
		writeError(w, errors.Forbidden("share link has expired"))
		return
	}

	repo, err := h.repos.Get(link.RepositoryID)
	if err != nil {
		writeError(w, err)
		return
	}

	head, err := h.repos.Head(repo)
	if err != nil {
		writeError(w, err)
		return
	}
	parent := ""
	if head != nil {
		parent = head.CommitHash
	}

	c, summary, err := h.commits.Build(&commit.BuildRequest{
		Author:     req.Author,
		Email:      req.Email,
		Message:    req.Message,
		Timestamp:  time.Now().UTC(),
		ParentHash: parent,
		Operations: req.Operations,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	updated, err := h.repos.AttachCommit(repo.ID, c)
	if err != nil {
		writeError(w, err)
		return
	}

	contents, err := contentsOf(h.blobs, updated)
	if err != nil {
		writeError(w, err)
		return
	}
	resp, err := newCommitResponse(c, h.blobs)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, struct {
		*commitResponse
		Contents *tree.Folder    `json:"contents"`
		Summary  *commit.Summary `json:"operations_summary"`
	}{resp, contents, summary})
}

func (h *CommitHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
	c, err := h.commits.Get(r.PathValue("hash"))
	if err != nil {
		writeError(w, err)
		return
	}

	resp, err := newCommitResponse(c, h.blobs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *CommitHandler) ByHash(w http.ResponseWriter, r *http.Request) {
	hash := r.URL.Query().Get("hash")
	if hash == "" {
		writeError(w, errors.MissingRequiredField("hash"))
		return
	}

	c, err := h.commits.Get(hash)
	if err != nil {
		writeError(w, err)
		return
	}

	resp, err := newCommitResponse(c, h.blobs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
