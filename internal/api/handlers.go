// internal/api/handlers.go
package api

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"sort"
	"time"
	"unicode/utf8"

	"bitstore/internal/accounts"
	"bitstore/internal/blob"
	"bitstore/internal/commit"
	"bitstore/internal/errors"
	"bitstore/internal/middleware"
	"bitstore/internal/repository"
	"bitstore/internal/sharelink"
	"bitstore/internal/tree"
)

type errorResponse struct {
	Error   string      `json:"error"`
	Kind    errors.Kind `json:"kind,omitempty"`
	Details any         `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	var e *errors.Error
	if !stderrors.As(err, &e) {
		e = errors.Internal(err.Error())
	}
	writeJSON(w, e.Code, errorResponse{Error: e.Message, Kind: e.Kind, Details: e.Details})
}

// contentsOf loads the live blobs of a repository and projects them
// into the folder document embedded in repository responses.
func contentsOf(blobs blob.Store, repo *repository.Repository) (*tree.Folder, error) {
	live := make([]*blob.Blob, 0, len(repo.Blobs))
	for _, key := range repo.Blobs {
		b, err := blobs.Get(key)
		if err != nil {
			return nil, err
		}
		live = append(live, b)
	}
	return tree.Project(live), nil
}

type repositoryResponse struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	ShareLinks  []*sharelink.Link `json:"share_links"`
	Author      string            `json:"author_username"`
	CreatedAt   time.Time         `json:"created_at"`
	Contents    *tree.Folder      `json:"contents"`
}

type RepositoryHandler struct {
	repos   repository.Box
	commits commit.Box
	blobs   blob.Store
	links   sharelink.Box
	users   accounts.Box
}

func NewRepositoryHandler(repos repository.Box, commits commit.Box, blobs blob.Store, links sharelink.Box, users accounts.Box) *RepositoryHandler {
	return &RepositoryHandler{
		repos:   repos,
		commits: commits,
		blobs:   blobs,
		links:   links,
		users:   users,
	}
}

func (h *RepositoryHandler) response(repo *repository.Repository) (*repositoryResponse, error) {
	links, err := h.links.FindByRepository(repo.ID)
	if err != nil {
		return nil, err
	}
	if links == nil {
		links = []*sharelink.Link{}
	}
	sort.Slice(links, func(i, j int) bool { return links[i].CreatedAt.After(links[j].CreatedAt) })

	contents, err := contentsOf(h.blobs, repo)
	if err != nil {
		return nil, err
	}

	return &repositoryResponse{
		ID:          repo.ID,
		Name:        repo.Name,
		Description: repo.Description,
		ShareLinks:  links,
		Author:      repo.Author,
		CreatedAt:   repo.CreatedAt,
		Contents:    contents,
	}, nil
}

func (h *RepositoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	repo := &repository.Repository{
		Name:        req.Name,
		Description: req.Description,
		Author:      middleware.Username(r.Context()),
	}
	if err := h.repos.Create(repo); err != nil {
		writeError(w, err)
		return
	}

	// Every new repository starts with one working share link.
	if _, err := h.links.Issue(repo.ID); err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.response(repo)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *RepositoryHandler) List(w http.ResponseWriter, r *http.Request) {
	repos, err := h.repos.List()
	if err != nil {
		writeError(w, err)
		return
	}

	responses := make([]*repositoryResponse, 0, len(repos))
	for _, repo := range repos {
		resp, err := h.response(repo)
		if err != nil {
			writeError(w, err)
			return
		}
		responses = append(responses, resp)
	}
	writeJSON(w, http.StatusOK, responses)
}

func (h *RepositoryHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
	repo, err := h.repos.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.response(repo)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Delete removes a repository and its share links. Blob and commit
// rows survive; they may back other repositories.
func (h *RepositoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	repo, err := h.repos.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	if repo.Author != middleware.Username(r.Context()) {
		writeError(w, errors.Forbidden("you can only delete your own repositories"))
		return
	}

	if err := h.links.DeleteByRepository(repo.ID); err != nil {
		writeError(w, err)
		return
	}
	if err := h.repos.Delete(repo.ID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// File serves one live file's content, as text when it decodes as
// UTF-8 and base64 otherwise.
func (h *RepositoryHandler) File(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sha1 := r.URL.Query().Get("sha1")
	path := r.URL.Query().Get("path")

	b, err := h.repos.GetFile(id, sha1, path)
	if err != nil {
		writeError(w, err)
		return
	}

	if utf8.Valid(b.Content) {
		writeJSON(w, http.StatusOK, map[string]any{
			"path":     b.Path,
			"sha1":     b.SHA1,
			"encoding": "utf-8",
			"text":     string(b.Content),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"path":     b.Path,
		"sha1":     b.SHA1,
		"encoding": "base64",
		"content":  b.Content,
	})
}

func (h *RepositoryHandler) GenerateLink(w http.ResponseWriter, r *http.Request) {
	repo, err := h.repos.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	if repo.Author != middleware.Username(r.Context()) {
		writeError(w, errors.Forbidden("only the repository owner can generate share links"))
		return
	}

	link, err := h.links.Issue(repo.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"token":      link.Token,
		"expiration": link.Expiration,
	})
}

func (h *RepositoryHandler) Structure(w http.ResponseWriter, r *http.Request) {
	repo, err := h.repos.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	contents, err := contentsOf(h.blobs, repo)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contents)
}

func (h *RepositoryHandler) ByAuthor(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	if _, err := h.users.Get(username); err != nil {
		writeError(w, err)
		return
	}

	repos, err := h.repos.FindByAuthor(username)
	if err != nil {
		writeError(w, err)
		return
	}

	responses := make([]*repositoryResponse, 0, len(repos))
	for _, repo := range repos {
		resp, err := h.response(repo)
		if err != nil {
			writeError(w, err)
			return
		}
		responses = append(responses, resp)
	}
	writeJSON(w, http.StatusOK, responses)
}

// Merge attaches an existing commit to a repository and folds it into
// the live set.
func (h *RepositoryHandler) Merge(w http.ResponseWriter, r *http.Request) {
	repo, err := h.repos.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	c, err := h.commits.Get(r.PathValue("hash"))
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

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "commit merged successfully",
		"repository": map[string]any{
			"id":       updated.ID,
			"name":     updated.Name,
			"contents": contents,
		},
	})
}
