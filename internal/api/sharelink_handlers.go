// internal/api/sharelink_handlers.go
package api

import (
	"net/http"

	"bitstore/internal/blob"
	"bitstore/internal/errors"
	"bitstore/internal/repository"
	"bitstore/internal/sharelink"
)

type ShareLinkHandler struct {
	links sharelink.Box
	repos repository.Box
	blobs blob.Store
}

func NewShareLinkHandler(links sharelink.Box, repos repository.Box, blobs blob.Store) *ShareLinkHandler {
	return &ShareLinkHandler{
		links: links,
		repos: repos,
		blobs: blobs,
	}
}

// Check reports whether a token still grants access. Unknown tokens
// answer with the same shape so clients need only look at "valid".
func (h *ShareLinkHandler) Check(w http.ResponseWriter, r *http.Request) {
	link, err := h.links.Get(r.PathValue("token"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"valid": false})
		return
	}

	repo, err := h.repos.Get(link.RepositoryID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"valid": false})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"valid":      link.Valid(),
		"expiration": link.Expiration,
		"repository": repo.Name,
	})
}

// Repository serves a repository through a share token, no login
// needed.
func (h *ShareLinkHandler) Repository(w http.ResponseWriter, r *http.Request) {
	link, err := h.links.Get(r.PathValue("token"))
	if err != nil {
		writeError(w, errors.NotFound("invalid share token"))
		return
	}
	if !link.Valid() {
		writeError(w, errors.Forbidden("share link has expired or is invalid"))
		return
	}

	repo, err := h.repos.Get(link.RepositoryID)
	if err != nil {
		writeError(w, err)
		return
	}

	contents, err := contentsOf(h.blobs, repo)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":              repo.ID,
		"name":            repo.Name,
		"description":     repo.Description,
		"author_username": repo.Author,
		"created_at":      repo.CreatedAt,
		"contents":        contents,
		"share_info": map[string]any{
			"expiration": link.Expiration,
			"created_at": link.CreatedAt,
		},
	})
}
