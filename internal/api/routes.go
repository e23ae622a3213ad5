// internal/api/routes.go
package api

import (
	"net/http"

	"bitstore/internal/middleware"
)

// NewRouter wires every handler to its route. Repository management
// needs a bearer token; the commit and share-link surfaces stay open
// because pushes are authorized by share token instead.
func NewRouter(repos *RepositoryHandler, commits *CommitHandler, shares *ShareLinkHandler, users *AuthHandler, verifier middleware.TokenVerifier) *http.ServeMux {
	mux := http.NewServeMux()
	protected := middleware.Auth(verifier)

	guard := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, protected(h))
	}

	// Accounts
	mux.HandleFunc("POST /api/users/register", users.Register)
	mux.HandleFunc("POST /api/users/login", users.Login)
	mux.HandleFunc("POST /api/users/token/refresh", users.Refresh)
	mux.HandleFunc("POST /api/users/verifyaccesstoken", users.VerifyToken)
	guard("GET /api/users/protected", users.Protected)
	guard("POST /api/users/logout", users.Logout)

	// Repositories
	guard("POST /api/data/repositories", repos.Create)
	guard("GET /api/data/repositories", repos.List)
	guard("GET /api/data/repositories/{id}", repos.Retrieve)
	guard("DELETE /api/data/repositories/{id}", repos.Delete)
	guard("GET /api/data/repositories/{id}/file", repos.File)
	guard("POST /api/data/repositories/{id}/generate_link", repos.GenerateLink)
	guard("GET /api/data/repositories/{id}/structure", repos.Structure)
	guard("GET /api/data/repositories/author/{username}", repos.ByAuthor)
	guard("POST /api/data/repositories/{id}/commits/{hash}/merge", repos.Merge)

	// Commits
	mux.HandleFunc("POST /api/data/commits", commits.Create)
	mux.HandleFunc("GET /api/data/commits/by_hash", commits.ByHash)
	mux.HandleFunc("GET /api/data/commits/{hash}", commits.Retrieve)

	// Share links
	mux.HandleFunc("GET /api/data/share-links/{token}/check", shares.Check)
	mux.HandleFunc("GET /api/data/share-links/{token}/repository", shares.Repository)

	return mux
}
