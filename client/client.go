// client/client.go
package client

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"bitstore/internal/blob"
	"bitstore/internal/commit"
	"bitstore/internal/sharelink"
)

type Client struct {
	baseURL    string
	httpClient *http.Client

	access  string
	refresh string
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: time.Second * 10,
		},
	}
}

// Repository mirrors the server's repository payload. Contents is kept
// raw because folder documents nest arbitrarily.
type Repository struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	ShareLinks  []*sharelink.Link `json:"share_links"`
	Author      string            `json:"author_username"`
	CreatedAt   time.Time         `json:"created_at"`
	Contents    json.RawMessage   `json:"contents"`
}

type CommitBlob struct {
	SHA1           string `json:"sha1_hash"`
	FileSize       int    `json:"file_size"`
	CompressedSize int    `json:"compressed_size"`
	Path           string `json:"path"`
}

type Commit struct {
	CommitHash   string          `json:"commit_hash"`
	Author       string          `json:"author"`
	Email        string          `json:"email"`
	Timestamp    time.Time       `json:"timestamp"`
	Message      string          `json:"message"`
	ParentHash   string          `json:"parent_hash,omitempty"`
	Blobs        []CommitBlob    `json:"blobs"`
	DeletedPaths []string        `json:"deleted_paths"`
	Contents     json.RawMessage `json:"contents,omitempty"`
	Summary      *commit.Summary `json:"operations_summary,omitempty"`
}

type File struct {
	Path     string `json:"path"`
	SHA1     string `json:"sha1"`
	Encoding string `json:"encoding"`
	Text     string `json:"text,omitempty"`
	Content  []byte `json:"content,omitempty"`
}

// Bytes returns the file's payload regardless of how the server
// encoded it.
func (f *File) Bytes() []byte {
	if f.Encoding == "utf-8" {
		return []byte(f.Text)
	}
	return f.Content
}

type LinkStatus struct {
	Valid      bool      `json:"valid"`
	Expiration time.Time `json:"expiration"`
	Repository string    `json:"repository"`
}

type ShareLink struct {
	Token      string    `json:"token"`
	Expiration time.Time `json:"expiration"`
}

// AddFile builds an ADD operation, compressing the content the way the
// server expects it.
func AddFile(path string, content []byte) (commit.Operation, error) {
	compressed, err := blob.Compress(content)
	if err != nil {
		return commit.Operation{}, err
	}
	return commit.Operation{
		Type:    commit.OpAdd,
		Path:    path,
		Content: base64.StdEncoding.EncodeToString(compressed),
	}, nil
}

// DeleteFile builds a DELETE operation for path.
func DeleteFile(path string) commit.Operation {
	return commit.Operation{Type: commit.OpDelete, Path: path}
}

func (c *Client) do(method, path string, payload, out any, want int) error {
	body := &bytes.Buffer{}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.access != "" {
		req.Header.Set("Authorization", "Bearer "+c.access)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		var remote struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&remote) == nil && remote.Error != "" {
			return fmt.Errorf("unexpected status %s: %s", resp.Status, remote.Error)
		}
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// Account operations

func (c *Client) Register(username, password string) error {
	payload := map[string]string{"username": username, "password": password}
	return c.do("POST", "/api/users/register", payload, nil, http.StatusCreated)
}

// Login authenticates and keeps the issued tokens for subsequent
// requests.
func (c *Client) Login(username, password string) error {
	payload := map[string]string{"username": username, "password": password}

	var pair struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}
	if err := c.do("POST", "/api/users/login", payload, &pair, http.StatusOK); err != nil {
		return err
	}
	c.access = pair.Access
	c.refresh = pair.Refresh
	return nil
}

// RefreshToken trades the stored refresh token for a fresh access
// token.
func (c *Client) RefreshToken() error {
	payload := map[string]string{"refresh": c.refresh}

	var out struct {
		Access string `json:"access"`
	}
	if err := c.do("POST", "/api/users/token/refresh", payload, &out, http.StatusOK); err != nil {
		return err
	}
	c.access = out.Access
	return nil
}

// Repository operations

func (c *Client) CreateRepository(name, description string) (*Repository, error) {
	payload := map[string]string{"name": name, "description": description}

	var repo Repository
	if err := c.do("POST", "/api/data/repositories", payload, &repo, http.StatusCreated); err != nil {
		return nil, err
	}
	return &repo, nil
}

func (c *Client) Repositories() ([]*Repository, error) {
	var repos []*Repository
	if err := c.do("GET", "/api/data/repositories", nil, &repos, http.StatusOK); err != nil {
		return nil, err
	}
	return repos, nil
}

func (c *Client) Repository(id string) (*Repository, error) {
	var repo Repository
	if err := c.do("GET", "/api/data/repositories/"+id, nil, &repo, http.StatusOK); err != nil {
		return nil, err
	}
	return &repo, nil
}

func (c *Client) RepositoriesByAuthor(username string) ([]*Repository, error) {
	var repos []*Repository
	if err := c.do("GET", "/api/data/repositories/author/"+url.PathEscape(username), nil, &repos, http.StatusOK); err != nil {
		return nil, err
	}
	return repos, nil
}

func (c *Client) DeleteRepository(id string) error {
	return c.do("DELETE", "/api/data/repositories/"+id, nil, nil, http.StatusNoContent)
}

func (c *Client) GenerateLink(repositoryID string) (*ShareLink, error) {
	var link ShareLink
	if err := c.do("POST", "/api/data/repositories/"+repositoryID+"/generate_link", nil, &link, http.StatusCreated); err != nil {
		return nil, err
	}
	return &link, nil
}

// File fetches one live file by sha1, path, or both.
func (c *Client) File(repositoryID, sha1, path string) (*File, error) {
	query := url.Values{}
	if sha1 != "" {
		query.Set("sha1", sha1)
	}
	if path != "" {
		query.Set("path", path)
	}

	var file File
	target := "/api/data/repositories/" + repositoryID + "/file?" + query.Encode()
	if err := c.do("GET", target, nil, &file, http.StatusOK); err != nil {
		return nil, err
	}
	return &file, nil
}

func (c *Client) Structure(repositoryID string) (json.RawMessage, error) {
	var contents json.RawMessage
	if err := c.do("GET", "/api/data/repositories/"+repositoryID+"/structure", nil, &contents, http.StatusOK); err != nil {
		return nil, err
	}
	return contents, nil
}

// Commit operations

// PushCommit sends a batch of operations against the repository behind
// shareToken. Use AddFile and DeleteFile to build the operations.
func (c *Client) PushCommit(shareToken, author, email, message string, operations []commit.Operation) (*Commit, error) {
	payload := map[string]any{
		"share_token": shareToken,
		"author":      author,
		"email":       email,
		"message":     message,
		"operations":  operations,
	}

	var result Commit
	if err := c.do("POST", "/api/data/commits", payload, &result, http.StatusCreated); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Commit(hash string) (*Commit, error) {
	var result Commit
	if err := c.do("GET", "/api/data/commits/"+hash, nil, &result, http.StatusOK); err != nil {
		return nil, err
	}
	return &result, nil
}

// Share link operations

func (c *Client) CheckLink(token string) (*LinkStatus, error) {
	var status LinkStatus
	if err := c.do("GET", "/api/data/share-links/"+token+"/check", nil, &status, http.StatusOK); err != nil {
		return nil, err
	}
	return &status, nil
}

// SharedRepository fetches the repository behind a share link without
// authenticating.
func (c *Client) SharedRepository(token string) (*Repository, error) {
	var repo Repository
	if err := c.do("GET", "/api/data/share-links/"+token+"/repository", nil, &repo, http.StatusOK); err != nil {
		return nil, err
	}
	return &repo, nil
}
