// Package github implements a repository.Reader backed by the GitHub REST
// contents API.
package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/deploypilot/deploypilot/internal/port/repository"
	"github.com/deploypilot/deploypilot/internal/resilience"
	"github.com/deploypilot/deploypilot/internal/secrets"
)

const (
	readerName = "github"

	// DefaultAPIURL is the public GitHub REST endpoint.
	DefaultAPIURL = "https://api.github.com"

	acceptJSON = "application/vnd.github+json"
	acceptRaw  = "application/vnd.github.raw"
	apiVersion = "2022-11-28"

	// maxResponseBytes bounds how much of a single response is read.
	maxResponseBytes = 8 << 20
)

// Reader reads repository listings and files over the GitHub REST API.
type Reader struct {
	baseURL    string
	token      string
	tokenFile  *secrets.FileSecret
	httpClient *http.Client
	breaker    *resilience.Breaker
	etags      *lru.Cache[string, cachedResponse]
}

// cachedResponse is a 200 body kept for conditional requests.
type cachedResponse struct {
	etag        string
	contentType string
	body        []byte
}

// Option configures a Reader.
type Option func(*Reader)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Reader) {
		if c != nil {
			r.httpClient = c
		}
	}
}

// WithBreaker guards every request with b.
func WithBreaker(b *resilience.Breaker) Option {
	return func(r *Reader) { r.breaker = b }
}

// WithTokenFile reads the token from f on every request instead of the
// static token. A 401 response re-reads the file so a rotated token is used
// from the next request on.
func WithTokenFile(f *secrets.FileSecret) Option {
	return func(r *Reader) { r.tokenFile = f }
}

// WithETagCache keeps up to size responses for If-None-Match revalidation.
// A size below 1 disables the cache.
func WithETagCache(size int) Option {
	return func(r *Reader) {
		if size < 1 {
			r.etags = nil
			return
		}
		c, err := lru.New[string, cachedResponse](size)
		if err == nil {
			r.etags = c
		}
	}
}

// NewReader creates a GitHub reader. An empty baseURL uses DefaultAPIURL;
// an empty token sends unauthenticated requests.
func NewReader(baseURL, token string, opts ...Option) *Reader {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	r := &Reader{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reader) Name() string { return readerName }

// contentItem mirrors one element of the contents API directory listing.
type contentItem struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Type string `json:"type"`
}

// contentFile mirrors the contents API response for a single file.
type contentFile struct {
	Type     string `json:"type"`
	Encoding string `json:"encoding"`
	Content  string `json:"content"`
}

// ListEntries lists dir. Symlinks and submodules are reported as files.
func (r *Reader) ListEntries(ctx context.Context, ref repository.Ref, dir string) ([]repository.Entry, error) {
	body, _, err := r.get(ctx, r.contentsURL(ref, dir), acceptJSON)
	if err != nil {
		return nil, fmt.Errorf("github list %s/%s: %w", ref, dir, err)
	}

	var items []contentItem
	if err := json.Unmarshal(body, &items); err != nil {
		// A file path answers with an object rather than an array.
		return nil, fmt.Errorf("github list %s/%s: not a directory: %w", ref, dir, repository.ErrNotFound)
	}

	entries := make([]repository.Entry, 0, len(items))
	for _, it := range items {
		typ := repository.EntryFile
		if it.Type == "dir" {
			typ = repository.EntryDir
		}
		entries = append(entries, repository.Entry{Name: it.Name, Path: it.Path, Type: typ})
	}
	return entries, nil
}

// GetFileText fetches path using the raw media type. A 404 reports
// found=false without an error.
func (r *Reader) GetFileText(ctx context.Context, ref repository.Ref, path string) (string, bool, error) {
	body, contentType, err := r.get(ctx, r.contentsURL(ref, path), acceptRaw)
	if errors.Is(err, repository.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("github get %s/%s: %w", ref, path, err)
	}

	text, err := decodeFile(body, contentType)
	if err != nil {
		return "", false, fmt.Errorf("github get %s/%s: %w", ref, path, err)
	}
	return text, true, nil
}

// decodeFile returns the file text. Servers that ignore the raw media type
// answer with the JSON envelope and base64 content.
func decodeFile(body []byte, contentType string) (string, error) {
	if !strings.HasPrefix(contentType, "application/json") {
		return string(body), nil
	}
	var f contentFile
	if err := json.Unmarshal(body, &f); err != nil || f.Type == "" {
		return string(body), nil
	}
	if f.Type != "file" {
		return "", fmt.Errorf("path is a %s: %w", f.Type, repository.ErrNotFound)
	}
	if f.Encoding != "base64" {
		return f.Content, nil
	}
	raw, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(f.Content, "\n", ""))
	if err != nil {
		return "", fmt.Errorf("decode content: %w", err)
	}
	return string(raw), nil
}

func (r *Reader) contentsURL(ref repository.Ref, path string) string {
	var b strings.Builder
	b.WriteString(r.baseURL)
	b.WriteString("/repos/")
	b.WriteString(url.PathEscape(ref.Owner))
	b.WriteString("/")
	b.WriteString(url.PathEscape(ref.Repo))
	b.WriteString("/contents")
	for _, seg := range strings.Split(strings.Trim(path, "/"), "/") {
		if seg == "" {
			continue
		}
		b.WriteString("/")
		b.WriteString(url.PathEscape(seg))
	}
	if ref.Branch != "" {
		b.WriteString("?ref=")
		b.WriteString(url.QueryEscape(ref.Branch))
	}
	return b.String()
}

// get performs a GET through the breaker. Only ErrUnreachable failures
// count against the breaker.
func (r *Reader) get(ctx context.Context, reqURL, accept string) ([]byte, string, error) {
	if r.breaker == nil {
		return r.doRequest(ctx, reqURL, accept)
	}

	var (
		body        []byte
		contentType string
	)
	err := r.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		body, contentType, err = r.doRequest(ctx, reqURL, accept)
		return err
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return nil, "", fmt.Errorf("%w: %w", repository.ErrUnreachable, err)
	}
	return body, contentType, err
}

func (r *Reader) doRequest(ctx context.Context, reqURL, accept string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if token := r.currentToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	cacheKey := accept + " " + reqURL
	cached, haveCached := r.cached(cacheKey)
	if haveCached {
		req.Header.Set("If-None-Match", cached.etag)
	}

	resp, err := r.httpClient.Do(req) //nolint:gosec // URL is built from the configured API base and escaped path segments
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, "", ctxErr
		}
		return nil, "", fmt.Errorf("%w: %w", repository.ErrUnreachable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotModified && haveCached {
		slog.DebugContext(ctx, "github conditional hit", "url", reqURL)
		return cached.body, cached.contentType, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, "", fmt.Errorf("%w: read response: %w", repository.ErrUnreachable, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		r.reloadToken(ctx)
	}
	if err := statusError(resp, body); err != nil {
		return nil, "", err
	}

	contentType := resp.Header.Get("Content-Type")
	if etag := resp.Header.Get("ETag"); etag != "" && r.etags != nil {
		r.etags.Add(cacheKey, cachedResponse{etag: etag, contentType: contentType, body: body})
	}
	return body, contentType, nil
}

func (r *Reader) currentToken() string {
	if r.tokenFile != nil {
		return r.tokenFile.Value()
	}
	return r.token
}

func (r *Reader) reloadToken(ctx context.Context) {
	if r.tokenFile == nil {
		return
	}
	changed, err := r.tokenFile.Reload()
	switch {
	case err != nil:
		slog.WarnContext(ctx, "github token reload failed", "path", r.tokenFile.Path(), "error", err)
	case changed:
		slog.InfoContext(ctx, "github token rotated after 401", "token", r.tokenFile.Redacted())
	default:
		slog.WarnContext(ctx, "github token rejected and unchanged on disk",
			"path", r.tokenFile.Path(), "token", r.tokenFile.Redacted())
	}
}

func (r *Reader) cached(key string) (cachedResponse, bool) {
	if r.etags == nil {
		return cachedResponse{}, false
	}
	return r.etags.Get(key)
}

// statusError maps a non-2xx response onto the repository sentinels.
func statusError(resp *http.Response, body []byte) error {
	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return repository.ErrNotFound
	case code == http.StatusTooManyRequests,
		code == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0":
		if reset := resp.Header.Get("X-RateLimit-Reset"); reset != "" {
			return fmt.Errorf("%w (resets at %s)", repository.ErrRateLimited, reset)
		}
		return repository.ErrRateLimited
	default:
		return fmt.Errorf("%w: github API %d: %s", repository.ErrUnreachable, code, truncate(body, 200))
	}
}

func truncate(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
