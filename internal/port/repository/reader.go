// Package repository defines the read-only repository access port used by
// stack detection.
package repository

import (
	"context"
	"errors"
	"strings"
)

// Sentinel errors returned by Reader implementations. Adapters wrap them so
// callers can classify failures with errors.Is.
var (
	ErrNotFound    = errors.New("repository or ref not found")
	ErrUnreachable = errors.New("repository host unreachable")
	ErrRateLimited = errors.New("repository host rate limit exceeded")
)

// EntryType distinguishes files from directories in a listing.
type EntryType string

const (
	EntryFile EntryType = "file"
	EntryDir  EntryType = "dir"
)

// Ref scopes every read to one repository at one branch or commit.
// An empty Branch means the host's default branch.
type Ref struct {
	Owner  string `json:"owner"`
	Repo   string `json:"repo"`
	Branch string `json:"branch,omitempty"`
}

// String returns "owner/repo" or "owner/repo@branch".
func (r Ref) String() string {
	s := r.Owner + "/" + r.Repo
	if r.Branch != "" {
		s += "@" + r.Branch
	}
	return s
}

// ParseRef parses "owner/repo" or "owner/repo@branch".
func ParseRef(s string) (Ref, error) {
	var ref Ref
	slug, branch, _ := strings.Cut(strings.TrimSpace(s), "@")
	owner, repo, ok := strings.Cut(slug, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return ref, errors.New("expected owner/repo[@branch]")
	}
	ref.Owner = owner
	ref.Repo = strings.TrimSuffix(repo, ".git")
	ref.Branch = branch
	return ref, nil
}

// Entry is one item of a directory listing.
type Entry struct {
	Name string    `json:"name"`
	Path string    `json:"path"`
	Type EntryType `json:"type"`
}

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool { return e.Type == EntryDir }

// Reader is the port interface for reading a hosted repository.
type Reader interface {
	// Name returns the unique identifier for this reader (e.g. "github", "local").
	Name() string

	// ListEntries lists the entries of dir. An empty dir lists the repository root.
	ListEntries(ctx context.Context, ref Ref, dir string) ([]Entry, error)

	// GetFileText returns the raw text of path. found is false when the file
	// does not exist; err is reserved for transport or auth failures.
	GetFileText(ctx context.Context, ref Ref, path string) (text string, found bool, err error)
}
