// Package gitlocal implements a repository.Reader over local checkouts.
// Without a branch it reads the working tree; with one it reads the
// committed tree through the git CLI.
package gitlocal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/deploypilot/deploypilot/internal/git"
	"github.com/deploypilot/deploypilot/internal/port/repository"
)

const readerName = "local"

// maxFileBytes bounds how much of a single file is read.
const maxFileBytes = 8 << 20

// errOutsideRoot is returned for paths that would escape the repository.
var errOutsideRoot = errors.New("path escapes repository root")

// Reader resolves repositories as <root>/<owner>/<repo>.
type Reader struct {
	root   string
	runner *git.Runner
}

// NewReader creates a Reader rooted at root. Branch reads run git through
// runner; a nil runner does not bound them.
func NewReader(root string, runner *git.Runner) *Reader {
	return &Reader{root: root, runner: runner}
}

func (r *Reader) Name() string { return readerName }

// ListEntries lists dir. The .git directory is never reported.
func (r *Reader) ListEntries(ctx context.Context, ref repository.Ref, dir string) ([]repository.Entry, error) {
	repoDir, err := r.repoDir(ref)
	if err != nil {
		return nil, fmt.Errorf("gitlocal list %s: %w", ref, err)
	}
	rel, err := cleanRel(dir)
	if err != nil {
		return nil, fmt.Errorf("gitlocal list %s/%s: %w", ref, dir, err)
	}

	if ref.Branch != "" {
		entries, err := r.listTree(ctx, repoDir, ref.Branch, rel)
		if err != nil {
			return nil, fmt.Errorf("gitlocal list %s/%s: %w", ref, dir, err)
		}
		return entries, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dirents, err := readDir(repoDir, rel)
	if err != nil {
		return nil, fmt.Errorf("gitlocal list %s/%s: %w", ref, dir, fsError(err))
	}

	entries := make([]repository.Entry, 0, len(dirents))
	for _, d := range dirents {
		if d.Name() == ".git" {
			continue
		}
		typ := repository.EntryFile
		if d.IsDir() {
			typ = repository.EntryDir
		}
		entries = append(entries, repository.Entry{Name: d.Name(), Path: path.Join(rel, d.Name()), Type: typ})
	}
	return entries, nil
}

// GetFileText reads path. Missing files and directories report found=false.
func (r *Reader) GetFileText(ctx context.Context, ref repository.Ref, p string) (string, bool, error) {
	repoDir, err := r.repoDir(ref)
	if err != nil {
		return "", false, fmt.Errorf("gitlocal get %s: %w", ref, err)
	}
	rel, err := cleanRel(p)
	if err != nil || rel == "" {
		return "", false, nil
	}

	if ref.Branch != "" {
		return r.showFile(ctx, repoDir, ref.Branch, rel)
	}

	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	data, err := readFile(repoDir, rel)
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, errIsDir):
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("gitlocal get %s/%s: %w", ref, p, fsError(err))
	}
	return string(data), true, nil
}

var errIsDir = errors.New("is a directory")

// readDir lists rel inside repoDir. os.Root rejects symlinks that leave the
// repository.
func readDir(repoDir, rel string) ([]fs.DirEntry, error) {
	root, err := os.OpenRoot(repoDir)
	if err != nil {
		return nil, err
	}
	defer func() { _ = root.Close() }()

	if rel == "" {
		rel = "."
	}
	f, err := root.Open(filepath.FromSlash(rel))
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	entries, err := f.ReadDir(-1)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(entries, func(a, b fs.DirEntry) int { return strings.Compare(a.Name(), b.Name()) })
	return entries, nil
}

// readFile reads rel inside repoDir, up to maxFileBytes.
func readFile(repoDir, rel string) ([]byte, error) {
	root, err := os.OpenRoot(repoDir)
	if err != nil {
		return nil, err
	}
	defer func() { _ = root.Close() }()

	f, err := root.Open(filepath.FromSlash(rel))
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, errIsDir
	}
	return io.ReadAll(io.LimitReader(f, maxFileBytes))
}

// repoDir resolves and checks the repository directory.
func (r *Reader) repoDir(ref repository.Ref) (string, error) {
	for _, part := range []string{ref.Owner, ref.Repo} {
		if part == "" || part == "." || part == ".." || strings.ContainsAny(part, `/\`) {
			return "", fmt.Errorf("invalid repository name %q: %w", part, repository.ErrNotFound)
		}
	}
	dir := filepath.Join(r.root, ref.Owner, ref.Repo)
	info, err := os.Stat(dir)
	if err != nil {
		return "", fsError(err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory: %w", dir, repository.ErrNotFound)
	}
	return dir, nil
}

// cleanRel normalizes a slash-separated relative path. "" is the root.
func cleanRel(p string) (string, error) {
	p = strings.Trim(strings.ReplaceAll(p, `\`, "/"), "/")
	if p == "" {
		return "", nil
	}
	c := path.Clean(p)
	if c == "." {
		return "", nil
	}
	if c == ".." || strings.HasPrefix(c, "../") {
		return "", fmt.Errorf("%q: %w", p, errOutsideRoot)
	}
	return c, nil
}

// fsError maps filesystem failures onto the repository sentinels.
func fsError(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %w", repository.ErrNotFound, err)
	default:
		return fmt.Errorf("%w: %w", repository.ErrUnreachable, err)
	}
}

// listTree lists a directory of the committed tree at branch.
func (r *Reader) listTree(ctx context.Context, repoDir, branch, rel string) ([]repository.Entry, error) {
	if err := checkBranch(branch); err != nil {
		return nil, err
	}
	treeish := branch
	if rel != "" {
		treeish += ":" + rel
	}

	out, err := r.runner.Output(ctx, repoDir, "ls-tree", treeish)
	if err != nil {
		return nil, gitError(ctx, err)
	}

	var entries []repository.Entry
	for _, line := range strings.Split(out, "\n") {
		// "<mode> <type> <object>\t<name>"
		meta, name, ok := strings.Cut(line, "\t")
		if !ok || name == "" {
			continue
		}
		fields := strings.Fields(meta)
		typ := repository.EntryFile
		if len(fields) >= 2 && fields[1] == "tree" {
			typ = repository.EntryDir
		}
		entries = append(entries, repository.Entry{Name: name, Path: path.Join(rel, name), Type: typ})
	}
	return entries, nil
}

// showFile reads one blob of the committed tree at branch.
func (r *Reader) showFile(ctx context.Context, repoDir, branch, rel string) (string, bool, error) {
	if err := checkBranch(branch); err != nil {
		return "", false, err
	}

	out, err := r.runner.Output(ctx, repoDir, "cat-file", "blob", branch+":"+rel)
	if err != nil {
		err = gitError(ctx, err)
		if errors.Is(err, repository.ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	if len(out) > maxFileBytes {
		out = out[:maxFileBytes]
	}
	return out, true, nil
}

// checkBranch rejects refs that git would parse as options.
func checkBranch(branch string) error {
	if strings.HasPrefix(branch, "-") || strings.ContainsAny(branch, " \t\n:") {
		return fmt.Errorf("invalid branch %q: %w", branch, repository.ErrNotFound)
	}
	return nil
}

// gitError maps a git failure: a non-zero exit means the ref or path is
// missing, anything else means git could not run.
func gitError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var exitErr *git.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("%w: %w", repository.ErrNotFound, err)
	}
	return fmt.Errorf("%w: %w", repository.ErrUnreachable, err)
}
