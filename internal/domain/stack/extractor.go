package stack

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/deploypilot/deploypilot/internal/port/repository"
)

const (
	// DefaultMaxManifestBytes caps how much of a manifest is scanned.
	DefaultMaxManifestBytes = 256 * 1024
	// DefaultMaxParallel bounds concurrent ecosystem detectors.
	DefaultMaxParallel = 4
)

// detector inspects one ecosystem and writes into its own partial signals.
type detector struct {
	name string
	run  func(ctx context.Context, sc *scan, out *TechSignals)
}

// ecosystemDetectors run concurrently; their partials are merged in this order,
// so later entries win the language field.
var ecosystemDetectors = buildEcosystemDetectors()

func buildEcosystemDetectors() []detector {
	ds := []detector{
		{name: "node", run: detectNode},
		{name: "python", run: detectPython},
	}
	for i := range backendEcosystems {
		eco := &backendEcosystems[i]
		ds = append(ds, detector{
			name: eco.Name,
			run: func(ctx context.Context, sc *scan, out *TechSignals) {
				detectEcosystem(ctx, sc, eco, out)
			},
		})
	}
	return append(ds, detector{name: "docker", run: detectDocker})
}

// Extractor builds TechSignals for a repository through a repository.Reader.
// It holds no per-analysis state and is safe for concurrent use.
type Extractor struct {
	reader      repository.Reader
	maxParallel int
	maxBytes    int
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMaxParallel bounds how many ecosystem detectors run at once.
// Values below 1 run them sequentially.
func WithMaxParallel(n int) Option {
	return func(e *Extractor) {
		if n < 1 {
			n = 1
		}
		e.maxParallel = n
	}
}

// WithMaxManifestBytes caps how much of each manifest is scanned.
func WithMaxManifestBytes(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxBytes = n
		}
	}
}

// NewExtractor creates an Extractor reading through reader.
func NewExtractor(reader repository.Reader, opts ...Option) *Extractor {
	e := &Extractor{
		reader:      reader,
		maxParallel: DefaultMaxParallel,
		maxBytes:    DefaultMaxManifestBytes,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Analyze lists the repository root, runs every detector and returns the
// merged signals. Only a failure to list the root aborts the analysis; it is
// reported as an *AnalysisError.
func (e *Extractor) Analyze(ctx context.Context, owner, repoName, branch string) (*TechSignals, error) {
	ref := repository.Ref{Owner: owner, Repo: repoName, Branch: branch}

	entries, err := e.reader.ListEntries(ctx, ref, "")
	if err != nil {
		return nil, classify("list "+ref.String(), err)
	}
	sc := newScan(ref, e.reader, entries, e.maxBytes)

	partials := make([]*TechSignals, len(ecosystemDetectors))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxParallel)
	for i, d := range ecosystemDetectors {
		g.Go(func() error {
			out := &TechSignals{}
			d.run(gctx, sc, out)
			partials[i] = out
			return nil
		})
	}
	_ = g.Wait() // detectors swallow their own failures
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	signals := NewTechSignals()
	for _, p := range partials {
		signals.Merge(p)
	}

	detectConfigFiles(sc, signals)
	detectStaticSite(sc, signals)
	probeStructure(ctx, sc, signals)

	slog.DebugContext(ctx, "stack detected",
		"repo", ref.String(),
		"language", signals.Language,
		"framework", signals.Framework,
		"backend_framework", signals.BackendFramework,
		"project_type", signals.ProjectType,
	)
	return signals, nil
}

// scan is the read-only view of one repository shared by all detectors.
type scan struct {
	ref      repository.Ref
	reader   repository.Reader
	entries  []repository.Entry
	byName   map[string]repository.Entry
	maxBytes int
}

func newScan(ref repository.Ref, reader repository.Reader, entries []repository.Entry, maxBytes int) *scan {
	byName := make(map[string]repository.Entry, len(entries))
	for _, e := range entries {
		byName[e.Name] = e
	}
	return &scan{ref: ref, reader: reader, entries: entries, byName: byName, maxBytes: maxBytes}
}

func (sc *scan) hasFile(name string) bool {
	e, ok := sc.byName[name]
	return ok && !e.IsDir()
}

func (sc *scan) hasDir(name string) bool {
	e, ok := sc.byName[name]
	return ok && e.IsDir()
}

func (sc *scan) hasAnyFile(names ...string) bool {
	for _, n := range names {
		if sc.hasFile(n) {
			return true
		}
	}
	return false
}

// fileWithPrefix returns the first root file whose name starts with prefix.
func (sc *scan) fileWithPrefix(prefix string) (string, bool) {
	for _, e := range sc.entries {
		if !e.IsDir() && strings.HasPrefix(e.Name, prefix) {
			return e.Name, true
		}
	}
	return "", false
}

// fileWithSuffix returns the first root file whose name ends with suffix.
func (sc *scan) fileWithSuffix(suffix string) (string, bool) {
	for _, e := range sc.entries {
		if !e.IsDir() && strings.HasSuffix(e.Name, suffix) {
			return e.Name, true
		}
	}
	return "", false
}

// read fetches a manifest whose text is only substring-scanned. Text past
// maxBytes is dropped. Missing files and fetch failures both report false;
// failures are logged and never abort the analysis.
func (sc *scan) read(ctx context.Context, path string) (string, bool) {
	text, ok := sc.fetch(ctx, path)
	if ok && sc.maxBytes > 0 && len(text) > sc.maxBytes {
		text = text[:sc.maxBytes]
	}
	return text, ok
}

// readWhole fetches a manifest that is parsed. A manifest larger than
// maxBytes cannot be parsed from a prefix, so it is skipped.
func (sc *scan) readWhole(ctx context.Context, path string) (string, bool) {
	text, ok := sc.fetch(ctx, path)
	if ok && sc.maxBytes > 0 && len(text) > sc.maxBytes {
		slog.WarnContext(ctx, "manifest skipped",
			"repo", sc.ref.String(),
			"path", path,
			"size", len(text),
			"limit", sc.maxBytes,
		)
		return "", false
	}
	return text, ok
}

func (sc *scan) fetch(ctx context.Context, path string) (string, bool) {
	text, found, err := sc.reader.GetFileText(ctx, sc.ref, path)
	if err != nil {
		slog.WarnContext(ctx, "manifest fetch failed",
			"repo", sc.ref.String(), "path", path, "error", classify("fetch "+path, err))
		return "", false
	}
	return text, found
}

// malformed logs a manifest that failed to parse.
func (sc *scan) malformed(ctx context.Context, path string, err error) {
	slog.WarnContext(ctx, "manifest skipped",
		"repo", sc.ref.String(),
		"path", path,
		"error", &AnalysisError{Kind: KindMalformedManifest, Op: "parse " + path, Err: err},
	)
}

// firstDep returns the label of the first rule with a package in deps.
func firstDep(rules []depRule, deps map[string]bool) string {
	for _, r := range rules {
		for _, p := range r.Packages {
			if deps[p] {
				return r.Label
			}
		}
	}
	return ""
}

// firstSubstring returns the label of the first rule with a package
// contained in text. text must already be lower-case.
func firstSubstring(rules []depRule, text string) string {
	for _, r := range rules {
		if containsAny(text, r.Packages) {
			return r.Label
		}
	}
	return ""
}

func containsAny(text string, subs []string) bool {
	for _, s := range subs {
		if strings.Contains(text, s) {
			return true
		}
	}
	return false
}

// adoptFramework sets the frontend framework and, if it was taken, the
// traits it implies.
func adoptFramework(out *TechSignals, name string) {
	if !out.SetFramework(name) {
		return
	}
	out.AddTechnology(name)
	out.UpgradeProjectType(ProjectFrontend)
	if ssrFrameworks[name] {
		out.MarkServerSideRendering()
	}
}
