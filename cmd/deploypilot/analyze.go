package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/term"

	"github.com/deploypilot/deploypilot/internal/domain/analysis"
	"github.com/deploypilot/deploypilot/internal/logger"
	"github.com/deploypilot/deploypilot/internal/port/repository"
	"github.com/deploypilot/deploypilot/internal/service"
)

// analyzeOptions holds the parsed analyze flags.
type analyzeOptions struct {
	ref        repository.Ref
	asJSON     bool
	provider   string
	root       string
	configPath string
}

// parseAnalyzeArgs accepts flags before and after the repository argument.
func parseAnalyzeArgs(args []string) (*analyzeOptions, error) {
	opts := &analyzeOptions{}
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	fs.BoolVar(&opts.asJSON, "json", false, "print the analysis as JSON")
	fs.StringVar(&opts.provider, "provider", "", "repository reader: github or local (default from config)")
	fs.StringVar(&opts.root, "root", "", "checkout root for the local reader (<root>/<owner>/<repo>)")
	fs.StringVar(&opts.configPath, "config", "", "YAML config file (default deploypilot.yaml if present)")
	branch := fs.String("branch", "", "branch to analyze; overrides an @branch suffix")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: deploypilot analyze [options] owner/repo[@branch]\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return nil, errors.New("repository argument is required")
	}
	target := fs.Arg(0)
	if err := fs.Parse(fs.Args()[1:]); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	ref, err := repository.ParseRef(target)
	if err != nil {
		return nil, fmt.Errorf("repository %q: %w", target, err)
	}
	if *branch != "" {
		ref.Branch = *branch
	}
	opts.ref = ref
	return opts, nil
}

// runAnalyze analyzes one repository without the cache, history or events.
func runAnalyze(args []string) error {
	opts, err := parseAnalyzeArgs(args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if opts.provider != "" {
		cfg.Reader.Provider = opts.provider
	}
	if opts.root != "" {
		cfg.Local.Root = opts.root
	}

	log, logCloser := logger.NewWriter(cfg.Logging, os.Stderr)
	defer logCloser.Close()
	slog.SetDefault(log)

	reader, err := newReader(cfg, cfg.Reader.Provider, nil)
	if err != nil {
		return err
	}
	svc := service.NewAnalysisService(newExtractor(cfg, reader))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.Analysis.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Analysis.Timeout)
		defer cancel()
	}

	log.DebugContext(ctx, "analyzing", "repo", opts.ref.String(), "reader", reader.Name())
	a, err := svc.Analyze(ctx, opts.ref.Owner, opts.ref.Repo, opts.ref.Branch, service.AnalyzeOptions{})
	if err != nil {
		return fmt.Errorf("analyze %s: %w", opts.ref, err)
	}

	if opts.asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(a)
	}
	renderAnalysis(os.Stdout, a, term.IsTerminal(int(os.Stdout.Fd()))) //nolint:gosec // Fd fits in int
	return nil
}

// renderAnalysis prints the detected stack and the platform ranking as
// tables. Color is only used on terminals.
func renderAnalysis(w io.Writer, a *analysis.RepositoryAnalysis, color bool) {
	style := table.StyleLight
	if color {
		style = table.StyleColoredBright
	}

	summary := table.NewWriter()
	summary.SetOutputMirror(w)
	summary.SetTitle("%s/%s", a.Owner, a.RepoName)
	summary.AppendRows([]table.Row{
		{"Project type", a.Type()},
		{"Language", orDash(a.Language)},
		{"Framework", orDash(a.Framework)},
		{"Backend", orDash(a.BackendFramework)},
		{"Build tool", orDash(a.BuildTool)},
		{"Package manager", orDash(a.PackageManager)},
		{"Technologies", orDash(strings.Join(a.DetectedTechnologies, ", "))},
	})
	summary.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, WidthMax: 72},
	})
	summary.SetStyle(style)
	summary.Render()

	ranking := table.NewWriter()
	ranking.SetOutputMirror(w)
	ranking.AppendHeader(table.Row{"", "PLATFORM", "SCORE", "REASON", "FEATURES"})
	for _, s := range a.Suggestions {
		mark := ""
		if s.IsRecommended {
			mark = "*"
		}
		ranking.AppendRow(table.Row{mark, s.Platform, s.Score, s.Reason, strings.Join(s.DetectedFeatures, ", ")})
	}
	ranking.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignCenter},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, WidthMax: 60},
		{Number: 5, WidthMax: 40},
	})
	ranking.SetStyle(style)
	ranking.Render()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
