package stack

import (
	"context"
	"log/slog"
	"strings"
)

func detectDocker(_ context.Context, sc *scan, out *TechSignals) {
	for _, m := range dockerMarkers {
		if !sc.hasFile(m) {
			continue
		}
		out.MarkDocker()
		out.AddTechnology("Docker")
		if strings.Contains(m, "compose") {
			out.AddTechnology("Docker Compose")
		}
	}
}

// detectConfigFiles fills gaps left by manifest detection from framework
// config filenames. Manifest results always take priority.
func detectConfigFiles(sc *scan, out *TechSignals) {
	for _, rule := range configFiles {
		if !configPresent(sc, rule) {
			continue
		}
		if rule.Framework != "" {
			adoptFramework(out, rule.Framework)
		}
		if rule.BuildTool != "" && out.SetBuildTool(rule.BuildTool) {
			out.AddTechnology(rule.BuildTool)
		}
		if rule.Technology != "" {
			out.AddTechnology(rule.Technology)
		}
	}
}

func configPresent(sc *scan, rule configRule) bool {
	if rule.Exact != "" {
		return sc.hasFile(rule.Exact)
	}
	_, ok := sc.fileWithPrefix(rule.Prefix)
	return ok
}

// detectStaticSite treats a root index.html without package.json as a plain
// static site. It must run after every manifest detector.
func detectStaticSite(sc *scan, out *TechSignals) {
	if !sc.hasFile("index.html") || sc.hasFile("package.json") {
		return
	}
	out.MarkStatic()
	out.ForceFramework(staticHTMLFramework)
	out.AddTechnology(staticHTMLFramework)
	out.UpgradeProjectType(ProjectFrontend)
}

// probeStructure marks API routes when pages/api exists and labels a public
// asset directory.
func probeStructure(ctx context.Context, sc *scan, out *TechSignals) {
	if sc.hasDir(apiRoutesParent) && hasSubdir(ctx, sc, apiRoutesParent, "api") {
		out.MarkAPIRoutes()
		out.AddTechnology(apiRoutesLabel)
		if out.Type() == ProjectFrontend {
			out.UpgradeProjectType(ProjectBackend)
		}
	}
	if sc.hasDir("public") {
		out.AddTechnology(staticAssetsLabel)
	}
}

func hasSubdir(ctx context.Context, sc *scan, dir, name string) bool {
	entries, err := sc.reader.ListEntries(ctx, sc.ref, dir)
	if err != nil {
		slog.WarnContext(ctx, "directory probe failed",
			"repo", sc.ref.String(), "path", dir, "error", classify("list "+dir, err))
		return false
	}
	for _, e := range entries {
		if e.IsDir() && e.Name == name {
			return true
		}
	}
	return false
}
