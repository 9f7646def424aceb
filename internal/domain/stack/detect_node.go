package stack

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
)

// packageJSON holds the parts of package.json that detection reads.
type packageJSON struct {
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
	Scripts         map[string]string `json:"scripts"`
}

func detectNode(ctx context.Context, sc *scan, out *TechSignals) {
	if !sc.hasFile("package.json") {
		return
	}
	text, ok := sc.readWhole(ctx, "package.json")
	if !ok {
		return
	}
	var pkg packageJSON
	if err := json.Unmarshal([]byte(text), &pkg); err != nil {
		sc.malformed(ctx, "package.json", err)
		return
	}

	out.SetLanguage("JavaScript")
	out.AddTechnology("Node.js")
	out.SetPackageManager(nodePackageManager(sc))

	deps := make(map[string]bool, len(pkg.Dependencies)+len(pkg.DevDependencies))
	for name := range pkg.Dependencies {
		deps[strings.ToLower(name)] = true
	}
	for name := range pkg.DevDependencies {
		deps[strings.ToLower(name)] = true
	}

	if deps["typescript"] {
		out.SetLanguage("TypeScript")
		out.AddTechnology("TypeScript")
	}

	if fw := firstDep(nodeFrameworks, deps); fw != "" {
		adoptFramework(out, fw)
	}
	if be := firstDep(nodeBackends, deps); be != "" {
		out.SetBackendFramework(be)
		out.AddTechnology(be)
		out.MarkAPIRoutes()
		out.UpgradeProjectType(ProjectBackend)
	}

	for _, db := range nodeDatabases {
		if anyDep(db.Packages, deps) {
			out.AddTechnology(db.Label)
			if db.Database {
				out.MarkDatabase()
			}
		}
	}

	if tool := firstDep(nodeBuildTools, deps); tool != "" {
		out.SetBuildTool(tool)
		out.AddTechnology(tool)
	}

	if anyDep(nodeEdgePackages, deps) {
		out.MarkEdgeFunctions()
		out.AddTechnology("Edge Functions")
	}

	applyScripts(pkg.Scripts, out)
}

// nodePackageManager picks the package manager from the first lockfile present.
func nodePackageManager(sc *scan) string {
	for _, lf := range nodeLockfiles {
		if sc.hasFile(lf.File) {
			return lf.Manager
		}
	}
	return defaultNodePackageManager
}

// applyScripts scans script bodies in name order so results are deterministic.
func applyScripts(scripts map[string]string, out *TechSignals) {
	names := make([]string, 0, len(scripts))
	for name := range scripts {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		body := strings.ToLower(scripts[name])
		for _, rule := range nodeBuildScripts {
			if !strings.Contains(body, rule.Substring) {
				continue
			}
			if rule.Framework != "" {
				adoptFramework(out, rule.Framework)
			}
			if rule.BuildTool != "" && out.SetBuildTool(rule.BuildTool) {
				out.AddTechnology(rule.BuildTool)
			}
			if rule.Static {
				out.MarkStatic()
			}
		}
	}

	start := strings.ToLower(scripts["start"])
	for _, s := range nodeServerStarts {
		if strings.Contains(start, s) {
			out.UpgradeProjectType(ProjectBackend)
			break
		}
	}
}

func anyDep(packages []string, deps map[string]bool) bool {
	for _, p := range packages {
		if deps[p] {
			return true
		}
	}
	return false
}
