package stack

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

func detectPython(ctx context.Context, sc *scan, out *TechSignals) {
	if !sc.hasAnyFile(pythonMarkers...) {
		return
	}
	out.SetLanguage("Python")
	out.AddTechnology("Python")
	out.UpgradeProjectType(ProjectBackend)

	text, ok := pythonRequirements(ctx, sc)
	if !ok {
		return
	}

	if fw := firstSubstring(pythonFrameworks, text); fw != "" {
		out.SetBackendFramework(fw)
		out.AddTechnology(fw)
		out.MarkAPIRoutes()
	}
	for _, db := range pythonDatabases {
		if !containsAny(text, db.Packages) {
			continue
		}
		out.AddTechnology(db.Label)
		if db.Database {
			out.MarkDatabase()
		}
	}
}

// pythonRequirements returns lower-cased dependency text. requirements.txt is
// preferred; pyproject.toml and Pipfile are parsed when it is absent.
func pythonRequirements(ctx context.Context, sc *scan) (string, bool) {
	if sc.hasFile("requirements.txt") {
		text, ok := sc.read(ctx, "requirements.txt")
		return strings.ToLower(text), ok
	}

	for _, m := range []struct {
		path  string
		parse func(string) ([]string, error)
	}{
		{path: "pyproject.toml", parse: pyprojectDependencies},
		{path: "Pipfile", parse: pipfilePackages},
	} {
		if !sc.hasFile(m.path) {
			continue
		}
		text, ok := sc.readWhole(ctx, m.path)
		if !ok {
			continue
		}
		deps, err := m.parse(text)
		if err != nil {
			sc.malformed(ctx, m.path, err)
			continue
		}
		return strings.ToLower(strings.Join(deps, "\n")), true
	}
	return "", false
}

type pyproject struct {
	Project struct {
		Dependencies []string `toml:"dependencies"`
	} `toml:"project"`
	Tool struct {
		Poetry struct {
			Dependencies map[string]any `toml:"dependencies"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

func pyprojectDependencies(text string) ([]string, error) {
	var p pyproject
	if _, err := toml.Decode(text, &p); err != nil {
		return nil, fmt.Errorf("decode pyproject.toml: %w", err)
	}
	deps := append([]string{}, p.Project.Dependencies...)
	return append(deps, sortedKeys(p.Tool.Poetry.Dependencies)...), nil
}

type pipfile struct {
	Packages    map[string]any `toml:"packages"`
	DevPackages map[string]any `toml:"dev-packages"`
}

func pipfilePackages(text string) ([]string, error) {
	var p pipfile
	if _, err := toml.Decode(text, &p); err != nil {
		return nil, fmt.Errorf("decode Pipfile: %w", err)
	}
	return append(sortedKeys(p.Packages), sortedKeys(p.DevPackages)...), nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
