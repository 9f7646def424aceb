package stack

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"golang.org/x/mod/modfile"
)

// detectEcosystem runs the shared marker + manifest scan for one backend
// language.
func detectEcosystem(ctx context.Context, sc *scan, eco *ecosystem, out *TechSignals) {
	if !ecosystemPresent(sc, eco) {
		return
	}
	out.SetLanguage(eco.Language)
	out.AddTechnology(eco.Label)

	text, ok := ecosystemManifest(ctx, sc, eco)
	if !ok {
		out.UpgradeProjectType(ProjectBackend)
		return
	}

	if gen := firstSubstring(eco.StaticGenerators, text); gen != "" {
		out.AddTechnology(gen)
		out.MarkStatic()
		out.UpgradeProjectType(ProjectFrontend)
		return
	}

	out.UpgradeProjectType(ProjectBackend)
	if fw := firstSubstring(eco.Frameworks, text); fw != "" {
		out.SetBackendFramework(fw)
		out.AddTechnology(fw)
		out.MarkAPIRoutes()
	}
}

func ecosystemPresent(sc *scan, eco *ecosystem) bool {
	if sc.hasAnyFile(eco.Markers...) {
		return true
	}
	for _, suffix := range eco.MarkerSuffixes {
		if _, ok := sc.fileWithSuffix(suffix); ok {
			return true
		}
	}
	return false
}

// ecosystemManifest reads the first manifest present and returns its
// lower-cased text, passed through the manifest's parser when it has one.
func ecosystemManifest(ctx context.Context, sc *scan, eco *ecosystem) (string, bool) {
	path := ""
	for _, m := range eco.Manifests {
		if sc.hasFile(m) {
			path = m
			break
		}
	}
	if path == "" {
		for _, suffix := range eco.MarkerSuffixes {
			if name, ok := sc.fileWithSuffix(suffix); ok {
				path = name
				break
			}
		}
	}
	if path == "" {
		return "", false
	}

	parse, parsed := eco.Parsers[path]
	if !parsed {
		text, ok := sc.read(ctx, path)
		return strings.ToLower(text), ok
	}

	text, ok := sc.readWhole(ctx, path)
	if !ok {
		return "", false
	}
	text, err := parse(text)
	if err != nil {
		sc.malformed(ctx, path, err)
		return "", false
	}
	return strings.ToLower(text), true
}

// goModRequires returns the required module paths of a go.mod file.
func goModRequires(text string) (string, error) {
	f, err := modfile.Parse("go.mod", []byte(text), nil)
	if err != nil {
		return "", err
	}
	paths := make([]string, 0, len(f.Require))
	for _, r := range f.Require {
		paths = append(paths, r.Mod.Path)
	}
	return strings.Join(paths, "\n"), nil
}

// composerRequires returns the package names required by composer.json.
func composerRequires(text string) (string, error) {
	var c struct {
		Require    map[string]any `json:"require"`
		RequireDev map[string]any `json:"require-dev"`
	}
	if err := json.Unmarshal([]byte(text), &c); err != nil {
		return "", fmt.Errorf("decode composer.json: %w", err)
	}
	names := append(sortedKeys(c.Require), sortedKeys(c.RequireDev)...)
	return strings.Join(names, "\n"), nil
}

// cargoDependencies returns the crate names declared in Cargo.toml.
func cargoDependencies(text string) (string, error) {
	var c struct {
		Dependencies    map[string]any `toml:"dependencies"`
		DevDependencies map[string]any `toml:"dev-dependencies"`
		Workspace       struct {
			Dependencies map[string]any `toml:"dependencies"`
		} `toml:"workspace"`
	}
	if _, err := toml.Decode(text, &c); err != nil {
		return "", fmt.Errorf("decode Cargo.toml: %w", err)
	}
	names := sortedKeys(c.Dependencies)
	names = append(names, sortedKeys(c.DevDependencies)...)
	names = append(names, sortedKeys(c.Workspace.Dependencies)...)
	return strings.Join(names, "\n"), nil
}
