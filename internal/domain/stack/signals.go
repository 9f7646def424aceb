// Package stack detects a repository's technology stack from its manifests
// and produces the TechSignals consumed by platform scoring.
package stack

// ProjectType classifies a repository as a whole.
type ProjectType string

const (
	ProjectUnknown   ProjectType = "Unknown"
	ProjectFrontend  ProjectType = "Frontend"
	ProjectBackend   ProjectType = "Backend"
	ProjectFullStack ProjectType = "Full-Stack"
)

// Valid reports whether p is one of the known project types. The empty
// value is valid and means Unknown.
func (p ProjectType) Valid() bool {
	switch p {
	case "", ProjectUnknown, ProjectFrontend, ProjectBackend, ProjectFullStack:
		return true
	}
	return false
}

// Upgrade combines the current classification with an incoming one.
// It never downgrades: Frontend and Backend together become Full-Stack.
func (p ProjectType) Upgrade(incoming ProjectType) ProjectType {
	if p == "" {
		p = ProjectUnknown
	}
	switch {
	case incoming == "" || incoming == ProjectUnknown || incoming == p:
		return p
	case p == ProjectUnknown:
		return incoming
	default:
		return ProjectFullStack
	}
}

// TechSignals is the structured result of stack detection.
// Field names are lower-camel on the wire for JSON consumers.
type TechSignals struct {
	Language               string      `json:"language,omitempty"`
	ProjectType            ProjectType `json:"projectType"`
	Framework              string      `json:"framework,omitempty"`
	BackendFramework       string      `json:"backendFramework,omitempty"`
	BuildTool              string      `json:"buildTool,omitempty"`
	PackageManager         string      `json:"packageManager,omitempty"`
	DetectedTechnologies   []string    `json:"detectedTechnologies"`
	IsStatic               bool        `json:"isStatic"`
	HasServerSideRendering bool        `json:"hasServerSideRendering"`
	HasEdgeFunctions       bool        `json:"hasEdgeFunctions"`
	HasAPIRoutes           bool        `json:"hasApiRoutes"`
	HasDatabase            bool        `json:"hasDatabase"`
	HasDocker              bool        `json:"hasDocker"`
}

// NewTechSignals returns an empty signal set classified as Unknown.
func NewTechSignals() *TechSignals {
	return &TechSignals{
		ProjectType:          ProjectUnknown,
		DetectedTechnologies: []string{},
	}
}

// Type returns the project type, treating the zero value as Unknown.
func (s *TechSignals) Type() ProjectType {
	if s.ProjectType == "" {
		return ProjectUnknown
	}
	return s.ProjectType
}

// SetLanguage records the language. The last detector to call it wins.
func (s *TechSignals) SetLanguage(lang string) {
	if lang != "" {
		s.Language = lang
	}
}

// UpgradeProjectType folds t into the current project type.
func (s *TechSignals) UpgradeProjectType(t ProjectType) {
	s.ProjectType = s.Type().Upgrade(t)
}

// SetFramework records the frontend framework if none is set yet.
// It reports whether the value was taken.
func (s *TechSignals) SetFramework(name string) bool {
	return fillUnset(&s.Framework, name)
}

// ForceFramework overwrites the frontend framework.
func (s *TechSignals) ForceFramework(name string) {
	s.Framework = name
}

// SetBackendFramework records the backend framework if none is set yet.
func (s *TechSignals) SetBackendFramework(name string) bool {
	return fillUnset(&s.BackendFramework, name)
}

// SetBuildTool records the build tool if none is set yet.
func (s *TechSignals) SetBuildTool(name string) bool {
	return fillUnset(&s.BuildTool, name)
}

// SetPackageManager records the package manager if none is set yet.
func (s *TechSignals) SetPackageManager(name string) bool {
	return fillUnset(&s.PackageManager, name)
}

// AddTechnology appends a label unless it is already present.
func (s *TechSignals) AddTechnology(label string) {
	if label == "" || s.HasTechnology(label) {
		return
	}
	s.DetectedTechnologies = append(s.DetectedTechnologies, label)
}

// HasTechnology reports whether label was detected.
func (s *TechSignals) HasTechnology(label string) bool {
	for _, t := range s.DetectedTechnologies {
		if t == label {
			return true
		}
	}
	return false
}

// Mark* set monotonic flags; none of them can be cleared.
func (s *TechSignals) MarkStatic()              { s.IsStatic = true }
func (s *TechSignals) MarkServerSideRendering() { s.HasServerSideRendering = true }
func (s *TechSignals) MarkEdgeFunctions()       { s.HasEdgeFunctions = true }
func (s *TechSignals) MarkAPIRoutes()           { s.HasAPIRoutes = true }
func (s *TechSignals) MarkDatabase()            { s.HasDatabase = true }
func (s *TechSignals) MarkDocker()              { s.HasDocker = true }

// Merge applies a detector's partial result using the same field rules as
// the individual setters. Partials must be merged in detector order.
func (s *TechSignals) Merge(p *TechSignals) {
	if p == nil {
		return
	}
	s.SetLanguage(p.Language)
	s.UpgradeProjectType(p.ProjectType)
	s.SetFramework(p.Framework)
	s.SetBackendFramework(p.BackendFramework)
	s.SetBuildTool(p.BuildTool)
	s.SetPackageManager(p.PackageManager)
	for _, t := range p.DetectedTechnologies {
		s.AddTechnology(t)
	}
	s.IsStatic = s.IsStatic || p.IsStatic
	s.HasServerSideRendering = s.HasServerSideRendering || p.HasServerSideRendering
	s.HasEdgeFunctions = s.HasEdgeFunctions || p.HasEdgeFunctions
	s.HasAPIRoutes = s.HasAPIRoutes || p.HasAPIRoutes
	s.HasDatabase = s.HasDatabase || p.HasDatabase
	s.HasDocker = s.HasDocker || p.HasDocker
}

// Clone returns a deep copy.
func (s *TechSignals) Clone() *TechSignals {
	c := *s
	c.DetectedTechnologies = append([]string{}, s.DetectedTechnologies...)
	return &c
}

func fillUnset(dst *string, v string) bool {
	if v == "" || *dst != "" {
		return false
	}
	*dst = v
	return true
}
