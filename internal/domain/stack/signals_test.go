package stack

import (
	"reflect"
	"testing"
)

func TestProjectTypeUpgrade(t *testing.T) {
	tests := []struct {
		current  ProjectType
		incoming ProjectType
		want     ProjectType
	}{
		{ProjectUnknown, ProjectFrontend, ProjectFrontend},
		{ProjectUnknown, ProjectBackend, ProjectBackend},
		{"", ProjectBackend, ProjectBackend},
		{ProjectFrontend, ProjectBackend, ProjectFullStack},
		{ProjectBackend, ProjectFrontend, ProjectFullStack},
		{ProjectFrontend, ProjectFrontend, ProjectFrontend},
		{ProjectFrontend, ProjectUnknown, ProjectFrontend},
		{ProjectFullStack, ProjectBackend, ProjectFullStack},
		{ProjectFullStack, ProjectUnknown, ProjectFullStack},
		{ProjectBackend, ProjectFullStack, ProjectFullStack},
	}
	for _, tt := range tests {
		if got := tt.current.Upgrade(tt.incoming); got != tt.want {
			t.Errorf("%q.Upgrade(%q) = %q, want %q", tt.current, tt.incoming, got, tt.want)
		}
	}
}

func TestTechSignalsFieldRules(t *testing.T) {
	s := NewTechSignals()

	s.SetLanguage("JavaScript")
	s.SetLanguage("")
	s.SetLanguage("Python")
	if s.Language != "Python" {
		t.Errorf("language = %q, want last writer Python", s.Language)
	}

	if !s.SetFramework("React") {
		t.Error("first SetFramework should be taken")
	}
	if s.SetFramework("Vue.js") {
		t.Error("second SetFramework should be ignored")
	}
	if s.Framework != "React" {
		t.Errorf("framework = %q, want React", s.Framework)
	}
	s.ForceFramework("Static HTML")
	if s.Framework != "Static HTML" {
		t.Errorf("framework = %q, want forced Static HTML", s.Framework)
	}

	s.AddTechnology("React")
	s.AddTechnology("Docker")
	s.AddTechnology("React")
	s.AddTechnology("")
	if want := []string{"React", "Docker"}; !reflect.DeepEqual(s.DetectedTechnologies, want) {
		t.Errorf("detectedTechnologies = %v, want %v", s.DetectedTechnologies, want)
	}

	s.MarkStatic()
	s.MarkStatic()
	if !s.IsStatic {
		t.Error("expected isStatic")
	}
}

func TestTechSignalsMerge(t *testing.T) {
	s := NewTechSignals()
	s.Merge(&TechSignals{
		Language:               "JavaScript",
		ProjectType:            ProjectFrontend,
		Framework:              "Next.js",
		BackendFramework:       "Express",
		PackageManager:         "npm",
		DetectedTechnologies:   []string{"Node.js", "Next.js"},
		HasServerSideRendering: true,
	})
	s.Merge(&TechSignals{
		Language:             "Python",
		ProjectType:          ProjectBackend,
		BackendFramework:     "Django",
		DetectedTechnologies: []string{"Python", "Django", "Node.js"},
		HasDatabase:          true,
	})
	s.Merge(nil)
	s.Merge(&TechSignals{})

	want := &TechSignals{
		Language:               "Python",
		ProjectType:            ProjectFullStack,
		Framework:              "Next.js",
		BackendFramework:       "Express",
		PackageManager:         "npm",
		DetectedTechnologies:   []string{"Node.js", "Next.js", "Python", "Django"},
		HasServerSideRendering: true,
		HasDatabase:            true,
	}
	if !reflect.DeepEqual(s, want) {
		t.Errorf("merged = %+v\nwant %+v", s, want)
	}
}

func TestTechSignalsClone(t *testing.T) {
	s := NewTechSignals()
	s.AddTechnology("Go")
	c := s.Clone()
	c.AddTechnology("Gin")
	if len(s.DetectedTechnologies) != 1 {
		t.Errorf("clone shares technologies slice: %v", s.DetectedTechnologies)
	}
}

func TestProjectTypeValid(t *testing.T) {
	for _, p := range []ProjectType{"", ProjectUnknown, ProjectFrontend, ProjectBackend, ProjectFullStack} {
		if !p.Valid() {
			t.Errorf("%q should be valid", p)
		}
	}
	for _, p := range []ProjectType{"frontend", "Fullstack", "Mobile"} {
		if p.Valid() {
			t.Errorf("%q should be invalid", p)
		}
	}
}
