package repository_test

import (
	"context"
	"testing"

	"github.com/deploypilot/deploypilot/internal/port/repository"
)

type testReader struct {
	name string
}

func (r *testReader) Name() string { return r.name }
func (r *testReader) ListEntries(_ context.Context, _ repository.Ref, _ string) ([]repository.Entry, error) {
	return nil, nil
}
func (r *testReader) GetFileText(_ context.Context, _ repository.Ref, _ string) (string, bool, error) {
	return "", false, nil
}

func TestRegisterAndNew(t *testing.T) {
	repository.Register("test-reader", func(_ map[string]string) (repository.Reader, error) {
		return &testReader{name: "test-reader"}, nil
	})

	r, err := repository.New("test-reader", nil)
	if err != nil {
		t.Fatal(err)
	}
	if r.Name() != "test-reader" {
		t.Fatalf("expected test-reader, got %s", r.Name())
	}

	found := false
	for _, n := range repository.Available() {
		if n == "test-reader" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected test-reader in Available()")
	}
}

func TestNewUnknownReader(t *testing.T) {
	if _, err := repository.New("nonexistent", nil); err == nil {
		t.Fatal("expected error for unknown reader")
	}
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	repository.Register("dup-reader", func(_ map[string]string) (repository.Reader, error) {
		return &testReader{name: "dup-reader"}, nil
	})
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	repository.Register("dup-reader", func(_ map[string]string) (repository.Reader, error) {
		return nil, nil
	})
}

func TestParseRef(t *testing.T) {
	tests := []struct {
		in      string
		want    repository.Ref
		wantErr bool
	}{
		{in: "vercel/next.js", want: repository.Ref{Owner: "vercel", Repo: "next.js"}},
		{in: "octo/site@gh-pages", want: repository.Ref{Owner: "octo", Repo: "site", Branch: "gh-pages"}},
		{in: "octo/site.git", want: repository.Ref{Owner: "octo", Repo: "site"}},
		{in: "octo", wantErr: true},
		{in: "/repo", wantErr: true},
		{in: "a/b/c", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := repository.ParseRef(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
			if got.String() == "" {
				t.Fatal("empty String()")
			}
		})
	}
}
