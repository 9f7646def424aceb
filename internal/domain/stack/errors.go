package stack

import (
	"context"
	"errors"
	"fmt"

	"github.com/deploypilot/deploypilot/internal/port/repository"
)

// ErrorKind classifies analysis failures.
type ErrorKind string

const (
	KindNotFound          ErrorKind = "NotFound"
	KindUnreachable       ErrorKind = "Unreachable"
	KindRateLimited       ErrorKind = "RateLimited"
	KindMalformedManifest ErrorKind = "MalformedManifest"
)

// Kind sentinels for errors.Is checks.
var (
	ErrNotFound          = &AnalysisError{Kind: KindNotFound}
	ErrUnreachable       = &AnalysisError{Kind: KindUnreachable}
	ErrRateLimited       = &AnalysisError{Kind: KindRateLimited}
	ErrMalformedManifest = &AnalysisError{Kind: KindMalformedManifest}
)

// AnalysisError reports why an analysis (or one manifest) failed.
type AnalysisError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *AnalysisError) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// Is matches another AnalysisError of the same kind, so the kind sentinels
// work with errors.Is.
func (e *AnalysisError) Is(target error) bool {
	t, ok := target.(*AnalysisError)
	return ok && t.Kind == e.Kind
}

// classify wraps a reader failure in an AnalysisError. Context errors are
// returned unchanged since cancellation belongs to the caller.
func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	kind := KindUnreachable
	switch {
	case errors.Is(err, repository.ErrNotFound):
		kind = KindNotFound
	case errors.Is(err, repository.ErrRateLimited):
		kind = KindRateLimited
	}
	return &AnalysisError{Kind: kind, Op: op, Err: err}
}
