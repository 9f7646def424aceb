package service

import (
	"fmt"
	"strings"

	"github.com/deploypilot/deploypilot/internal/domain"
)

const (
	maxNameLen   = 100
	maxBranchLen = 255
)

// ValidateRepo checks owner and repository names against the characters
// GitHub allows, and rejects branches git would refuse.
func ValidateRepo(owner, repo, branch string) error {
	if err := validateName("owner", owner); err != nil {
		return err
	}
	if err := validateName("repo", repo); err != nil {
		return err
	}
	return validateBranch(branch)
}

func validateName(field, v string) error {
	if v == "" {
		return fmt.Errorf("%s is required: %w", field, domain.ErrValidation)
	}
	if len(v) > maxNameLen || v == "." || v == ".." {
		return fmt.Errorf("invalid %s %q: %w", field, v, domain.ErrValidation)
	}
	for _, r := range v {
		if !isNameRune(r) {
			return fmt.Errorf("invalid %s %q: %w", field, v, domain.ErrValidation)
		}
	}
	return nil
}

func isNameRune(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' ||
		r == '-' || r == '_' || r == '.'
}

func validateBranch(b string) error {
	if b == "" {
		return nil
	}
	if len(b) > maxBranchLen ||
		strings.HasPrefix(b, "-") ||
		strings.Contains(b, "..") ||
		strings.ContainsAny(b, " \t\n~^:?*[\\") {
		return fmt.Errorf("invalid branch %q: %w", b, domain.ErrValidation)
	}
	return nil
}
