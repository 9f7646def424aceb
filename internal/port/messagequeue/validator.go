package messagequeue

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Validate checks that data is JSON matching the schema of subject.
// Unknown subjects only need to be valid JSON.
func Validate(subject string, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("invalid JSON on subject %s", subject)
	}

	switch subject {
	case SubjectAnalysisRequested:
		var p AnalysisRequestedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("schema validation failed for %s: %w", subject, err)
		}
		return requireRepo(subject, p.Owner, p.Repo)
	case SubjectAnalysisCompleted:
		var p AnalysisCompletedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("schema validation failed for %s: %w", subject, err)
		}
		return requireRepo(subject, p.Owner, p.Repo)
	case SubjectAnalysisFailed:
		var p AnalysisFailedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("schema validation failed for %s: %w", subject, err)
		}
		return requireRepo(subject, p.Owner, p.Repo)
	default:
		return nil
	}
}

func requireRepo(subject, owner, repo string) error {
	if owner == "" || repo == "" {
		return fmt.Errorf("schema validation failed for %s: %w", subject, errors.New("owner and repo are required"))
	}
	return nil
}
