package export

import (
	"errors"
	"fmt"
	"strings"

	"github.com/forest-guardian/degradation-indicator/internal/backend"
)

var ErrJobFailed = errors.New("export job failed")

// JobFailure reports the jobs of a batch the backend marked as failed.
type JobFailure struct {
	Failed []backend.JobStatus
}

func (e *JobFailure) Error() string {
	parts := make([]string, 0, len(e.Failed))
	for _, s := range e.Failed {
		if s.Error != "" {
			parts = append(parts, fmt.Sprintf("%s (%s)", s.Description, s.Error))
		} else {
			parts = append(parts, s.Description)
		}
	}
	return fmt.Sprintf("%d export job(s) failed: %s", len(e.Failed), strings.Join(parts, ", "))
}

func (e *JobFailure) Unwrap() error {
	return ErrJobFailed
}

// Descriptions of the failed jobs, in submission order.
func (e *JobFailure) Descriptions() []string {
	out := make([]string, len(e.Failed))
	for i, s := range e.Failed {
		out[i] = s.Description
	}
	return out
}
