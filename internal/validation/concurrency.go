package validation

import (
	"context"
	"fmt"

	"github.com/ManuGH/mediaconv/internal/joberr"
)

// Occupancy is the scheduler's view at check time, excluding the job under
// validation.
type Occupancy struct {
	Active          int
	ExclusiveActive bool
	Limit           int
	AlreadyRunning  bool
}

// Gate reports current occupancy.
type Gate interface {
	Occupancy(excludeJobID string) Occupancy
}

// GateFunc adapts a function to Gate.
type GateFunc func(excludeJobID string) Occupancy

func (f GateFunc) Occupancy(excludeJobID string) Occupancy { return f(excludeJobID) }

// ConcurrencyCheck re-checks exclusivity and the concurrency limit right
// before spawn. Conflicts are retryable.
type ConcurrencyCheck struct {
	Gate Gate
}

func (ConcurrencyCheck) Name() string { return "concurrency" }

func (c ConcurrencyCheck) Check(_ context.Context, in Input) error {
	if c.Gate == nil {
		return nil
	}
	occ := c.Gate.Occupancy(in.JobID)

	if occ.AlreadyRunning {
		return joberr.Newf(joberr.CodeAlreadyRunning, "job %s is already running", in.JobID)
	}
	if in.Exclusive && occ.Active > 0 {
		return retry(joberr.CodeExclusiveBlocked,
			fmt.Errorf("exclusive job %s blocked: %d jobs currently running", in.JobID, occ.Active))
	}
	if occ.ExclusiveActive {
		return retry(joberr.CodeExclusiveBlocked,
			fmt.Errorf("job %s blocked by a running exclusive job", in.JobID))
	}
	limit := occ.Limit
	if limit < 1 {
		limit = 1
	}
	if occ.Active >= limit {
		return retry(joberr.CodeConcurrencyLimit,
			fmt.Errorf("job %s blocked: concurrency limit %d reached (%d active)", in.JobID, limit, occ.Active))
	}
	return nil
}

func retry(code joberr.Code, err error) *Failure {
	return &Failure{Check: "concurrency", Code: code, Err: joberr.Wrap(code, "", err), Retryable: true}
}
