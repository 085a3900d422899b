package filtering

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spigell/chat-applier/internal/records"
	"github.com/spigell/chat-applier/internal/storage"
)

const reapplyFlagSetMsg = "reapply flag is set"

// JobLookup finds previously stored job records.
type JobLookup interface {
	GetJob(ctx context.Context, id string) (*records.Job, error)
}

type appliedHistoryFilter struct {
	jobs     JobLookup
	disabled bool
	reason   string
}

// NewAppliedHistory creates a filter that drops posts already applied to in an
// earlier run. A post matches when its key and body equal the stored record.
func NewAppliedHistory(jobs JobLookup) Filter {
	return &appliedHistoryFilter{jobs: jobs}
}

func (f *appliedHistoryFilter) Name() string { return "applied_history" }

func (f *appliedHistoryFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *appliedHistoryFilter) IsEnabled() bool { return !f.disabled }

func (f *appliedHistoryFilter) Apply(ctx context.Context, job *records.Job) (Verdict, error) {
	if f.jobs == nil {
		return Verdict{}, errors.New("job store is required")
	}

	stored, err := f.jobs.GetJob(ctx, job.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return Keep, nil
	}
	if err != nil {
		return Verdict{}, fmt.Errorf("lookup job history: %w", err)
	}

	// Posts sharing a key with a different body are new jobs.
	if stored.Status == records.JobApplied && strings.TrimSpace(stored.Message) == strings.TrimSpace(job.Message) {
		return Verdict{Reason: "already applied"}, nil
	}
	return Keep, nil
}

func (f *appliedHistoryFilter) Status() Status {
	details := map[string]string{
		"exclude_applied": strconv.FormatBool(!f.disabled),
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}

// ReapplyReason is the disable reason used when the operator asks to re-send applications.
func ReapplyReason() string {
	return reapplyFlagSetMsg
}
