package filtering

import (
	"context"
	"fmt"

	"github.com/spigell/chat-applier/internal/logger"
	"github.com/spigell/chat-applier/internal/records"
	"go.uber.org/zap"
)

// Filter represents a single pre-dispatch check applied to detected jobs.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Apply(ctx context.Context, job *records.Job) (Verdict, error)
}

// Verdict is the result of a filter for one job.
type Verdict struct {
	Keep   bool
	Reason string
}

// Keep is the verdict of a filter that lets the job through.
var Keep = Verdict{Keep: true}

// Step describes the accumulated result of a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

// statusProvider is implemented by filters that can supply detailed status information.
type statusProvider interface {
	Status() Status
}

// Chain runs filters in order and counts what each of them dropped.
type Chain struct {
	steps  []Filter
	stats  map[string]*Step
	logger *zap.Logger
}

func NewChain(log *zap.Logger, steps ...Filter) *Chain {
	stats := make(map[string]*Step, len(steps))
	for _, step := range steps {
		stats[step.Name()] = &Step{}
	}
	return &Chain{steps: steps, stats: stats, logger: logger.OrNop(log)}
}

// Apply runs every enabled filter until one drops the job. Filter errors are
// returned wrapped with the filter name.
func (c *Chain) Apply(ctx context.Context, job *records.Job) (Verdict, error) {
	if c == nil {
		return Keep, nil
	}

	for _, step := range c.steps {
		if !step.IsEnabled() {
			continue
		}

		verdict, err := step.Apply(ctx, job)
		if err != nil {
			return Verdict{}, fmt.Errorf("%s: %w", step.Name(), err)
		}

		stat := c.stats[step.Name()]
		stat.Initial++
		if !verdict.Keep {
			stat.Dropped++
			c.logger.Info("job filtered out",
				zap.String("name", step.Name()),
				zap.String(logger.FieldJobID, job.ID),
				zap.String("reason", verdict.Reason),
			)
			return verdict, nil
		}
		stat.Left++
	}

	return Keep, nil
}

// LogSummary writes one line per enabled step with its counters.
func (c *Chain) LogSummary() {
	if c == nil {
		return
	}
	for _, step := range c.steps {
		if !step.IsEnabled() {
			c.logger.Info("filter disabled", zap.String("name", step.Name()))
			continue
		}
		stat := c.stats[step.Name()]
		c.logger.Info("filter step",
			zap.String("name", step.Name()),
			zap.Int("initial", stat.Initial),
			zap.Int("dropped", stat.Dropped),
			zap.Int("left", stat.Left),
		)
	}
}

// Stats returns a copy of the counters of the named step.
func (c *Chain) Stats(name string) Step {
	if c == nil {
		return Step{}
	}
	if stat, ok := c.stats[name]; ok {
		return *stat
	}
	return Step{}
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}
