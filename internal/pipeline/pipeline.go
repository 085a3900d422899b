// Package pipeline runs parsed chat messages through detection, enrichment,
// scoring and dispatch, and records every detected job.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/url"
	"strings"
	"unicode"

	"github.com/spigell/chat-applier/internal/chatlog"
	"github.com/spigell/chat-applier/internal/detector"
	"github.com/spigell/chat-applier/internal/dispatch"
	"github.com/spigell/chat-applier/internal/filtering"
	"github.com/spigell/chat-applier/internal/logger"
	"github.com/spigell/chat-applier/internal/records"
	"github.com/spigell/chat-applier/internal/storage"
	"go.uber.org/zap"
)

// State is the processing state of a single message.
type State string

const (
	StateReceived State = "RECEIVED"
	StateNotAJob  State = "NOT_A_JOB"
	StateDetected State = "DETECTED"
	StateEnriched State = "ENRICHED"
	StateScored   State = "SCORED"
	StateApplied  State = "APPLIED"
	StateSkipped  State = "SKIPPED"
)

// Stats are the run-level counters.
type Stats struct {
	Total    int
	Detected int
	Applied  int
	Skipped  int
}

type Enricher interface {
	EnrichProfile(ctx context.Context, profile *records.Profile) (bool, error)
	EnrichCompany(ctx context.Context, company *records.Company) (bool, error)
}

type Scorer interface {
	Score(ctx context.Context, profile *records.Context, jobDescription string) records.FitResult
}

type Dispatcher interface {
	DecideAndAct(ctx context.Context, job *detector.JobCandidate, fit records.FitResult, profile *records.Profile) (dispatch.Decision, dispatch.Outcome)
}

// Filter drops detected jobs before they are enriched and scored.
type Filter interface {
	Apply(ctx context.Context, job *records.Job) (filtering.Verdict, error)
}

type Deps struct {
	Store      storage.Store
	Enricher   Enricher
	Scorer     Scorer
	Dispatcher Dispatcher
	// Filter is optional.
	Filter Filter
}

type Pipeline struct {
	deps      Deps
	profileID string
	logger    *zap.Logger

	// per-run state
	profile          *records.Profile
	profileAttempted bool
	companies        map[string]*records.Company
}

func New(deps Deps, profileID string, log *zap.Logger) (*Pipeline, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("store is required")
	case deps.Enricher == nil:
		return nil, errors.New("enricher is required")
	case deps.Scorer == nil:
		return nil, errors.New("scorer is required")
	case deps.Dispatcher == nil:
		return nil, errors.New("dispatcher is required")
	case strings.TrimSpace(profileID) == "":
		return nil, errors.New("profile id is required")
	}

	return &Pipeline{deps: deps, profileID: profileID, logger: logger.OrNop(log)}, nil
}

// Run processes messages in order. Only store failures abort the run; the
// returned stats cover the messages handled before the failure.
func (p *Pipeline) Run(ctx context.Context, messages iter.Seq[chatlog.Message]) (Stats, error) {
	var stats Stats

	profile, err := p.deps.Store.GetProfile(ctx, p.profileID)
	if err != nil {
		return stats, fmt.Errorf("load profile %s: %w", p.profileID, err)
	}
	p.profile = profile
	p.profileAttempted = false
	p.companies = make(map[string]*records.Company)

	for msg := range messages {
		stats.Total++

		state, err := p.process(ctx, msg)
		if err != nil {
			return stats, err
		}

		switch state {
		case StateApplied:
			stats.Detected++
			stats.Applied++
		case StateSkipped:
			stats.Detected++
			stats.Skipped++
		}
	}

	p.logger.Info("run completed",
		zap.Int("total", stats.Total),
		zap.Int("detected", stats.Detected),
		zap.Int("applied", stats.Applied),
		zap.Int("skipped", stats.Skipped),
	)
	return stats, nil
}

func (p *Pipeline) process(ctx context.Context, msg chatlog.Message) (State, error) {
	candidate, ok := detector.Detect(msg.Body)
	if !ok {
		return StateNotAJob, nil
	}

	job := newJob(msg, candidate)
	log := p.logger.With(logger.JobFields(job.ID, job.Sender)...)
	log.Debug("job state", zap.String(logger.FieldStage, string(StateDetected)))

	if p.deps.Filter != nil {
		verdict, err := p.deps.Filter.Apply(ctx, job)
		if err != nil {
			return StateDetected, fmt.Errorf("filter job %s: %w", job.ID, err)
		}
		if !verdict.Keep {
			return p.filtered(ctx, log, job, verdict.Reason)
		}
	}

	if err := p.saveJob(ctx, job); err != nil {
		return StateDetected, err
	}

	if err := p.enrichProfile(ctx); err != nil {
		return StateDetected, err
	}

	description := candidate.RawText
	company, err := p.company(ctx, candidate)
	if err != nil {
		return StateDetected, err
	}
	if company != nil && company.Context != nil {
		description += "\n\nCompany context:\n" + company.Context.String()
	}
	log.Debug("job state", zap.String(logger.FieldStage, string(StateEnriched)))

	fit := p.deps.Scorer.Score(ctx, p.profile.Context, description)
	job.Score = fit.Score
	job.Chance = fit.Chance
	log.Debug("job state",
		zap.String(logger.FieldStage, string(StateScored)),
		zap.Int("score", fit.Score),
		zap.String("chance", string(fit.Chance)),
	)

	decision, outcome := p.deps.Dispatcher.DecideAndAct(ctx, candidate, fit, p.profile)
	if outcome.Applied() {
		return p.finish(ctx, log.With(zap.String("channel", string(decision.Channel))), job, StateApplied, "")
	}
	return p.finish(ctx, log, job, StateSkipped, outcome.SkipReason)
}

func (p *Pipeline) finish(ctx context.Context, log *zap.Logger, job *records.Job, state State, reason string) (State, error) {
	job.SkipReason = reason
	job.Status = records.JobSkipped
	if state == StateApplied {
		job.Status = records.JobApplied
	}

	if err := p.saveJob(ctx, job); err != nil {
		return state, err
	}

	log.Info("job processed", zap.String(logger.FieldStage, string(state)), zap.String("reason", reason))
	return state, nil
}

// filtered records a dropped job as skipped unless a record already exists,
// so an applied record is never downgraded.
func (p *Pipeline) filtered(ctx context.Context, log *zap.Logger, job *records.Job, reason string) (State, error) {
	_, err := p.deps.Store.GetJob(ctx, job.ID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return p.finish(ctx, log, job, StateSkipped, reason)
	case err != nil:
		return StateDetected, fmt.Errorf("load job %s: %w", job.ID, err)
	}

	log.Info("job processed", zap.String(logger.FieldStage, string(StateSkipped)), zap.String("reason", reason))
	return StateSkipped, nil
}

func (p *Pipeline) saveJob(ctx context.Context, job *records.Job) error {
	if err := p.deps.Store.SaveJob(ctx, job); err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}
	return nil
}

// enrichProfile enriches the profile on the first detected job of the run.
// Summarizer failures keep the cached context.
func (p *Pipeline) enrichProfile(ctx context.Context) error {
	if p.profileAttempted {
		return nil
	}
	p.profileAttempted = true

	changed, err := p.deps.Enricher.EnrichProfile(ctx, p.profile)
	if err != nil {
		p.logger.Warn("profile enrichment failed", zap.Error(err))
		return nil
	}
	if !changed {
		return nil
	}

	if err := p.deps.Store.SaveProfile(ctx, p.profile); err != nil {
		return fmt.Errorf("save profile %s: %w", p.profile.ID, err)
	}
	return nil
}

// company looks up or creates the record of the company named in the post and
// enriches it once per run.
func (p *Pipeline) company(ctx context.Context, candidate *detector.JobCandidate) (*records.Company, error) {
	name := strings.TrimSpace(detector.Value(candidate.Company))
	if name == "" {
		return nil, nil
	}

	id := records.CompanyID(name)
	if company, ok := p.companies[id]; ok {
		return company, nil
	}

	company, err := p.deps.Store.GetCompany(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		company = &records.Company{ID: id, Name: name, Website: companyWebsite(name, candidate.Links)}
		if err := p.deps.Store.SaveCompany(ctx, company); err != nil {
			return nil, fmt.Errorf("save company %s: %w", name, err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("load company %s: %w", name, err)
	}
	p.companies[id] = company

	changed, err := p.deps.Enricher.EnrichCompany(ctx, company)
	if err != nil {
		p.logger.Warn("company enrichment failed", zap.String("company", name), zap.Error(err))
		return company, nil
	}
	if changed {
		if err := p.deps.Store.SaveCompany(ctx, company); err != nil {
			return nil, fmt.Errorf("save company %s: %w", name, err)
		}
	}
	return company, nil
}

func newJob(msg chatlog.Message, candidate *detector.JobCandidate) *records.Job {
	return &records.Job{
		ID:        records.JobID(msg.Timestamp, msg.Sender),
		Timestamp: msg.Timestamp,
		Sender:    msg.Sender,
		Message:   msg.Body,
		Role:      detector.Value(candidate.Role),
		Company:   detector.Value(candidate.Company),
		Location:  detector.Value(candidate.Location),
		Salary:    detector.Value(candidate.Salary),
		Links:     candidate.Links,
		Emails:    candidate.Emails,
		FormURL:   candidate.FormURL(),
		Status:    records.JobDetected,
	}
}

// companyWebsite picks the first link whose host contains the company name
// with spaces and punctuation removed.
func companyWebsite(name string, links []string) string {
	key := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, name)
	if len(key) < 3 {
		return ""
	}

	for _, link := range links {
		u, err := url.Parse(link)
		if err != nil || u.Host == "" {
			continue
		}
		host := strings.ReplaceAll(strings.ToLower(u.Hostname()), "-", "")
		if strings.Contains(host, key) {
			return u.Scheme + "://" + u.Host
		}
	}
	return ""
}
