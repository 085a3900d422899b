// Package dispatch decides whether to apply to a detected job and sends the
// application by email or through a web form.
package dispatch

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/spigell/chat-applier/internal/detector"
	"github.com/spigell/chat-applier/internal/logger"
	"github.com/spigell/chat-applier/internal/records"
	"github.com/spigell/chat-applier/internal/writer"
	"go.uber.org/zap"
)

// DefaultMinScore is the score at or above which a job is applied to regardless of chance.
const DefaultMinScore = 30

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelForm  Channel = "form"
	ChannelNone  Channel = "none"
)

// Skip reasons recorded on jobs that were not applied to.
const (
	ReasonBelowThreshold = "below fit threshold"
	ReasonNoChannel      = "no contact channel"
	ReasonDeclined       = "declined"
	ReasonDryRun         = "dry run"
	ReasonDispatchFailed = "dispatch failed"
)

// Decision is the gate and channel chosen for a job.
type Decision struct {
	ShouldApply bool
	Channel     Channel
}

// Outcome counts dispatch attempts for one job. A job counts as applied when
// at least one attempt succeeded.
type Outcome struct {
	Attempts   int
	Sent       int
	Failed     int
	SkipReason string
}

func (o Outcome) Applied() bool {
	return o.Sent > 0
}

type Mailer interface {
	Send(ctx context.Context, to, subject, body string, attachments []records.Document) error
}

type FormFiller interface {
	Submit(ctx context.Context, formURL string, fields map[string]string) error
}

type Composer interface {
	Compose(ctx context.Context, in writer.Input) (string, string, error)
}

// Approver confirms an application before anything is sent.
type Approver interface {
	Approve(ctx context.Context, job *detector.JobCandidate, decision Decision, fit records.FitResult) (bool, error)
}

type Options struct {
	Mailer   Mailer
	Forms    FormFiller
	Composer Composer
	// Approver is optional; nil approves everything.
	Approver Approver
	MinScore int
	DryRun   bool
	// FormFields are extra label/value pairs sent with every form.
	FormFields map[string]string
}

type Dispatcher struct {
	opts   Options
	logger *zap.Logger
}

func New(opts Options, log *zap.Logger) *Dispatcher {
	log = logger.OrNop(log)
	if opts.MinScore <= 0 {
		opts.MinScore = DefaultMinScore
	}
	if opts.MinScore != DefaultMinScore {
		log.Warn("fit threshold differs from the default gate",
			zap.Int("min_score", opts.MinScore),
			zap.Int("default", DefaultMinScore),
		)
	}
	return &Dispatcher{opts: opts, logger: log}
}

// Decide applies the fit gate and picks a channel: email when the post lists
// addresses, a form when it links one, none otherwise.
func (d *Dispatcher) Decide(job *detector.JobCandidate, fit records.FitResult) Decision {
	decision := Decision{
		ShouldApply: fit.Score >= d.opts.MinScore || fit.Chance == records.ChanceMedium || fit.Chance == records.ChanceHigh,
		Channel:     ChannelNone,
	}

	switch {
	case job == nil:
	case len(job.Emails) > 0:
		decision.Channel = ChannelEmail
	case job.FormURL() != "":
		decision.Channel = ChannelForm
	}

	return decision
}

// DecideAndAct decides and, when the gate passes, dispatches the application.
// Collaborator failures are logged and counted, never returned.
func (d *Dispatcher) DecideAndAct(ctx context.Context, job *detector.JobCandidate, fit records.FitResult, profile *records.Profile) (Decision, Outcome) {
	decision := d.Decide(job, fit)
	log := d.logger.With(zap.String("channel", string(decision.Channel)), zap.Int("score", fit.Score), zap.String("chance", string(fit.Chance)))

	if !decision.ShouldApply {
		log.Info("skip job", zap.String("reason", ReasonBelowThreshold))
		return decision, Outcome{SkipReason: ReasonBelowThreshold}
	}
	if decision.Channel == ChannelNone {
		log.Info("skip job", zap.String("reason", ReasonNoChannel))
		return decision, Outcome{SkipReason: ReasonNoChannel}
	}

	if d.opts.Approver != nil {
		approved, err := d.opts.Approver.Approve(ctx, job, decision, fit)
		if err != nil {
			log.Warn("approval failed", zap.Error(err))
		}
		if err != nil || !approved {
			log.Info("skip job", zap.String("reason", ReasonDeclined))
			return decision, Outcome{SkipReason: ReasonDeclined}
		}
	}

	var outcome Outcome
	switch decision.Channel {
	case ChannelEmail:
		outcome = d.sendEmails(ctx, log, job, fit, profile)
	case ChannelForm:
		outcome = d.submitForm(ctx, log, job, profile)
	}

	if !outcome.Applied() && outcome.SkipReason == "" {
		outcome.SkipReason = ReasonDispatchFailed
	}
	return decision, outcome
}

func (d *Dispatcher) sendEmails(ctx context.Context, log *zap.Logger, job *detector.JobCandidate, fit records.FitResult, profile *records.Profile) Outcome {
	var outcome Outcome

	if d.opts.DryRun {
		for _, to := range job.Emails {
			outcome.Attempts++
			log.Info("dry run: would send email", zap.String("to", to))
		}
		outcome.SkipReason = ReasonDryRun
		return outcome
	}

	if d.opts.Mailer == nil {
		log.Warn("no mailer configured")
		outcome.Attempts = len(job.Emails)
		outcome.Failed = len(job.Emails)
		return outcome
	}

	subject, body := d.compose(ctx, log, job, fit, profile)

	var attachments []records.Document
	if profile != nil && profile.Resume != nil && len(profile.Resume.Data) > 0 {
		attachments = append(attachments, *profile.Resume)
	}

	for _, to := range job.Emails {
		outcome.Attempts++
		if err := d.opts.Mailer.Send(ctx, to, subject, body, attachments); err != nil {
			outcome.Failed++
			log.Warn("email dispatch failed", zap.String("to", to), zap.Error(err))
			continue
		}
		outcome.Sent++
		log.Info("application emailed", zap.String("to", to), zap.String("subject", subject))
	}

	return outcome
}

func (d *Dispatcher) compose(ctx context.Context, log *zap.Logger, job *detector.JobCandidate, fit records.FitResult, profile *records.Profile) (string, string) {
	name, email, summary := profileFields(profile)

	if d.opts.Composer != nil {
		subject, body, err := d.opts.Composer.Compose(ctx, writer.Input{
			Name:       name,
			Email:      email,
			Context:    summary,
			JobSummary: job.RawText,
			JobLink:    job.FirstLink(),
			Style:      fit.RecommendedStyle,
		})
		if err == nil && strings.TrimSpace(body) != "" {
			return subject, body
		}
		log.Warn("compose email failed, using template", zap.Error(err))
	}

	return writer.FallbackSubject(name), templateBody(job, name, email)
}

func (d *Dispatcher) submitForm(ctx context.Context, log *zap.Logger, job *detector.JobCandidate, profile *records.Profile) Outcome {
	formURL := job.FormURL()
	fields := d.formFields(profile)
	outcome := Outcome{Attempts: 1}

	if d.opts.DryRun {
		log.Info("dry run: would submit form", zap.String("form", formURL), zap.Int("fields", len(fields)))
		outcome.SkipReason = ReasonDryRun
		return outcome
	}

	if d.opts.Forms == nil {
		log.Warn("no form filler configured")
		outcome.Failed = 1
		return outcome
	}

	if err := d.opts.Forms.Submit(ctx, formURL, fields); err != nil {
		log.Warn("form dispatch failed", zap.String("form", formURL), zap.Error(err))
		outcome.Failed = 1
		return outcome
	}

	log.Info("application form submitted", zap.String("form", formURL))
	outcome.Sent = 1
	return outcome
}

func (d *Dispatcher) formFields(profile *records.Profile) map[string]string {
	fields := make(map[string]string)
	if profile != nil {
		add := func(label, value string) {
			if value = strings.TrimSpace(value); value != "" {
				fields[label] = value
			}
		}
		add("Name", profile.Name)
		add("Email", profile.Email)
		add("GitHub", profile.GitHub)
		add("LinkedIn", profile.LinkedIn)
		add("Twitter", profile.Twitter)
		add("Resume", profile.ResumeLink)
	}
	maps.Copy(fields, d.opts.FormFields)
	return fields
}

func profileFields(profile *records.Profile) (string, string, string) {
	if profile == nil {
		return "", "", ""
	}
	return profile.Name, profile.Email, profile.Context.String()
}

func templateBody(job *detector.JobCandidate, name, email string) string {
	role := "the open position"
	if value := detector.Value(job.Role); value != "" {
		role = value
	}
	if company := detector.Value(job.Company); company != "" {
		role = fmt.Sprintf("%s at %s", role, company)
	}

	return fmt.Sprintf("Hello,\n\nI saw your post about %s and would like to apply. "+
		"My resume is attached when available, and I am happy to share more details.\n\nBest regards,\n%s\n%s",
		role, name, email)
}
