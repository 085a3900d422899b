package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/spigell/chat-applier/internal/ai"
	"github.com/spigell/chat-applier/internal/chatlog"
	"github.com/spigell/chat-applier/internal/detector"
	"github.com/spigell/chat-applier/internal/dispatch"
	"github.com/spigell/chat-applier/internal/filtering"
	"github.com/spigell/chat-applier/internal/fit"
	"github.com/spigell/chat-applier/internal/forms"
	"github.com/spigell/chat-applier/internal/logger"
	"github.com/spigell/chat-applier/internal/pipeline"
	"github.com/spigell/chat-applier/internal/records"
	"github.com/spigell/chat-applier/internal/storage"
	"github.com/spigell/chat-applier/internal/writer"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process the chat log and apply to detected jobs",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("reapply", "f", false, "do not skip jobs that were already applied to")
	runCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation before sending an application")
	runCmd.Flags().Bool("dry-run", false, "log intended applications without sending anything")
	runCmd.Flags().StringP("chat-log", "c", "", "path to the exported chat log")

	viper.BindPFlag("chat-log", runCmd.Flags().Lookup("chat-log"))
	viper.BindPFlag("apply.dry-run", runCmd.Flags().Lookup("dry-run"))
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(logger.Options{JSON: viper.GetBool("json"), Debug: viper.GetBool("debug")})
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	if config == nil {
		logger.Fatal("config is required")
	}

	logger.Info("starting the chat-applier", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if strings.TrimSpace(config.ChatLog) == "" {
		logger.Fatal("chat log is required", zap.String("hint", "set chat-log in the config or pass --chat-log"))
	}

	messages, err := chatlog.ParseFile(config.ChatLog)
	if err != nil {
		logger.Fatal("parsing chat log", zap.Error(err), zap.String("file", config.ChatLog))
	}
	logger.Info("chat log parsed", zap.Int("messages", messages.Len()))

	store, err := openStore(config, logger)
	if err != nil {
		logger.Fatal("opening database", zap.Error(err))
	}
	defer store.Close()

	profile, err := syncProfile(ctx, store, config.Profile)
	if err != nil {
		logger.Fatal("preparing profile", zap.Error(err))
	}

	summarizer, err := newSummarizer(ctx, config.AI, logger)
	if err != nil {
		logger.Fatal("creating summarizer", zap.Error(err))
	}

	fetcher, err := newFetcher(config.Scraper, logger)
	if err != nil {
		logger.Fatal("creating fetcher", zap.Error(err))
	}

	dispatcher, err := newDispatcher(cmd, config, summarizer, logger)
	if err != nil {
		logger.Fatal("creating dispatcher", zap.Error(err))
	}

	filters := prepareFilters(cmd, store, config, logger)

	p, err := pipeline.New(pipeline.Deps{
		Store:      store,
		Enricher:   newEnricher(config, fetcher, summarizer, false, logger),
		Scorer:     fit.NewScorer(summarizer, logger),
		Dispatcher: dispatcher,
		Filter:     filters,
	}, profile.ID, logger)
	if err != nil {
		logger.Fatal("creating pipeline", zap.Error(err))
	}

	stats, err := p.Run(ctx, messages.All())
	filters.LogSummary()
	if err != nil {
		logger.Fatal("run aborted", zap.Error(err),
			zap.Int("total", stats.Total),
			zap.Int("applied", stats.Applied),
			zap.Int("skipped", stats.Skipped),
		)
	}
}

func newDispatcher(cmd *cobra.Command, config *Config, summarizer ai.Summarizer, logger *zap.Logger) (*dispatch.Dispatcher, error) {
	var formsCfg forms.Config
	if config.Scraper != nil {
		formsCfg = forms.Config{Timeout: config.Scraper.Timeout, UserAgent: config.Scraper.UserAgent}
	}

	opts := dispatch.Options{
		Composer: writer.New(summarizer, logger),
		Forms:    forms.New(formsCfg, logger),
	}

	m, err := newMailer(config.SMTP, logger)
	if err != nil {
		return nil, err
	}
	if m != nil {
		opts.Mailer = m
	} else {
		logger.Warn("smtp is not configured, email applications will fail")
	}

	if config.Apply != nil {
		opts.MinScore = config.Apply.MinScore
		opts.DryRun = config.Apply.DryRun
		opts.FormFields = config.Apply.FormFields
	}

	if flag := cmd.Flag("auto-approve"); flag == nil || flag.Value.String() == "false" {
		opts.Approver = promptApprover{}
	}

	return dispatch.New(opts, logger), nil
}

func prepareFilters(cmd *cobra.Command, store storage.JobStore, config *Config, logger *zap.Logger) *filtering.Chain {
	var excluded []string
	if config.Apply != nil && config.Apply.Exclude != nil {
		excluded = config.Apply.Exclude.Companies
	}

	steps := []filtering.Filter{
		filtering.NewAppliedHistory(store),
		filtering.NewExcludedCompanies(excluded),
	}

	if flag := cmd.Flag("reapply"); flag != nil && strings.EqualFold(flag.Value.String(), "true") {
		filtering.DisableByName(steps, "applied_history", filtering.ReapplyReason())
	}

	for _, status := range filtering.Describe(steps) {
		logger.Debug("filter configured",
			zap.String("name", status.Name),
			zap.Bool("enabled", status.Enabled),
			zap.String("reason", status.Reason),
			zap.Any("details", status.Details),
		)
	}

	return filtering.NewChain(logger, steps...)
}

// promptApprover asks on the terminal before every application.
type promptApprover struct{}

func (promptApprover) Approve(_ context.Context, job *detector.JobCandidate, decision dispatch.Decision, result records.FitResult) (bool, error) {
	label := fmt.Sprintf("Apply via %s to %s at %s (score %d, %s)?",
		decision.Channel,
		orDefault(detector.Value(job.Role), "unknown role"),
		orDefault(detector.Value(job.Company), "unknown company"),
		result.Score,
		result.Chance,
	)

	prompt := promptui.Select{
		Label: label,
		Items: []string{PromptYes, PromptNo},
	}

	_, action, err := prompt.Run()
	if err != nil {
		return false, err
	}
	return action == PromptYes, nil
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
