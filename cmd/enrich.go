package cmd

import (
	"context"
	"log"
	"time"

	"github.com/spigell/chat-applier/internal/enrichment"
	"github.com/spigell/chat-applier/internal/logger"
	"github.com/spigell/chat-applier/internal/storage"
	"github.com/spigell/chat-applier/internal/utils"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Enrich the stored profile and all known companies",
	Long: "Enrich the stored profile and all known companies. Runs once by default, " +
		"which suits cron; --interval keeps it running.",
	Run: func(cmd *cobra.Command, _ []string) {
		enrich(cmd)
	},
}

func init() {
	rootCmd.AddCommand(enrichCmd)

	enrichCmd.Flags().Bool("force", false, "re-enrich entities that already have a cached context")
	enrichCmd.Flags().Duration("interval", 0, "repeat enrichment with this interval instead of exiting")
}

func enrich(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(logger.Options{JSON: viper.GetBool("json"), Debug: viper.GetBool("debug")})
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil || config == nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	force, _ := cmd.Flags().GetBool("force")
	interval, _ := cmd.Flags().GetDuration("interval")

	store, err := openStore(config, logger)
	if err != nil {
		logger.Fatal("opening database", zap.Error(err))
	}
	defer store.Close()

	if _, err := syncProfile(ctx, store, config.Profile); err != nil {
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

	enricher := newEnricher(config, fetcher, summarizer, force, logger)

	for {
		if err := enrichOnce(ctx, store, enricher, config.Profile.ID, logger); err != nil {
			logger.Fatal("enrichment aborted", zap.Error(err))
		}

		if interval <= 0 {
			return
		}

		logger.Info("waiting for the next enrichment", zap.Duration("interval", interval))
		if err := utils.WaitFor(ctx, interval); err != nil {
			return
		}
	}
}

// enrichOnce enriches the profile and every stored company. Enrichment failures
// are logged per entity; store failures abort.
func enrichOnce(ctx context.Context, store storage.Store, enricher *enrichment.Enricher, profileID string, logger *zap.Logger) error {
	started := time.Now()
	enriched := 0

	profile, err := store.GetProfile(ctx, profileID)
	if err != nil {
		return err
	}

	logger.Info("enriching profile", zap.String("profile", profile.ID), zap.String("name", profile.Name))
	changed, err := enricher.EnrichProfile(ctx, profile)
	if err != nil {
		logger.Warn("profile enrichment failed", zap.String("profile", profile.ID), zap.Error(err))
	}
	if changed {
		if err := store.SaveProfile(ctx, profile); err != nil {
			return err
		}
		enriched++
	}

	companies, err := store.ListCompanies(ctx)
	if err != nil {
		return err
	}

	for _, company := range companies {
		logger.Info("enriching company", zap.String("company", company.Name))
		changed, err := enricher.EnrichCompany(ctx, company)
		if err != nil {
			logger.Warn("company enrichment failed", zap.String("company", company.Name), zap.Error(err))
			continue
		}
		if !changed {
			continue
		}
		if err := store.SaveCompany(ctx, company); err != nil {
			return err
		}
		enriched++
	}

	logger.Info("enrichment completed",
		zap.Int("companies", len(companies)),
		zap.Int("enriched", enriched),
		zap.Duration("took", time.Since(started)),
	)
	return nil
}
