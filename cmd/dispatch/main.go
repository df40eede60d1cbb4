// Command dispatch sends a campaign from the command line, outside the HTTP server.
// With -resume it continues a campaign left "running" by a crashed server: recipients
// already sent are skipped. Per-recipient failures are recorded and do not change the
// exit code.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"travel-backend/internal/config"
	"travel-backend/internal/db"
	"travel-backend/internal/dispatch"
	"travel-backend/internal/events"
	"travel-backend/internal/logger"
	"travel-backend/internal/models"
	"travel-backend/internal/repositories"
	"travel-backend/internal/timeutil"
	"travel-backend/internal/whatsapp"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "Path to config.yaml")
	orgID := flag.String("org", "", "Organization id (required)")
	campaignID := flag.String("campaign", "", "Campaign id (required)")
	rate := flag.Int("rate", 0, "Messages per minute (default: campaign setting)")
	retryFailed := flag.Bool("retry-failed", false, "Also resend recipients whose last attempt failed")
	dryRun := flag.Bool("dry-run", false, "Log what would be sent without calling the provider")
	resume := flag.Bool("resume", false, "Allow a campaign marked running (only when no server is sending it)")
	flag.Parse()

	if *orgID == "" || *campaignID == "" {
		fmt.Fprintln(os.Stderr, "usage: dispatch -org <org id> -campaign <campaign id> [-rate N] [-retry-failed] [-dry-run] [-resume]")
		os.Exit(1)
	}

	cfg, err := config.LoadFrom(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.NewForEnvironment(cfg.Environment, cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log, *orgID, *campaignID, *resume, dispatch.Options{
		RatePerMinute: *rate,
		RetryFailed:   *retryFailed,
		DryRun:        *dryRun,
	}); err != nil {
		log.Error("dispatch failed", zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
}

// checkStartable refuses a campaign another process may still be sending
func checkStartable(campaign *models.Campaign, resume bool) error {
	if campaign.Status == models.CampaignStatusRunning && !resume {
		return fmt.Errorf("campaign %s is running; pass -resume only if no server is sending it", campaign.ID)
	}
	return nil
}

func run(cfg *config.Config, log *zap.Logger, orgID, campaignID string, resume bool, opts dispatch.Options) error {
	if err := timeutil.Configure(cfg.Timezone); err != nil {
		log.Warn("unknown timezone, keeping default", zap.String("timezone", cfg.Timezone), zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	st := repositories.NewStore(pool)

	campaign, err := st.Campaigns().Get(ctx, orgID, campaignID)
	if err != nil {
		return fmt.Errorf("load campaign %s: %w", campaignID, err)
	}
	if err := checkStartable(campaign, resume); err != nil {
		return err
	}
	if opts.RatePerMinute == 0 {
		opts.RatePerMinute = campaign.RatePerMinute
	}
	if opts.RatePerMinute == 0 {
		opts.RatePerMinute = cfg.Dispatch.RatePerMinute
	}

	var publisher events.Publisher = events.NewLogPublisher(log)
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers)
	}
	defer publisher.Close()

	d := dispatch.NewDispatcher(st, whatsapp.NewRegistry(cfg, nil), publisher, nil, log)
	result, err := d.Run(ctx, campaign, opts)
	if err != nil {
		return err
	}

	log.Info("dispatch finished",
		zap.String("campaign_id", result.CampaignID),
		zap.String("status", result.Status),
		zap.Int("targeted", result.Targeted),
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
		zap.Bool("dry_run", result.DryRun),
		zap.Duration("elapsed", result.Elapsed))
	return nil
}
