// Command recalculate recomputes cached account balances from the ledger and reports drift.
// Without -org it reconciles every organization. It exits 1 if any account could not be
// recalculated.
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
	"travel-backend/internal/events"
	"travel-backend/internal/logger"
	"travel-backend/internal/models"
	"travel-backend/internal/repositories"
	"travel-backend/internal/services"
	"travel-backend/internal/timeutil"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "Path to config.yaml")
	orgID := flag.String("org", "", "Organization id (default: all organizations)")
	kind := flag.String("kind", "", "Account kind: bank or cash (default: both)")
	accountID := flag.String("account", "", "Single account id (requires -org and -kind)")
	flag.Parse()

	if *accountID != "" && (*orgID == "" || *kind == "") {
		fmt.Fprintln(os.Stderr, "-account requires -org and -kind")
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

	if err := run(cfg, log, *orgID, *kind, *accountID); err != nil {
		log.Error("recalculate failed", zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger, orgID, kindName, accountID string) error {
	if err := timeutil.Configure(cfg.Timezone); err != nil {
		log.Warn("unknown timezone, keeping default", zap.String("timezone", cfg.Timezone), zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var kind models.AccountKind
	if kindName != "" {
		k, err := services.ParseAccountKind(kindName)
		if err != nil {
			return err
		}
		kind = k
	}

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	balances := services.NewBalanceService(repositories.NewStore(pool), events.NewLogPublisher(log), log)

	if accountID != "" {
		b, err := balances.Recalculate(ctx, orgID, models.AccountRef{Kind: kind, ID: accountID})
		if err != nil {
			return err
		}
		log.Info("balance recalculated",
			zap.String("account", b.Account.String()),
			zap.String("previous", b.Previous.StringFixed(2)),
			zap.String("current", b.Current.StringFixed(2)),
			zap.String("drift", b.Drift().StringFixed(2)))
		return nil
	}

	var report *services.ReconcileReport
	if orgID == "" {
		report, err = balances.ReconcileAll(ctx)
	} else {
		report, err = balances.ReconcileOrg(ctx, orgID, kind)
	}
	if err != nil {
		return err
	}
	for _, b := range report.Drifted {
		fmt.Printf("%s\tprevious=%s\tcurrent=%s\tdrift=%s\n",
			b.Account, b.Previous.StringFixed(2), b.Current.StringFixed(2), b.Drift().StringFixed(2))
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d of %d accounts failed", report.Failed, report.Checked)
	}
	return nil
}
