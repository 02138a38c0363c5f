package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	_ "golang.org/x/crypto/x509roots/fallback"

	"github.com/superbrain63/superbrain-ai/internal/adapters/accountrepository"
	"github.com/superbrain63/superbrain-ai/internal/app"
	"github.com/superbrain63/superbrain-ai/internal/config"
	"github.com/superbrain63/superbrain-ai/internal/domain"
	"github.com/superbrain63/superbrain-ai/internal/logging"
)

type adminOps struct {
	policy          domain.QuotaPolicy
	nowFunc         func() time.Time
	inspectAccount  app.InspectAccount
	repairAccount   app.RepairAccount
	applyTierChange app.ApplyTierChange
}

type adminOpsFactory func(ctx context.Context) (adminOps, func(), error)

func buildAdminOps(repo accountrepository.AccountRepository, policy domain.QuotaPolicy, nowFunc func() time.Time) adminOps {
	return adminOps{
		policy:          policy,
		nowFunc:         nowFunc,
		inspectAccount:  app.BuildInspectAccount(repo),
		repairAccount:   app.BuildRepairAccount(repo, policy, nowFunc),
		applyTierChange: app.BuildApplyTierChange(repo, policy),
	}
}

func adminOpsFromEnv(logger *slog.Logger) adminOpsFactory {
	return func(ctx context.Context) (adminOps, func(), error) {
		conf, err := config.ConfigFromEnv()
		if err != nil {
			return adminOps{}, nil, fmt.Errorf("failed to load config: %w", err)
		}
		logger.DebugContext(ctx, "Loaded config", "config", conf.NonSensitiveString())

		policy, err := conf.QuotaPolicy()
		if err != nil {
			return adminOps{}, nil, fmt.Errorf("failed to build quota policy: %w", err)
		}

		repo, closeRepo, err := accountrepository.NewFromConfig(ctx, conf, logger)
		if err != nil {
			return adminOps{}, nil, err
		}

		return buildAdminOps(repo, policy, time.Now), closeRepo, nil
	}
}

func newRootCmd(newOps adminOpsFactory) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "superbrainctl",
		Short: "Administer SuperBrain AI accounts",
		Long: `Administer SuperBrain AI accounts.

Reads the same environment as the server to find the account store.
This is the only tool that rewrites accounts in a corrupt state.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newShowCmd(newOps),
		newRepairCmd(newOps),
		newSetTierCmd(newOps),
	)

	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	ctx = logging.AddToContext(ctx, logger.With("component", "superbrainctl"))

	if err := newRootCmd(adminOpsFromEnv(logger)).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
