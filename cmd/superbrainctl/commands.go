package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/superbrain63/superbrain-ai/internal/app"
	"github.com/superbrain63/superbrain-ai/internal/domain"
)

func newShowCmd(newOps adminOpsFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "show <user-id>",
		Short: "Show the stored account of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			ops, closeOps, err := newOps(ctx)
			if err != nil {
				return err
			}
			defer closeOps()

			account, err := ops.inspectAccount(ctx, args[0])
			if errors.Is(err, domain.ErrAccountNotFound) {
				return fmt.Errorf("user %q has no account", args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to read account: %w", err)
			}

			return writeOutput(cmd.OutOrStdout(), accountToOutput(account, ops.policy, ops.nowFunc()))
		},
	}
}

func newRepairCmd(newOps adminOpsFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "repair <user-id>",
		Short: "Reset a user's usage and period, keeping a known tier",
		Long: `Reset a user's usage and period, keeping a known tier.

The account gets zero usage in a period starting now. An unknown or
unreadable tier falls back to free. Use this to fix accounts that the
server refuses to act on because of corrupt state.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			ops, closeOps, err := newOps(ctx)
			if err != nil {
				return err
			}
			defer closeOps()

			account, err := ops.repairAccount(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to repair account: %w", err)
			}

			return writeOutput(cmd.OutOrStdout(), accountToOutput(account, ops.policy, ops.nowFunc()))
		},
	}
}

func newSetTierCmd(newOps adminOpsFactory) *cobra.Command {
	return &cobra.Command{
		Use:       "set-tier <user-id> <free|premium>",
		Short:     "Move a user to a tier, keeping their usage",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{string(domain.TierFree), string(domain.TierPremium)},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			tier, err := domain.ParseTier(args[1])
			if err != nil {
				return err
			}

			ops, closeOps, err := newOps(ctx)
			if err != nil {
				return err
			}
			defer closeOps()

			account, err := ops.applyTierChange(ctx, args[0], tier, app.TierChangeSourceAdmin)
			if errors.Is(err, domain.ErrCorruptState) {
				return fmt.Errorf("account is corrupt, run repair first: %w", err)
			}
			if err != nil {
				return fmt.Errorf("failed to change tier: %w", err)
			}

			return writeOutput(cmd.OutOrStdout(), accountToOutput(account, ops.policy, ops.nowFunc()))
		},
	}
}
