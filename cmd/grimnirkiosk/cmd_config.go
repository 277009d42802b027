/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/friendsincode/grimnir_kiosk/internal/auth"
	"github.com/friendsincode/grimnir_kiosk/internal/config"
	"github.com/friendsincode/grimnir_kiosk/internal/configstore"
	"github.com/friendsincode/grimnir_kiosk/internal/db"
	"github.com/friendsincode/grimnir_kiosk/internal/logging"
	"github.com/friendsincode/grimnir_kiosk/internal/models"
	"github.com/friendsincode/grimnir_kiosk/internal/server"
)

var resetForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or change the persisted rotation config",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the rotation config as the kiosk would load it",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(cmd.Context(), func(ctx context.Context, m *configstore.Manager) error {
			cfg := m.Load(ctx)
			fmt.Fprintf(cmd.ErrOrStderr(), "backend=%s source=%s\n", m.Backend(), m.Source())
			return printJSON(cmd.OutOrStdout(), cfg)
		})
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a config file, or the persisted config when no file is given",
	Long: `Validate a rotation config.

Examples:
  # Check a file before deploying it
  grimnirkiosk config validate dashboard_config.json

  # Check what the configured backend currently holds
  grimnirkiosk config validate
`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigValidate,
}

var configResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Overwrite the persisted config with the defaults",
	RunE:  runConfigReset,
}

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password",
	Short: "Read a password from stdin and print a bcrypt hash for KIOSK_ADMIN_PASSWORD_HASH",
	RunE:  runHashPassword,
}

func init() {
	configResetCmd.Flags().BoolVarP(&resetForce, "force", "f", false, "Skip confirmation prompt")
	configCmd.AddCommand(configShowCmd, configValidateCmd, configResetCmd)
}

// withManager opens the configured store for a one-shot command.
func withManager(ctx context.Context, fn func(context.Context, *configstore.Manager) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var err error
	cfg, err = config.LoadStorage()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger = logging.Setup(cfg.Environment).Level(zerolog.WarnLevel)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	store, database, err := server.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if database != nil {
		defer db.Close(database)
	}

	return fn(ctx, configstore.NewManager(store, nil, logger))
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		cfg, err := configstore.NewFileStore(args[0]).Load(cmd.Context())
		if err != nil {
			return err
		}
		return reportValidation(cmd.OutOrStdout(), cfg)
	}

	return withManager(cmd.Context(), func(ctx context.Context, m *configstore.Manager) error {
		m.Load(ctx)
		if src := m.Source(); src != configstore.SourceStore {
			return fmt.Errorf("persisted config unusable, kiosk would fall back to %s", src)
		}
		return reportValidation(cmd.OutOrStdout(), m.Current(ctx))
	})
}

func reportValidation(out io.Writer, cfg models.RotationConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	fmt.Fprintf(out, "ok: %d pages, %ds per cycle, loop=%t, auto_start=%t\n",
		len(cfg.Destinations), cfg.TotalDurationSeconds(), cfg.Loop, cfg.AutoStart)
	if len(cfg.Destinations) == 0 {
		fmt.Fprintln(out, "warning: no pages configured, the rotation cannot be started")
	}
	return nil
}

func runConfigReset(cmd *cobra.Command, args []string) error {
	if !resetForce {
		fmt.Fprint(cmd.OutOrStdout(), "Replace the persisted rotation config with the defaults? [y/N]: ")
		answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
			return nil
		}
	}

	return withManager(cmd.Context(), func(ctx context.Context, m *configstore.Manager) error {
		saved, err := m.Reset(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "reset %s config to defaults\n", m.Backend())
		return printJSON(cmd.OutOrStdout(), saved)
	})
}

func runHashPassword(cmd *cobra.Command, args []string) error {
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return fmt.Errorf("password must not be empty")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), hash)
	return nil
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
