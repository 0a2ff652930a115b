package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/openkcm/common-sdk/pkg/utils"
	"github.com/spf13/cobra"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/api-client/cmd/api-client/callback"
	"github.com/openkcm/api-client/cmd/api-client/configure"
	"github.com/openkcm/api-client/cmd/api-client/get"
	"github.com/openkcm/api-client/cmd/api-client/login"
	"github.com/openkcm/api-client/cmd/api-client/logout"
	"github.com/openkcm/api-client/cmd/api-client/migrate"
	"github.com/openkcm/api-client/cmd/api-client/purge"
	"github.com/openkcm/api-client/cmd/api-client/refresh"
	"github.com/openkcm/api-client/cmd/api-client/session"
	"github.com/openkcm/api-client/cmd/api-client/status"
)

// BuildInfo will be set by the build system
var BuildInfo = "{}"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "API Client Version",
	RunE: func(cmd *cobra.Command, _ []string) error {
		value, err := utils.ExtractFromComplexValue(BuildInfo)
		if err != nil {
			return err
		}

		slog.InfoContext(cmd.Context(), value)

		return nil
	},
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "api-client",
		Short: "API Client",
		Long:  "Client for the data API, logging in through the identity provider with a browser redirect.",
	}

	cmd.AddCommand(
		versionCmd,
		configure.Cmd(BuildInfo),
		login.Cmd(BuildInfo),
		callback.Cmd(BuildInfo),
		logout.Cmd(BuildInfo),
		session.Cmd(BuildInfo),
		status.Cmd(BuildInfo),
		refresh.Cmd(BuildInfo),
		get.Cmd(BuildInfo),
		migrate.Cmd(BuildInfo),
		purge.Cmd(BuildInfo),
	)

	return cmd
}

func execute() error {
	ctx, cancelOnSignal := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancelOnSignal()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		slogctx.Error(ctx, "failed to run the command", "error", err)
		_, _ = fmt.Fprintln(os.Stderr, err)

		return err
	}

	return nil
}

func main() {
	if err := execute(); err != nil {
		os.Exit(1)
	}
}
