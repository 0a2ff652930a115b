package login

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/openkcm/api-client/internal/business"
	"github.com/openkcm/api-client/internal/cmdutils"
	"github.com/openkcm/api-client/internal/config"
)

func Cmd(buildInfo string) *cobra.Command {
	var opts business.LoginOptions

	var cmd *cobra.Command
	cmd = cmdutils.CobraCommand(
		"login",
		"Log in with the identity provider",
		"Prints the authorization URL and waits for the redirect on the local callback server.",
		buildInfo,
		cmdutils.RunWithTelemetry,
		func(ctx context.Context, cfg *config.Config) error {
			return business.LoginMain(ctx, cfg, opts, cmd.OutOrStdout())
		},
	)

	cmd.Flags().BoolVar(&opts.NoListen, "no-listen", false, "only print the authorization URL")

	return cmd
}
