package callback

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/openkcm/api-client/internal/business"
	"github.com/openkcm/api-client/internal/cmdutils"
	"github.com/openkcm/api-client/internal/config"
)

func Cmd(buildInfo string) *cobra.Command {
	var cmd *cobra.Command
	cmd = cmdutils.CobraCommand(
		"callback <redirect-url>",
		"Complete a login",
		"Processes the URL the identity provider redirected the browser to.",
		buildInfo,
		cmdutils.RunWithTelemetry,
		func(ctx context.Context, cfg *config.Config) error {
			return business.CallbackMain(ctx, cfg, cmd.Flags().Arg(0), cmd.OutOrStdout())
		},
	)
	cmd.Args = cobra.ExactArgs(1)

	return cmd
}
