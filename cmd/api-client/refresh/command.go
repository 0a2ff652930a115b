package refresh

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
		"refresh",
		"Refresh the session",
		"Redeems the refresh token of the session for a new access token.",
		buildInfo,
		cmdutils.RunWithTelemetry,
		func(ctx context.Context, cfg *config.Config) error {
			return business.RefreshMain(ctx, cfg, cmd.OutOrStdout())
		},
	)

	return cmd
}
