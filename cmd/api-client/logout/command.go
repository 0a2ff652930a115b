package logout

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
		"logout",
		"Log out",
		"Removes the session and any outstanding login attempt.",
		buildInfo,
		cmdutils.RunAsJob,
		func(ctx context.Context, cfg *config.Config) error {
			return business.LogoutMain(ctx, cfg, cmd.OutOrStdout())
		},
	)

	return cmd
}
