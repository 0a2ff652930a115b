package session

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/openkcm/api-client/internal/business"
	"github.com/openkcm/api-client/internal/cmdutils"
	"github.com/openkcm/api-client/internal/config"
)

func Cmd(buildInfo string) *cobra.Command {
	var opts business.SessionOptions

	var cmd *cobra.Command
	cmd = cmdutils.CobraCommand(
		"session",
		"Show the current session",
		"Prints the client configuration and the current session as YAML.",
		buildInfo,
		cmdutils.RunAsJob,
		func(ctx context.Context, cfg *config.Config) error {
			return business.SessionMain(ctx, cfg, opts, cmd.OutOrStdout())
		},
	)

	cmd.Flags().BoolVar(&opts.ShowCredentials, "show-credentials", false, "print tokens unmasked")

	return cmd
}
