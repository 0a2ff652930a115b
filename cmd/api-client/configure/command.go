package configure

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/openkcm/api-client/internal/business"
	"github.com/openkcm/api-client/internal/cmdutils"
	"github.com/openkcm/api-client/internal/config"
)

func Cmd(buildInfo string) *cobra.Command {
	var opts business.ConfigureOptions

	var cmd *cobra.Command
	cmd = cmdutils.CobraCommand(
		"configure",
		"Register the client",
		"Stores the client ID and the redirect URI used for logging in.",
		buildInfo,
		cmdutils.RunAsJob,
		func(ctx context.Context, cfg *config.Config) error {
			return business.ConfigureMain(ctx, cfg, opts, cmd.OutOrStdout())
		},
	)

	cmd.Flags().StringVar(&opts.ClientID, "client-id", "", "client ID registered at the identity provider")
	cmd.Flags().StringVar(&opts.RedirectURI, "redirect-uri", "", "redirect URI, defaults to the local callback server")
	_ = cmd.MarkFlagRequired("client-id")

	return cmd
}
