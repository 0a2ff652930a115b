package get

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/openkcm/api-client/internal/business"
	"github.com/openkcm/api-client/internal/cmdutils"
	"github.com/openkcm/api-client/internal/config"
	"github.com/openkcm/api-client/pkg/resource"
)

func Cmd(buildInfo string) *cobra.Command {
	var opts business.GetOptions

	var cmd *cobra.Command
	cmd = cmdutils.CobraCommand(
		"get <actions|datasets> [id]",
		"Read from the data API",
		"Lists a collection or reads a single item with the credential of the current session.",
		buildInfo,
		cmdutils.RunWithTelemetry,
		func(ctx context.Context, cfg *config.Config) error {
			opts.Collection = cmd.Flags().Arg(0)
			opts.ID = cmd.Flags().Arg(1)
			return business.GetMain(ctx, cfg, opts, cmd.OutOrStdout())
		},
	)
	cmd.Args = cobra.RangeArgs(1, 2)
	cmd.ValidArgs = []string{resource.Actions, resource.Datasets}

	cmd.Flags().StringToStringVarP(&opts.Query, "query", "q", nil, "query parameters for listing")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", business.OutputJSON, "output format, json or yaml")

	return cmd
}
