package migrate

import (
	"github.com/spf13/cobra"

	"github.com/openkcm/api-client/internal/business"
	"github.com/openkcm/api-client/internal/cmdutils"
)

func Cmd(buildInfo string) *cobra.Command {
	return cmdutils.CobraCommand(
		"migrate",
		"Apply the storage migrations",
		"Creates or upgrades the tables of the postgres storage backend.",
		buildInfo,
		cmdutils.RunWithTelemetry,
		business.MigrateMain,
	)
}
