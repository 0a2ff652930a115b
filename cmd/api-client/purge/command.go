package purge

import (
	"github.com/spf13/cobra"

	"github.com/openkcm/api-client/internal/business"
	"github.com/openkcm/api-client/internal/cmdutils"
)

func Cmd(buildInfo string) *cobra.Command {
	return cmdutils.CobraCommand(
		"purge",
		"Remove expired storage entries",
		"Deletes expired login attempts and sessions from the postgres storage backend.",
		buildInfo,
		cmdutils.RunAsJob,
		business.PurgeMain,
	)
}
