package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"kpt.dev/appsync/pkg/version"
)

// Cmd is the Cobra object representing the appsync version command.
var Cmd = &cobra.Command{
	Use:   "version",
	Short: "Prints the version of this binary",
	Long: `Prints the version of the "appsync" client binary for debugging purposes.
`,
	Example: `  appsync version`,
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("%s\n", version.VERSION)
	},
}
