package vet

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"kpt.dev/appsync/cmd/appsync/flags"
	"kpt.dev/appsync/cmd/appsync/util"
	"kpt.dev/appsync/pkg/api/appsync/v1alpha1"
	"kpt.dev/appsync/pkg/parse"
	"kpt.dev/appsync/pkg/reconcilermanager"
	"kpt.dev/appsync/pkg/status"
)

func init() {
	flags.AddConfig(Cmd)
}

// Cmd is the Cobra object representing the appsync vet command.
var Cmd = &cobra.Command{
	Use:   "vet [APPLICATION...]",
	Short: "Validate the manifests of applications",
	Long: `Validate the manifests of applications.
Parses the manifests of every configured application, or only of the named
ones, without talking to a cluster. Prints found errors to STDERR and returns
a non-zero exit code if any issues are found.
`,
	Example: `  appsync vet
  appsync vet web-dev
  appsync vet --config=/etc/appsync/apps.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := reconcilermanager.LoadConfig(flags.Config)
		if err != nil {
			util.PrintErrAndDie(err)
		}
		ok, err := Vet(cmd.Context(), os.Stdout, os.Stderr, cfg, args...)
		if err != nil {
			util.PrintErrAndDie(err)
		}
		if !ok {
			os.Exit(1)
		}
	},
}

// Vet parses the manifests of the named applications in cfg, or of all of
// them if names is empty. Reports each application to out and the errors
// found to errOut. Returns false if any manifest is invalid.
func Vet(ctx context.Context, out, errOut io.Writer, cfg *reconcilermanager.Config, names ...string) (bool, error) {
	apps, err := selectApps(cfg, names)
	if err != nil {
		return false, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ok := true
	for _, app := range apps {
		p := &parse.Parser{
			Application: app.Name,
			Namespace:   app.Namespace,
			Source:      &parse.Source{Dir: app.SourceDir, Path: app.Path},
		}
		desired, errs := p.Parse(ctx)
		if errs != nil {
			ok = false
			// nolint:errcheck
			fmt.Fprintf(errOut, "Found errors in application %q:\n%s\n", app.Name, status.FormatError(true, errs))
			continue
		}
		// nolint:errcheck
		fmt.Fprintf(out, "%s: %d resources at revision %s\n", app.Name, desired.Len(), util.ShortRevision(desired.Revision))
	}
	return ok, nil
}

func selectApps(cfg *reconcilermanager.Config, names []string) ([]v1alpha1.Application, error) {
	if len(names) == 0 {
		return cfg.Applications, nil
	}
	var apps []v1alpha1.Application
	for _, name := range names {
		app, found := cfg.Application(name)
		if !found {
			return nil, errors.Wrap(reconcilermanager.ErrUnknownApplication, name)
		}
		apps = append(apps, app)
	}
	return apps, nil
}
