package manualsync

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"k8s.io/apimachinery/pkg/util/wait"

	"kpt.dev/appsync/cmd/appsync/client"
	"kpt.dev/appsync/cmd/appsync/flags"
	"kpt.dev/appsync/cmd/appsync/util"
	"kpt.dev/appsync/pkg/api/appsync/v1alpha1"
)

var (
	waitFlag     bool
	waitTimeout  time.Duration
	pollInterval = time.Second
)

func init() {
	flags.AddServer(Cmd)
	flags.AddTimeout(Cmd)
	Cmd.Flags().BoolVar(&waitFlag, "wait", false, "Wait for the requested cycle to finish")
	Cmd.Flags().DurationVar(&waitTimeout, "wait-timeout", 10*time.Minute, "How long to wait with --wait")
}

// Cmd is the Cobra object representing the appsync sync command.
var Cmd = &cobra.Command{
	Use:   "sync APPLICATION",
	Short: "Requests a sync cycle of an application",
	Long: `Requests a sync cycle of an application.
The cycle applies changes even if auto-sync is off. Applications promoted
from another one are only synced once that application is Healthy at the
same revision.
`,
	Example: `  appsync sync web-prod
  appsync sync web-prod --wait`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		c := client.New(flags.Server, flags.Timeout)
		st, err := Sync(cmd.Context(), os.Stdout, c, args[0], waitFlag)
		if err != nil {
			util.PrintErrAndDie(err)
		}
		if st != nil && st.Health != v1alpha1.HealthHealthy {
			os.Exit(1)
		}
	},
}

// Sync requests a sync cycle of application name. If wait is true, waits for
// a cycle which started after the request to finish and returns the
// resulting status.
func Sync(ctx context.Context, out io.Writer, c *client.Client, name string, wait bool) (*v1alpha1.ApplicationSyncStatus, error) {
	before, err := c.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	resp, err := c.Sync(ctx, name)
	if err != nil {
		return nil, err
	}
	if resp.Queued {
		pterm.Success.Printfln("Sync of %s requested", name)
	} else {
		pterm.Info.Printfln("Sync of %s already pending", name)
	}
	if !wait {
		return nil, nil
	}

	st, err := waitForCycle(ctx, c, name, latestCycle(before))
	if err != nil {
		return nil, err
	}
	last := st.History[len(st.History)-1]
	// nolint:errcheck
	fmt.Fprintf(out, "%s finished %s at revision %s\n", name, last.Health, util.ShortRevision(last.Revision))
	for _, e := range last.Errors {
		// nolint:errcheck
		fmt.Fprintf(out, "%s%s\n", util.Indent, e.ErrorMessage)
	}
	return st, nil
}

// latestCycle returns the ID of the latest cycle in st's history.
func latestCycle(st *v1alpha1.ApplicationSyncStatus) string {
	if len(st.History) == 0 {
		return ""
	}
	return st.History[len(st.History)-1].ID
}

func waitForCycle(ctx context.Context, c *client.Client, name, lastID string) (*v1alpha1.ApplicationSyncStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, waitTimeout)
	defer cancel()
	var st *v1alpha1.ApplicationSyncStatus
	err := wait.PollImmediateUntil(pollInterval, func() (bool, error) {
		var err error
		st, err = c.Get(ctx, name)
		if err != nil {
			return false, err
		}
		return st.Phase == v1alpha1.PhaseIdle && len(st.History) > 0 && latestCycle(st) != lastID, nil
	}, ctx.Done())
	if err != nil {
		return nil, errors.Wrapf(err, "waiting for the sync cycle of %s", name)
	}
	return st, nil
}
