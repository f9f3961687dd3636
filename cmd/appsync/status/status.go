package status

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"k8s.io/apimachinery/pkg/util/duration"

	"kpt.dev/appsync/cmd/appsync/client"
	"kpt.dev/appsync/cmd/appsync/flags"
	"kpt.dev/appsync/cmd/appsync/util"
	"kpt.dev/appsync/pkg/api/appsync/v1alpha1"
)

var pollingInterval time.Duration

func init() {
	flags.AddServer(Cmd)
	flags.AddTimeout(Cmd)
	Cmd.Flags().DurationVar(&pollingInterval, "poll", 0, "Polling interval (leave unset to run once)")
}

// Cmd is the Cobra object representing the appsync status command.
var Cmd = &cobra.Command{
	Use:   "status [APPLICATION]",
	Short: "Prints the sync status of applications",
	Long: `Prints the sync status of every application, or the details of one.
`,
	Example: `  appsync status
  appsync status web-prod
  appsync status --poll=5s`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		c := client.New(flags.Server, flags.Timeout)
		show := func() error {
			if len(args) == 1 {
				st, err := c.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return PrintDetail(os.Stdout, st, time.Now())
			}
			return printAll(cmd.Context(), os.Stdout, c)
		}

		if pollingInterval <= 0 {
			if err := show(); err != nil {
				util.PrintErrAndDie(err)
			}
			return
		}
		for {
			if err := show(); err != nil {
				pterm.Error.Println(err)
			}
			time.Sleep(pollingInterval)
		}
	},
}

func printAll(ctx context.Context, out io.Writer, c *client.Client) error {
	statuses, err := c.List(ctx)
	if err != nil {
		return err
	}
	return PrintTable(out, statuses, time.Now())
}

// PrintTable writes one row per application to out. Ages are relative to
// now.
func PrintTable(out io.Writer, statuses []v1alpha1.ApplicationSyncStatus, now time.Time) error {
	if len(statuses) == 0 {
		_, err := fmt.Fprintln(out, "No applications configured.")
		return err
	}
	data := pterm.TableData{
		{"NAME", "PHASE", "HEALTH", "AUTO-SYNC", "SYNCED", "SOURCE", "LAST SYNC", "ERRORS"},
	}
	for _, st := range statuses {
		data = append(data, []string{
			st.Application,
			string(st.Phase),
			healthString(st.Health),
			strconv.FormatBool(st.AutoSync),
			util.ShortRevision(st.SyncedRevision),
			sourceString(st),
			age(st.LastSyncTime.Time, now),
			strconv.Itoa(len(st.Errors)),
		})
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return errors.Wrap(err, "rendering status table")
	}
	_, err = fmt.Fprintln(out, table)
	return err
}

// PrintDetail writes everything known about one application to out.
func PrintDetail(out io.Writer, st *v1alpha1.ApplicationSyncStatus, now time.Time) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Application:   %s\n", st.Application)
	fmt.Fprintf(&b, "Phase:         %s\n", st.Phase)
	fmt.Fprintf(&b, "Health:        %s\n", healthString(st.Health))
	fmt.Fprintf(&b, "Auto-sync:     %t\n", st.AutoSync)
	fmt.Fprintf(&b, "Synced:        %s\n", orNone(st.SyncedRevision))
	fmt.Fprintf(&b, "Source:        %s\n", orNone(st.SourceRevision))
	fmt.Fprintf(&b, "Last sync:     %s\n", age(st.LastSyncTime.Time, now))
	if st.ConsecutiveFailures > 0 {
		fmt.Fprintf(&b, "Failures:      %d in a row\n", st.ConsecutiveFailures)
	}
	if st.NextRetryTime != nil {
		fmt.Fprintf(&b, "Next retry:    in %s\n", duration.HumanDuration(st.NextRetryTime.Sub(now)))
	}

	if len(st.Errors) > 0 {
		b.WriteString("\nErrors:\n")
		for _, err := range st.Errors {
			fmt.Fprintf(&b, "%s%s\n", util.Indent, err.ErrorMessage)
		}
	}

	if pending := unfinished(st.Results); len(pending) > 0 {
		b.WriteString("\nResources not in sync:\n")
		for _, res := range pending {
			fmt.Fprintf(&b, "%s%s %s %s/%s: %s\n", util.Indent, res.Status, res.Operation,
				res.Resource.Kind, res.Resource.Name, res.Reason)
		}
	}

	if len(st.History) > 0 {
		b.WriteString("\nRecent cycles:\n")
		for i := len(st.History) - 1; i >= 0; i-- {
			c := st.History[i]
			fmt.Fprintf(&b, "%s%s ago  %-8s %-9s %s%s\n", util.Indent,
				duration.HumanDuration(now.Sub(c.EndTime.Time)), util.ShortRevision(c.Revision),
				healthString(c.Health), c.Trigger, formatCounts(c.Operations))
		}
	}
	_, err := io.WriteString(out, b.String())
	return err
}

func unfinished(results []v1alpha1.SyncResult) []v1alpha1.SyncResult {
	var out []v1alpha1.SyncResult
	for _, res := range results {
		if res.Status != v1alpha1.ResultSucceeded {
			out = append(out, res)
		}
	}
	return out
}

func formatCounts(counts map[v1alpha1.OperationType]int) string {
	var parts []string
	for op, n := range counts {
		if op == v1alpha1.OperationNoOp || n == 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%d", op, n))
	}
	if len(parts) == 0 {
		return ""
	}
	sort.Strings(parts)
	return " (" + strings.Join(parts, ", ") + ")"
}

func healthString(h v1alpha1.Health) string {
	switch h {
	case v1alpha1.HealthHealthy:
		return pterm.FgGreen.Sprint(h)
	case v1alpha1.HealthDegraded:
		return pterm.FgYellow.Sprint(h)
	case v1alpha1.HealthError:
		return pterm.FgRed.Sprint(h)
	case "":
		return util.UnknownMsg
	default:
		return string(h)
	}
}

// sourceString flags sources which moved past the synced revision.
func sourceString(st v1alpha1.ApplicationSyncStatus) string {
	if st.SourceRevision == "" || st.SourceRevision == st.SyncedRevision {
		return util.NoneMsg
	}
	return util.ShortRevision(st.SourceRevision)
}

func age(t, now time.Time) string {
	if t.IsZero() {
		return util.NoneMsg
	}
	return duration.HumanDuration(now.Sub(t)) + " ago"
}

func orNone(s string) string {
	if s == "" {
		return util.NoneMsg
	}
	return s
}
