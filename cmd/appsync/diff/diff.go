package diff

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/pterm/pterm"
	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/yaml"

	"kpt.dev/appsync/cmd/appsync/flags"
	"kpt.dev/appsync/cmd/appsync/util"
	"kpt.dev/appsync/pkg/api/appsync/v1alpha1"
	"kpt.dev/appsync/pkg/declared"
	"kpt.dev/appsync/pkg/diff"
	"kpt.dev/appsync/pkg/live"
	"kpt.dev/appsync/pkg/parse"
	"kpt.dev/appsync/pkg/reconcilermanager"
	"kpt.dev/appsync/pkg/status"
	"kpt.dev/appsync/pkg/syncstatus"
)

func init() {
	flags.AddConfig(Cmd)
	flags.AddKubeconfig(Cmd)
	flags.AddTimeout(Cmd)
}

// Cmd is the Cobra object representing the appsync diff command.
var Cmd = &cobra.Command{
	Use:   "diff APPLICATION",
	Short: "Shows what a sync of an application would change",
	Long: `Shows what a sync of an application would change.
Parses the application's manifests, reads the live resources from the cluster
and prints the changes a sync cycle would apply, without applying them.
Returns a non-zero exit code if the application is out of sync.
`,
	Example: `  appsync diff web-prod
  appsync diff web-prod --context=prod-cluster`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := reconcilermanager.LoadConfig(flags.Config)
		if err != nil {
			util.PrintErrAndDie(err)
		}
		app, found := cfg.Application(args[0])
		if !found {
			util.PrintErrAndDie(errors.Wrap(reconcilermanager.ErrUnknownApplication, args[0]))
		}
		c, scoper, err := util.NewClusterClient(flags.Kubeconfig, flags.Context)
		if err != nil {
			util.PrintErrAndDie(err)
		}
		opts := cfg.Options(app)
		inSync, err := Diff(cmd.Context(), os.Stdout, Options{
			Application: app,
			Client:      c,
			Scoper:      scoper,
			CallTimeout: flags.Timeout,
			Concurrency: opts.ReadConcurrency,
		})
		if err != nil {
			util.PrintErrAndDie(err)
		}
		if !inSync {
			os.Exit(1)
		}
	},
}

// Options configure Diff.
type Options struct {
	Application v1alpha1.Application
	Client      client.Client
	Scoper      parse.Scoper
	CallTimeout time.Duration
	Concurrency int
}

// Diff prints to out the operations a sync cycle of the application would
// apply. Returns true if there are none.
//
// Undeclared resources the application created, according to its persisted
// inventory, are shown as deletions.
func Diff(ctx context.Context, out io.Writer, opts Options) (bool, error) {
	app := opts.Application
	p := &parse.Parser{
		Application: app.Name,
		Namespace:   app.Namespace,
		Source:      &parse.Source{Dir: app.SourceDir, Path: app.Path},
		Scoper:      opts.Scoper,
	}
	desired, errs := p.Parse(ctx)
	if desired == nil {
		return false, errs
	}
	if errs != nil {
		pterm.Warning.Println("Some manifests are invalid and are not shown:\n" + status.FormatError(true, errs))
	}

	persister := &syncstatus.ConfigMapPersister{Client: opts.Client, CallTimeout: opts.CallTimeout}
	st, err := persister.Load(ctx, app.Name, app.Namespace)
	if err != nil {
		return false, err
	}
	var inventory []v1alpha1.ResourceRef
	if st != nil {
		inventory = st.Inventory
	}

	reader := &live.Reader{
		Application: app.Name,
		Client:      opts.Client,
		CallTimeout: opts.CallTimeout,
		Concurrency: opts.Concurrency,
	}
	actual, readErrs := reader.Read(ctx, declared.Union(desired, inventory))
	if actual == nil {
		return false, readErrs
	}
	if readErrs != nil {
		pterm.Warning.Println("Some resources could not be read and are not shown:\n" + status.FormatError(true, readErrs))
	}

	ops := diff.Plan(app.Name, desired, actual, !status.HasCode(errs, status.MalformedManifestErrorCode))
	inSync := true
	for _, op := range ops {
		if op.Type == v1alpha1.OperationNoOp {
			continue
		}
		inSync = false
		if err := printOperation(out, op); err != nil {
			return false, err
		}
	}
	if inSync {
		_, err := fmt.Fprintf(out, "Application %s is in sync at revision %s.\n", app.Name, util.ShortRevision(desired.Revision))
		return true, err
	}
	return false, nil
}

func printOperation(out io.Writer, op diff.Operation) error {
	var before, after *unstructured.Unstructured
	switch op.Type {
	case v1alpha1.OperationCreate:
		after = op.Declared
	case v1alpha1.OperationUpdate:
		before = sanitize(op.Actual)
		after = before.DeepCopy()
		diff.MergePatch(after.Object, op.Patch)
	case v1alpha1.OperationDelete:
		before = sanitize(op.Actual)
	}
	from, err := toYAML(before)
	if err != nil {
		return err
	}
	to, err := toYAML(after)
	if err != nil {
		return err
	}

	header := fmt.Sprintf("%s %s", op.Type, op.ID)
	if len(op.Fields) > 0 {
		header += " (" + diff.FormatPaths(op.Fields) + ")"
	}
	_, err = fmt.Fprintf(out, "%s\n%s\n", pterm.Bold.Sprint(header), lineDiff(from, to))
	return err
}

// sanitize drops the fields of a live object which are never synced.
func sanitize(u *unstructured.Unstructured) *unstructured.Unstructured {
	u = u.DeepCopy()
	unstructured.RemoveNestedField(u.Object, "status")
	for _, f := range []string{"managedFields", "resourceVersion", "uid", "generation", "creationTimestamp", "selfLink"} {
		unstructured.RemoveNestedField(u.Object, "metadata", f)
	}
	return u
}

func toYAML(u *unstructured.Unstructured) (string, error) {
	if u == nil {
		return "", nil
	}
	b, err := yaml.Marshal(u.Object)
	if err != nil {
		return "", errors.Wrapf(err, "encoding %s", u.GetName())
	}
	return string(b), nil
}

// lineDiff renders the line by line difference between from and to, with
// added lines prefixed by "+" and removed ones by "-".
func lineDiff(from, to string) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(from, to)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var sb strings.Builder
	for _, d := range diffs {
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			line = strings.TrimSuffix(line, "\n")
			switch d.Type {
			case diffmatchpatch.DiffInsert:
				sb.WriteString(pterm.FgGreen.Sprint("+ "+line) + "\n")
			case diffmatchpatch.DiffDelete:
				sb.WriteString(pterm.FgRed.Sprint("- "+line) + "\n")
			default:
				sb.WriteString(util.Indent + line + "\n")
			}
		}
	}
	return sb.String()
}
