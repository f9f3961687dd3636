package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"

	"kpt.dev/appsync/cmd/appsync/diff"
	"kpt.dev/appsync/cmd/appsync/manualsync"
	"kpt.dev/appsync/cmd/appsync/status"
	"kpt.dev/appsync/cmd/appsync/version"
	"kpt.dev/appsync/cmd/appsync/vet"
	pkgversion "kpt.dev/appsync/pkg/version"
)

var (
	rootCmd = &cobra.Command{
		Use: "appsync",
		Short: fmt.Sprintf(
			"Inspect and drive applications synced from manifests to a cluster (version %v)", pkgversion.VERSION),
	}
)

func init() {
	rootCmd.AddCommand(vet.Cmd)
	rootCmd.AddCommand(status.Cmd)
	rootCmd.AddCommand(diff.Cmd)
	rootCmd.AddCommand(manualsync.Cmd)
	rootCmd.AddCommand(version.Cmd)
}

func main() {
	// Exposes -v and the other klog flags on every subcommand.
	klog.InitFlags(nil)
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)

	err := rootCmd.Execute()
	klog.Flush()
	if err != nil {
		os.Exit(1)
	}
}
