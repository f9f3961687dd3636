package log

import (
	"flag"

	"k8s.io/klog/v2"

	"kpt.dev/appsync/pkg/version"
)

// Setup sets up default logging configs for appsync binaries and logs the
// preamble. fs receives the klog flags; nil means flag.CommandLine.
func Setup(fs *flag.FlagSet) {
	if fs == nil {
		fs = flag.CommandLine
	}
	if fs.Lookup("logtostderr") == nil {
		klog.InitFlags(fs)
	}
	if err := fs.Set("logtostderr", "true"); err != nil {
		klog.Fatal(err)
	}
	klog.Infof("Build Version: %s", version.VERSION)
}
