package flags

import (
	"os"
	"time"

	"github.com/spf13/cobra"
)

const (
	// ServerFlag is the flag to set the Server value.
	ServerFlag = "server"
	// ConfigFlag is the flag to set the Config value.
	ConfigFlag = "config"
	// KubeconfigFlag is the flag to set the Kubeconfig value.
	KubeconfigFlag = "kubeconfig"
	// ContextFlag is the flag to set the Context value.
	ContextFlag = "context"
	// TimeoutFlag is the flag to set the Timeout value.
	TimeoutFlag = "timeout"

	// serverEnv overrides the default of the server flag.
	serverEnv = "APPSYNC_SERVER"
	// defaultServer is where a port-forwarded controller listens.
	defaultServer = "http://localhost:8080"
)

var (
	// Server is the base URL of the appsync controller's HTTP surface.
	Server string

	// Config is the path to the application configuration file.
	Config string

	// Kubeconfig is the path to the kubeconfig file. Empty means $KUBECONFIG
	// or ~/.kube/config.
	Kubeconfig string

	// Context is the kubeconfig context to use. Empty means the current one.
	Context string

	// Timeout bounds each request.
	Timeout time.Duration
)

// AddServer adds the flag naming the controller to talk to.
func AddServer(cmd *cobra.Command) {
	server := os.Getenv(serverEnv)
	if server == "" {
		server = defaultServer
	}
	cmd.Flags().StringVar(&Server, ServerFlag, server,
		"Base URL of the appsync controller. Defaults to $"+serverEnv+" if set.")
}

// AddConfig adds the flag pointing at the application configuration file.
func AddConfig(cmd *cobra.Command) {
	cmd.Flags().StringVar(&Config, ConfigFlag, "apps.yaml",
		"Path to the file listing the applications.")
}

// AddKubeconfig adds the flags selecting the cluster to talk to.
func AddKubeconfig(cmd *cobra.Command) {
	cmd.Flags().StringVar(&Kubeconfig, KubeconfigFlag, "",
		"Path to the kubeconfig file. Defaults to $KUBECONFIG or ~/.kube/config.")
	cmd.Flags().StringVar(&Context, ContextFlag, "",
		"The kubeconfig context to use. Defaults to the current context.")
}

// AddTimeout adds the flag bounding each request.
func AddTimeout(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&Timeout, TimeoutFlag, 10*time.Second,
		"Timeout for each request.")
}
