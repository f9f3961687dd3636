package reconcilermanager

const (
	// ManagerName is the name of the controller which runs the sync loops.
	ManagerName = "appsync-controller"
)

// Environment variables supplying defaults for the controller flags.
const (
	// ConfigPathKey is the path to the application configuration file.
	ConfigPathKey = "APPSYNC_CONFIG"
	// KubeconfigKey is the path to a kubeconfig file. In-cluster configuration
	// is used when unset.
	KubeconfigKey = "APPSYNC_KUBECONFIG"
	// MetricsAddrKey is the address the HTTP surface binds to.
	MetricsAddrKey = "APPSYNC_METRICS_ADDR"
	// PersistStatusKey enables saving application statuses in ConfigMaps.
	PersistStatusKey = "APPSYNC_PERSIST_STATUS"
)

// DefaultMetricsAddr is the address the HTTP surface binds to by default.
const DefaultMetricsAddr = ":8080"
