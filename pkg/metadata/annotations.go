package metadata

// ResourceManagementKey indicates whether the resource is managed by the
// controller. Declared resources may set it to ResourceManagementDisabled to
// keep the declaration without having it applied.
const ResourceManagementKey = AppSyncPrefix + "managed"

const (
	// ResourceManagementEnabled is set on every resource the controller creates.
	ResourceManagementEnabled = "enabled"
	// ResourceManagementDisabled opts a declared resource out of management.
	ResourceManagementDisabled = "disabled"
)
