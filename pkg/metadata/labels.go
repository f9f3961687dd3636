package metadata

// AppSyncPrefix is the prefix for all labels and annotations written by the
// controller.
const AppSyncPrefix = "appsync.kpt.dev/"

// ApplicationLabel records which application created a resource. Together
// with ResourceManagementKey it is the ownership marker that makes a resource
// eligible for pruning.
const ApplicationLabel = AppSyncPrefix + "application"

// StatusLabel marks the ConfigMaps which persist application sync status.
const StatusLabel = AppSyncPrefix + "status"

// ManagedByKey is the recommended Kubernetes label for marking a resource as
// managed by an application.
const ManagedByKey = "app.kubernetes.io/managed-by"

// ManagedByValue marks the resource as managed by appsync.
const ManagedByValue = "appsync"
