package metrics

import (
	"go.opencensus.io/tag"
)

var (
	// KeyApplication groups metrics by application name.
	KeyApplication, _ = tag.NewKey("application")

	// KeyOperation groups metrics by their operation. Possible values: get, create, update, delete.
	KeyOperation, _ = tag.NewKey("operation")

	// KeyType groups metrics by the Kind of the resource.
	KeyType, _ = tag.NewKey("type")

	// KeyStatus groups metrics by their status. Possible values: success, error,
	// or a sync result status.
	KeyStatus, _ = tag.NewKey("status")

	// KeyTrigger groups metrics by what started a cycle. Possible values:
	// revision, drift, resync, retry, manual, startup.
	KeyTrigger, _ = tag.NewKey("trigger")

	// KeyHealth groups metrics by the outcome of a cycle.
	KeyHealth, _ = tag.NewKey("health")

	// KeyErrorCode groups metrics by their error code.
	KeyErrorCode, _ = tag.NewKey("errorcode")

	// KeyCommit groups metrics by their source revision. Even though this tag
	// has a high cardinality, it is only used by the LastValue last_sync_timestamp
	// metric, so there is at most one recorded value per revision.
	KeyCommit, _ = tag.NewKey("commit")
)

// StatusTagKey returns a string representation of the error, if it exists, otherwise success.
func StatusTagKey(err error) string {
	if err == nil {
		return "success"
	}
	return "error"
}
