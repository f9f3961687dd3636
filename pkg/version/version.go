// Package version holds the build version of the appsync binaries.
package version

// VERSION is set at build time with
// -ldflags "-X kpt.dev/appsync/pkg/version.VERSION=<version>".
var VERSION = "UNKNOWN"
