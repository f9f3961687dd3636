// Package v1alpha1 contains the data definitions for applications synced by
// appsync and the status recorded for them.
package v1alpha1
