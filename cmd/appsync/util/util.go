package util

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"kpt.dev/appsync/pkg/client/restconfig"
	"kpt.dev/appsync/pkg/parse"
)

const (
	// Indent is the extra spaces for indentation.
	Indent = "  "

	// UnknownMsg indicates that a field's value is unknown or unavailable.
	UnknownMsg = "UNKNOWN"
	// NoneMsg indicates that a field has no value yet.
	NoneMsg = "-"
)

// PrintErrAndDie prints an error to STDERR and exits immediately
func PrintErrAndDie(err error) {
	// nolint: errcheck
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

// ShortRevision truncates commit hashes for tabular output.
func ShortRevision(revision string) string {
	const maxTokenLength = 8
	if revision == "" {
		return NoneMsg
	}
	if len(revision) > maxTokenLength {
		return revision[:maxTokenLength]
	}
	return revision
}

// NewClusterClient returns a client of the cluster selected by kubeconfig and
// contextName, and a Scoper backed by the cluster's discovery API.
func NewClusterClient(kubeconfig, contextName string) (client.Client, parse.Scoper, error) {
	cfg, err := restconfig.NewRestConfig(kubeconfig, contextName)
	if err != nil {
		return nil, nil, err
	}
	c, err := client.New(cfg, client.Options{})
	if err != nil {
		return nil, nil, errors.Wrap(err, "creating cluster client")
	}
	return c, parse.RESTMapperScoper{Mapper: c.RESTMapper()}, nil
}
