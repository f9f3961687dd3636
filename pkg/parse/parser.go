// Package parse reads the desired state of an application from its manifest
// source.
package parse

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/klog/v2"

	"kpt.dev/appsync/pkg/core"
	"kpt.dev/appsync/pkg/declared"
	"kpt.dev/appsync/pkg/metadata"
	"kpt.dev/appsync/pkg/status"
)

// Parser turns the manifests of one application into its desired state.
type Parser struct {
	// Application is the name of the application the manifests belong to.
	Application string
	// Namespace is the target namespace of the application.
	Namespace string
	// Source is where the manifests are read from.
	Source *Source
	// Scoper, if set, is used to reject cluster-scoped kinds.
	Scoper Scoper
}

// Parse reads every manifest in the source and returns the declared
// resources, in order of file path and then position within the file.
//
// Problems with individual documents are returned as MalformedManifest errors
// alongside the State, which holds every valid resource. If the source cannot
// be read, or a resource is declared more than once, the returned State is nil.
func (p *Parser) Parse(ctx context.Context) (*declared.State, status.MultiError) {
	snap, err := p.Source.resolve()
	if err != nil {
		return nil, status.SourceErrorWrap(err)
	}
	files, err := listFiles(snap.dir)
	if err != nil {
		return nil, status.SourceErrorWrap(err)
	}

	contents := make(map[string][]byte, len(files))
	for _, f := range files {
		if ctx.Err() != nil {
			return nil, status.SourceErrorWrap(ctx.Err())
		}
		b, err := os.ReadFile(filepath.Join(snap.dir, filepath.FromSlash(f)))
		if err != nil {
			return nil, status.SourceErrorWrap(errors.Wrapf(err, "reading %q", f))
		}
		contents[f] = b
	}

	revision := snap.commit
	if revision == "" {
		revision = fingerprint(contents)
	}

	state := declared.NewState(revision)
	var errs status.MultiError
	var dupErrs status.MultiError
	for _, f := range files {
		for _, doc := range parseFile(f, contents[f]) {
			if doc.err != nil {
				errs = status.Append(errs, status.MalformedManifestWrap(f, doc.err))
				continue
			}
			if err := p.normalize(f, doc.obj); err != nil {
				errs = status.Append(errs, err)
				continue
			}
			r := declared.Resource{ID: core.IDOf(doc.obj), Object: doc.obj, Path: f}
			if existing, ok := state.Add(r); !ok {
				dupErrs = status.Append(dupErrs, status.DuplicateResource(r.ID, existing.Path, f))
			}
		}
	}

	if dupErrs != nil {
		return nil, status.Append(dupErrs, errs)
	}
	klog.V(2).Infof("Parsed %d resources from %d files for %s at revision %s",
		state.Len(), len(files), p.Application, revision)
	return state, errs
}

// normalize defaults and validates a decoded object in place.
func (p *Parser) normalize(path string, u *unstructured.Unstructured) status.Error {
	if u.GetAPIVersion() == "" {
		return status.MalformedManifest(path, "apiVersion is required")
	}
	if u.GetKind() == "" {
		return status.MalformedManifest(path, "kind is required")
	}
	if u.GetName() == "" {
		return status.MalformedManifest(path, "metadata.name is required")
	}
	if u.GetGenerateName() != "" {
		return status.MalformedObject(path, u, "metadata.generateName is not supported")
	}

	if p.Scoper != nil {
		namespaced, err := p.Scoper.IsNamespaced(u.GroupVersionKind())
		switch {
		case meta.IsNoMatchError(err):
			// The kind may be registered by another resource in this cycle.
			klog.V(4).Infof("Unknown kind %s in %s, assuming namespace scope", u.GroupVersionKind(), path)
		case err != nil:
			return status.MalformedObject(path, u, err.Error())
		case !namespaced:
			return status.MalformedObject(path, u,
				"cluster-scoped resources are not supported, "+u.GroupVersionKind().String()+" is cluster-scoped")
		}
	}

	if u.GetNamespace() == "" {
		u.SetNamespace(p.Namespace)
	}
	if u.GetNamespace() != p.Namespace {
		return status.MalformedObject(path, u,
			"metadata.namespace must be "+p.Namespace+" but is "+u.GetNamespace())
	}

	if owner := metadata.OwningApplication(u); owner != "" && owner != p.Application {
		return status.MalformedObject(path, u,
			"declares ownership label "+metadata.ApplicationLabel+"="+owner+" for another application")
	}
	return nil
}
