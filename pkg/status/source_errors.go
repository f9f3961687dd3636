package status

import (
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"kpt.dev/appsync/pkg/core"
)

// MalformedManifestErrorCode is the error code for manifest documents which
// could not be decoded or are missing required fields.
const MalformedManifestErrorCode = "1001"

// DuplicateResourceErrorCode is the error code for two manifests declaring
// the same resource.
const DuplicateResourceErrorCode = "1002"

// SourceErrorCode is the error code for failures reading the manifest source
// itself.
const SourceErrorCode = "1003"

var (
	malformedManifestError = NewErrorBuilder(MalformedManifestErrorCode)
	duplicateResourceError = NewErrorBuilder(DuplicateResourceErrorCode)
	sourceError            = NewErrorBuilder(SourceErrorCode)
)

// MalformedManifest reports a document in the file at path which could not
// be turned into a valid resource.
func MalformedManifest(path string, reason string) Error {
	return malformedManifestError.Sprintf("%s: %s", path, reason).Build()
}

// MalformedManifestWrap reports a document in the file at path which failed to
// decode.
func MalformedManifestWrap(path string, err error) Error {
	return malformedManifestError.Sprintf("%s: invalid manifest", path).Wrap(err).Build()
}

// MalformedObject reports a decoded object which failed validation.
func MalformedObject(path string, u *unstructured.Unstructured, reason string) Error {
	return malformedManifestError.Sprintf("%s: %s", path, reason).
		BuildWithResources(core.IDOf(u))
}

// DuplicateResource reports that the same resource is declared in more than
// one manifest.
func DuplicateResource(id core.ID, paths ...string) Error {
	return duplicateResourceError.Sprintf("resource declared more than once in %v", paths).
		BuildWithResources(id)
}

// SourceErrorWrap reports a failure reading the manifest source.
func SourceErrorWrap(err error) Error {
	return sourceError.Wrap(err).Build()
}

// SourceErrorf reports a problem with the manifest source.
func SourceErrorf(format string, a ...interface{}) Error {
	return sourceError.Sprintf(format, a...).Build()
}
