package status

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"kpt.dev/appsync/pkg/api/appsync/v1alpha1"
	"kpt.dev/appsync/pkg/core"
)

var errFoo = InternalError("foo")
var errBar = SourceErrorf("bar")
var errBaz = InternalError("baz")

var errFooRaw = errors.New("raw foo")
var errBarRaw = errors.New("raw bar")

func TestAppend(t *testing.T) {
	for _, tc := range []struct {
		name   string
		errors []error
		want   MultiError
	}{
		{
			"build golang errors",
			[]error{errFooRaw, errBarRaw},
			&multiError{errs: []Error{undocumented(errFooRaw), undocumented(errBarRaw)}},
		},
		{
			"build status Errors",
			[]error{errFoo, errBar},
			&multiError{errs: []Error{errFoo, errBar}},
		},
		{
			"build nil errors",
			[]error{nil, nil},
			nil,
		},
		{
			"build mixed errors",
			[]error{errBaz, nil, errFooRaw},
			&multiError{errs: []Error{errBaz, undocumented(errFooRaw)}},
		},
		{
			"combine MultiErrors",
			[]error{&multiError{[]Error{errFoo, errBar}}, &multiError{[]Error{errBaz}}},
			&multiError{[]Error{errFoo, errBar, errBaz}},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var errs MultiError
			for _, err := range tc.errors {
				errs = Append(errs, err)
			}

			switch {
			case tc.want == nil && errs == nil:
				// Nothing to check; successful test.
			case tc.want == nil && errs != nil:
				t.Errorf("got %v; want nil", errs)
			case tc.want != nil && errs == nil:
				t.Errorf("got nil; want %v", tc.want)
			default:
				if !DeepEqual(tc.want, errs) {
					t.Errorf("got %v; want %v", errs, tc.want)
				}
			}
		})
	}
}

func TestFormatError(t *testing.T) {
	errs := Append(nil, errFooRaw, errBarRaw, errFooRaw)

	wantMulti := "2 error(s)\n[1] ASE9999: raw bar\n[2] ASE9999: raw foo"
	if diff := cmp.Diff(wantMulti, FormatError(true, errs)); diff != "" {
		t.Error(diff)
	}

	wantSingle := "2 error(s) [1] ASE9999: raw bar [2] ASE9999: raw foo"
	if diff := cmp.Diff(wantSingle, FormatSingleLine(errs)); diff != "" {
		t.Error(diff)
	}
}

func TestHasCode(t *testing.T) {
	errs := Append(nil, errFoo, SourceErrorf("missing"))

	if !HasCode(errs, SourceErrorCode) {
		t.Errorf("HasCode(%q) = false, want true", SourceErrorCode)
	}
	if HasCode(errs, DuplicateResourceErrorCode) {
		t.Errorf("HasCode(%q) = true, want false", DuplicateResourceErrorCode)
	}
	if HasCode(nil, InternalErrorCode) {
		t.Error("HasCode(nil) = true, want false")
	}
	if got := len(Filter(errs, InternalErrorCode).Errors()); got != 1 {
		t.Errorf("Filter() returned %d errors, want 1", got)
	}
}

func TestResourceErrorBody(t *testing.T) {
	id := core.ID{
		GroupKind: schema.GroupKind{Group: "apps", Kind: "Deployment"},
		ObjectKey: client.ObjectKey{Namespace: "web", Name: "frontend"},
	}
	err := ApplyRejected(id, "Update", errors.New("spec.replicas: Invalid value"))

	want := "ASE2003: Update rejected: spec.replicas: Invalid value\n\n" +
		"Affected resources: Deployment.apps, web/frontend"
	if diff := cmp.Diff(want, err.Error()); diff != "" {
		t.Error(diff)
	}
	if got := errors.Cause(err.Cause()).Error(); got != "spec.replicas: Invalid value" {
		t.Errorf("Cause() = %q", got)
	}
}

func TestWrapNil(t *testing.T) {
	if err := SourceErrorWrap(nil); err != nil {
		t.Errorf("SourceErrorWrap(nil) = %v, want nil", err)
	}
}

func TestToASE(t *testing.T) {
	id := core.ID{
		GroupKind: schema.GroupKind{Kind: "ConfigMap"},
		ObjectKey: client.ObjectKey{Namespace: "web", Name: "settings"},
	}
	errs := Append(nil, CycleTimeout(time.Minute), ResourceReadError(id, errors.New("forbidden")))

	got := ToASE(errs)
	if len(got) != 2 {
		t.Fatalf("ToASE() returned %d errors, want 2", len(got))
	}
	want := v1alpha1.AppSyncError{
		Code:         ResourceReadErrorCode,
		ErrorMessage: ResourceReadError(id, errors.New("forbidden")).Error(),
		Resources:    []v1alpha1.ResourceRef{{Kind: "ConfigMap", Namespace: "web", Name: "settings"}},
	}
	if diff := cmp.Diff(want, got[1]); diff != "" {
		t.Error(diff)
	}
	if ToASE(nil) != nil {
		t.Error("ToASE(nil) returned errors, want nil")
	}
}

func TestNilErrors(t *testing.T) {
	var errs MultiError
	if HasCode(errs, MalformedManifestErrorCode) {
		t.Error("HasCode(nil MultiError) = true, want false")
	}
	if got := Filter(errs, SourceErrorCode); got != nil {
		t.Errorf("Filter(nil) = %v, want nil", got)
	}
	if got := FormatError(true, errs); got != "" {
		t.Errorf("FormatError(nil) = %q, want empty", got)
	}
	if got := Messages(nil); len(got) != 0 {
		t.Errorf("Messages(nil) = %v, want none", got)
	}
	if got := ToASE(errs); len(got) != 0 {
		t.Errorf("ToASE(nil) = %v, want none", got)
	}
}
