package vet

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kpt.dev/appsync/pkg/api/appsync/v1alpha1"
	"kpt.dev/appsync/pkg/reconcilermanager"
)

const validManifest = `apiVersion: v1
kind: ConfigMap
metadata:
  name: settings
data:
  color: blue
`

const nameless = `apiVersion: v1
kind: ConfigMap
metadata: {}
`

func writeManifest(t *testing.T, dir, name, contents string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644))
}

func testConfig(root string) *reconcilermanager.Config {
	return &reconcilermanager.Config{
		Applications: []v1alpha1.Application{
			{Name: "web-dev", SourceDir: root, Path: "dev", Namespace: "web-dev"},
			{Name: "web-prod", SourceDir: root, Path: "prod", Namespace: "web-prod"},
		},
	}
}

func TestVet(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, filepath.Join(root, "dev"), "settings.yaml", validManifest)
	writeManifest(t, filepath.Join(root, "prod"), "settings.yaml", validManifest)
	writeManifest(t, filepath.Join(root, "prod"), "broken.yaml", nameless)
	cfg := testConfig(root)

	testCases := []struct {
		name       string
		apps       []string
		wantOK     bool
		wantOut    []string
		wantErrOut []string
	}{
		{
			name:    "valid application",
			apps:    []string{"web-dev"},
			wantOK:  true,
			wantOut: []string{"web-dev: 1 resources"},
		},
		{
			name:       "invalid application",
			apps:       []string{"web-prod"},
			wantOK:     false,
			wantErrOut: []string{`Found errors in application "web-prod"`, "ASE1001", "broken.yaml"},
		},
		{
			name:       "every application",
			wantOK:     false,
			wantOut:    []string{"web-dev: 1 resources"},
			wantErrOut: []string{`"web-prod"`},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			ok, err := Vet(context.Background(), &out, &errOut, cfg, tc.apps...)
			require.NoError(t, err)
			assert.Equal(t, tc.wantOK, ok)
			for _, want := range tc.wantOut {
				assert.Contains(t, out.String(), want)
			}
			for _, want := range tc.wantErrOut {
				assert.Contains(t, errOut.String(), want)
			}
			if len(tc.wantErrOut) == 0 {
				assert.Empty(t, errOut.String())
			}
		})
	}
}

func TestVetUnknownApplication(t *testing.T) {
	var out, errOut bytes.Buffer
	_, err := Vet(context.Background(), &out, &errOut, testConfig(t.TempDir()), "web-qa")
	assert.ErrorIs(t, err, reconcilermanager.ErrUnknownApplication)
}
