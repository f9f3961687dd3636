package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kpt.dev/appsync/pkg/api/appsync/v1alpha1"
	"kpt.dev/appsync/pkg/reconcilermanager"
	"kpt.dev/appsync/pkg/status"
)

type fakeApplications struct {
	statuses map[string]v1alpha1.ApplicationSyncStatus
	blocked  map[string]bool
	promoted []string
}

func (f *fakeApplications) List() []v1alpha1.ApplicationSyncStatus {
	var out []v1alpha1.ApplicationSyncStatus
	for _, name := range []string{"web-dev", "web-prod"} {
		if st, found := f.statuses[name]; found {
			out = append(out, st)
		}
	}
	return out
}

func (f *fakeApplications) Status(name string) (*v1alpha1.ApplicationSyncStatus, error) {
	st, found := f.statuses[name]
	if !found {
		return nil, errors.Wrap(reconcilermanager.ErrUnknownApplication, name)
	}
	return &st, nil
}

func (f *fakeApplications) Promote(_ context.Context, name string) (bool, error) {
	if _, found := f.statuses[name]; !found {
		return false, errors.Wrap(reconcilermanager.ErrUnknownApplication, name)
	}
	if f.blocked[name] {
		return false, status.PromotionBlocked(name, "web-dev", "its last sync cycle was Degraded")
	}
	f.promoted = append(f.promoted, name)
	return len(f.promoted) == 1, nil
}

func newFakeApplications() *fakeApplications {
	return &fakeApplications{
		statuses: map[string]v1alpha1.ApplicationSyncStatus{
			"web-dev":  {Application: "web-dev", Phase: v1alpha1.PhaseIdle, Health: v1alpha1.HealthHealthy, SyncedRevision: "abc"},
			"web-prod": {Application: "web-prod", Phase: v1alpha1.PhaseSyncing, Health: v1alpha1.HealthUnknown},
		},
		blocked: map[string]bool{},
	}
}

func serve(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	w := serve(t, NewHandler(newFakeApplications(), nil), http.MethodGet, HealthzPath)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestListApplications(t *testing.T) {
	w := serve(t, NewHandler(newFakeApplications(), nil), http.MethodGet, ApplicationsPath)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache, no-store, must-revalidate", w.Header().Get("Cache-Control"))

	var got ApplicationList
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got.Items, 2)
	assert.Equal(t, "web-dev", got.Items[0].Application)
	assert.Equal(t, v1alpha1.HealthHealthy, got.Items[0].Health)
	assert.Equal(t, v1alpha1.PhaseSyncing, got.Items[1].Phase)
}

func TestGetApplication(t *testing.T) {
	testCases := []struct {
		name     string
		method   string
		path     string
		wantCode int
	}{
		{"known", http.MethodGet, ApplicationsPath + "/web-dev", http.StatusOK},
		{"trailing slash", http.MethodGet, ApplicationsPath + "/web-dev/", http.StatusOK},
		{"unknown", http.MethodGet, ApplicationsPath + "/web-qa", http.StatusNotFound},
		{"wrong method", http.MethodDelete, ApplicationsPath + "/web-dev", http.StatusMethodNotAllowed},
		{"unknown subresource", http.MethodGet, ApplicationsPath + "/web-dev/logs", http.StatusNotFound},
		{"list with POST", http.MethodPost, ApplicationsPath, http.StatusMethodNotAllowed},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := serve(t, NewHandler(newFakeApplications(), nil), tc.method, tc.path)
			assert.Equal(t, tc.wantCode, w.Code, w.Body.String())
		})
	}

	w := serve(t, NewHandler(newFakeApplications(), nil), http.MethodGet, ApplicationsPath+"/web-dev")
	var got v1alpha1.ApplicationSyncStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "abc", got.SyncedRevision)
}

func TestSync(t *testing.T) {
	apps := newFakeApplications()
	h := NewHandler(apps, nil)

	w := serve(t, h, http.MethodPost, ApplicationsPath+"/web-dev/sync")
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var got SyncResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, SyncResponse{Application: "web-dev", Queued: true}, got)
	assert.Equal(t, []string{"web-dev"}, apps.promoted)

	w = serve(t, h, http.MethodGet, ApplicationsPath+"/web-dev/sync")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, http.MethodPost, w.Header().Get("Allow"))

	w = serve(t, h, http.MethodPost, ApplicationsPath+"/web-qa/sync")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSyncPromotionBlocked(t *testing.T) {
	apps := newFakeApplications()
	apps.blocked["web-prod"] = true

	w := serve(t, NewHandler(apps, nil), http.MethodPost, ApplicationsPath+"/web-prod/sync")
	require.Equal(t, http.StatusConflict, w.Code)
	var got ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got.Errors, 1)
	assert.Equal(t, status.PromotionBlockedErrorCode, got.Errors[0].Code)
	assert.Contains(t, got.Error, "Degraded")
	assert.Empty(t, apps.promoted)
}

func TestMetricsAndGoroutines(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// nolint:errcheck
		_, _ = w.Write([]byte("appsync_cycle_duration_seconds_count 1\n"))
	})
	h := NewHandler(newFakeApplications(), metrics)

	w := serve(t, h, http.MethodGet, MetricsPath)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "appsync_cycle_duration_seconds_count")

	w = serve(t, h, http.MethodGet, GoroutinesPath)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "goroutine"))
}
