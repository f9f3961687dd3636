// Package service serves the status of applications over HTTP and accepts
// manual sync requests.
package service

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"kpt.dev/appsync/pkg/api/appsync/v1alpha1"
	"kpt.dev/appsync/pkg/reconcilermanager"
	"kpt.dev/appsync/pkg/status"
)

// Paths served by the handler.
const (
	HealthzPath      = "/healthz"
	MetricsPath      = "/metrics"
	GoroutinesPath   = "/debug/goroutines"
	ApplicationsPath = "/api/v1/applications"
)

// Applications is the view of the running sync loops the handler needs.
type Applications interface {
	List() []v1alpha1.ApplicationSyncStatus
	Status(name string) (*v1alpha1.ApplicationSyncStatus, error)
	Promote(ctx context.Context, name string) (bool, error)
}

var _ Applications = &reconcilermanager.Manager{}

// ApplicationList is the response body of GET /api/v1/applications.
type ApplicationList struct {
	Items []v1alpha1.ApplicationSyncStatus `json:"items"`
}

// SyncResponse is the response body of POST
// /api/v1/applications/{name}/sync.
type SyncResponse struct {
	Application string `json:"application"`
	// Queued is false if the request was merged into a pending one.
	Queued bool `json:"queued"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error  string                  `json:"error"`
	Errors []v1alpha1.AppSyncError `json:"errors,omitempty"`
}

// NewHandler returns the handler of the HTTP surface. metrics, if set, is
// served at /metrics.
func NewHandler(apps Applications, metrics http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(HealthzPath, func(w http.ResponseWriter, _ *http.Request) {
		// nolint:errcheck
		_, _ = w.Write([]byte("ok"))
	})
	if metrics != nil {
		mux.Handle(MetricsPath, metrics)
	}
	mux.HandleFunc(GoroutinesPath, goRoutineHandler)

	h := &handler{apps: apps}
	mux.HandleFunc(ApplicationsPath,
		WithRequestLogging(NoCache(AllowMethods(h.list, http.MethodGet))))
	mux.HandleFunc(ApplicationsPath+"/",
		WithRequestLogging(NoCache(h.application)))
	return mux
}

// Server returns a server for handler listening on listenAddr, e.g.
// "localhost:8080".
func Server(listenAddr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              listenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

type handler struct {
	apps Applications
}

func (h *handler) list(w http.ResponseWriter, _ *http.Request) {
	items := h.apps.List()
	if items == nil {
		items = []v1alpha1.ApplicationSyncStatus{}
	}
	writeJSON(w, http.StatusOK, ApplicationList{Items: items})
}

// application serves /api/v1/applications/{name} and
// /api/v1/applications/{name}/sync.
func (h *handler) application(w http.ResponseWriter, req *http.Request) {
	rest := strings.TrimPrefix(req.URL.Path, ApplicationsPath+"/")
	parts := strings.Split(strings.TrimSuffix(rest, "/"), "/")
	switch {
	case len(parts) == 1 && parts[0] != "":
		AllowMethods(func(w http.ResponseWriter, _ *http.Request) {
			h.get(w, parts[0])
		}, http.MethodGet)(w, req)
	case len(parts) == 2 && parts[0] != "" && parts[1] == "sync":
		AllowMethods(func(w http.ResponseWriter, req *http.Request) {
			h.sync(w, req, parts[0])
		}, http.MethodPost)(w, req)
	default:
		http.NotFound(w, req)
	}
}

func (h *handler) get(w http.ResponseWriter, name string) {
	st, err := h.apps.Status(name)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *handler) sync(w http.ResponseWriter, req *http.Request, name string) {
	queued, err := h.apps.Promote(req.Context(), name)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, SyncResponse{Application: name, Queued: queued})
}

func writeFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, reconcilermanager.ErrUnknownApplication):
		writeError(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case status.HasCode(err, status.PromotionBlockedErrorCode):
		writeError(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Errors: status.ToASE(err)})
	default:
		klog.Errorf("Serving request: %v", err)
		writeError(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
}

func writeError(w http.ResponseWriter, code int, body ErrorResponse) {
	writeJSON(w, code, body)
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		klog.Warningf("Writing response: %v", err)
	}
}
