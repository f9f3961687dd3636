// Package reconcilermanager runs the sync loops of every configured
// application and gates manual promotions between them.
package reconcilermanager

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
	"k8s.io/utils/clock"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"kpt.dev/appsync/pkg/api/appsync/v1alpha1"
	"kpt.dev/appsync/pkg/parse"
	"kpt.dev/appsync/pkg/reconciler"
	"kpt.dev/appsync/pkg/status"
	"kpt.dev/appsync/pkg/syncstatus"
)

// ErrUnknownApplication is returned for requests naming an application which
// is not configured.
var ErrUnknownApplication = errors.New("unknown application")

// Options are the dependencies shared by every sync loop.
type Options struct {
	// Client talks to the API server. It is the only thing the loops share
	// besides the status store.
	Client client.Client
	// Scoper, if set, is used to reject cluster-scoped kinds.
	Scoper parse.Scoper
	// Persister, if set, saves application statuses across restarts.
	Persister syncstatus.Persister
	// Store receives every application's status. Created if nil.
	Store *syncstatus.Store
	Clock clock.PassiveClock
}

// Manager runs one Reconciler per configured application.
type Manager struct {
	config      *Config
	store       *syncstatus.Store
	reconcilers map[string]*reconciler.Reconciler
}

// NewManager returns a Manager for the applications in cfg.
func NewManager(cfg *Config, opts Options) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Store == nil {
		opts.Store = syncstatus.NewStore()
	}
	m := &Manager{
		config:      cfg,
		store:       opts.Store,
		reconcilers: make(map[string]*reconciler.Reconciler, len(cfg.Applications)),
	}
	for _, app := range cfg.Applications {
		ro := cfg.Options(app)
		ro.Client = opts.Client
		ro.Scoper = opts.Scoper
		ro.Persister = opts.Persister
		ro.Store = opts.Store
		ro.Clock = opts.Clock
		m.reconcilers[app.Name] = reconciler.New(ro)
		klog.V(1).Infof("Configured application %s: %s/%s into namespace %s, auto-sync %t",
			app.Name, app.SourceDir, app.Path, app.Namespace, ro.AutoSync)
	}
	return m, nil
}

// Run runs every sync loop until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	klog.Infof("Starting %s with %d applications", ManagerName, len(m.reconcilers))
	g, ctx := errgroup.WithContext(ctx)
	for _, app := range m.config.Applications {
		r := m.reconcilers[app.Name]
		g.Go(func() error {
			if err := r.Run(ctx); err != nil {
				return errors.Wrapf(err, "application %s", r.Name())
			}
			return nil
		})
	}
	return g.Wait()
}

// Store returns the status store every loop publishes to.
func (m *Manager) Store() *syncstatus.Store {
	return m.store
}

// Status returns the status of application name.
func (m *Manager) Status(name string) (*v1alpha1.ApplicationSyncStatus, error) {
	if _, found := m.reconcilers[name]; !found {
		return nil, errors.Wrap(ErrUnknownApplication, name)
	}
	st, found := m.store.Get(name)
	if !found {
		// Nothing has been published yet.
		return &v1alpha1.ApplicationSyncStatus{
			Application: name,
			Phase:       v1alpha1.PhaseIdle,
			Health:      v1alpha1.HealthUnknown,
		}, nil
	}
	return st, nil
}

// List returns the status of every configured application, sorted by name.
func (m *Manager) List() []v1alpha1.ApplicationSyncStatus {
	return m.store.List()
}

// Promote requests a manual sync cycle of application name, which applies
// its changes even with auto-sync off. If the application is promoted from
// another one, the request is refused with a PromotionBlocked error unless
// that application's last cycle was Healthy at the revision name is at now.
//
// Returns true if the cycle was queued, or false if it was merged into one
// already pending.
func (m *Manager) Promote(ctx context.Context, name string) (bool, error) {
	r, found := m.reconcilers[name]
	if !found {
		return false, errors.Wrap(ErrUnknownApplication, name)
	}
	app, _ := m.config.Application(name)
	if app.PromoteFrom != "" {
		if err := m.checkPromotion(r, app); err != nil {
			klog.Warningf("Refused manual sync: %v", err)
			return false, err
		}
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	klog.Infof("Application %s: manual sync requested", name)
	return r.Trigger(reconciler.TriggerManual), nil
}

func (m *Manager) checkPromotion(r *reconciler.Reconciler, app v1alpha1.Application) error {
	revision, err := r.SourceRevision()
	if err != nil {
		return status.PromotionBlocked(app.Name, app.PromoteFrom, fmt.Sprintf("unable to read source revision: %v", err))
	}
	from, found := m.store.Get(app.PromoteFrom)
	if !found || from.Health == v1alpha1.HealthUnknown {
		return status.PromotionBlocked(app.Name, app.PromoteFrom, "it has not completed a sync cycle")
	}
	if from.Health != v1alpha1.HealthHealthy {
		return status.PromotionBlocked(app.Name, app.PromoteFrom, fmt.Sprintf("its last sync cycle was %s", from.Health))
	}
	if from.SyncedRevision != revision {
		return status.PromotionBlocked(app.Name, app.PromoteFrom,
			fmt.Sprintf("it is synced at revision %q, not %q", from.SyncedRevision, revision))
	}
	return nil
}
