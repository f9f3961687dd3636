package syncstatus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/klog/v2"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"kpt.dev/appsync/pkg/api/appsync/v1alpha1"
	"kpt.dev/appsync/pkg/kinds"
	"kpt.dev/appsync/pkg/metadata"
	"kpt.dev/appsync/pkg/metrics"
)

// Persister saves application statuses outside the process, so that
// inventory, history and retry bookkeeping survive a restart.
type Persister interface {
	// Load returns the saved status of app, or nil if there is none.
	Load(ctx context.Context, app, namespace string) (*v1alpha1.ApplicationSyncStatus, error)
	// Save writes st.
	Save(ctx context.Context, namespace string, st *v1alpha1.ApplicationSyncStatus) error
}

const (
	// configMapPrefix precedes the application name in the name of the
	// ConfigMap holding its status.
	configMapPrefix = "appsync-status-"
	// statusKey is the ConfigMap data key holding the JSON status.
	statusKey = "status.json"
)

// ConfigMapName returns the name of the ConfigMap holding the status of app.
func ConfigMapName(app string) string {
	return configMapPrefix + app
}

// ConfigMapPersister saves each status as JSON in a ConfigMap in the
// application's target namespace. The ConfigMaps carry StatusLabel but never
// the ownership marker, so no application ever prunes them.
type ConfigMapPersister struct {
	Client client.Client
	// CallTimeout bounds each request. Zero means no bound beyond ctx.
	CallTimeout time.Duration
}

var _ Persister = &ConfigMapPersister{}

// Load implements Persister.
func (p *ConfigMapPersister) Load(ctx context.Context, app, namespace string) (*v1alpha1.ApplicationSyncStatus, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	cm := &corev1.ConfigMap{}
	key := client.ObjectKey{Namespace: namespace, Name: ConfigMapName(app)}
	start := time.Now()
	err := p.Client.Get(ctx, key, cm)
	metrics.RecordAPICallDuration(ctx, app, "get", metrics.StatusTagKey(err), kinds.ConfigMap(), start)
	switch {
	case apierrors.IsNotFound(err):
		return nil, nil
	case err != nil:
		return nil, errors.Wrapf(err, "reading status of %q", app)
	}

	data, found := cm.Data[statusKey]
	if !found {
		klog.Warningf("ConfigMap %s has no %s, ignoring it", key, statusKey)
		return nil, nil
	}
	st := &v1alpha1.ApplicationSyncStatus{}
	if err := json.Unmarshal([]byte(data), st); err != nil {
		return nil, errors.Wrapf(err, "decoding status of %q from ConfigMap %s", app, key)
	}
	if st.Application != app {
		return nil, errors.Errorf("ConfigMap %s holds the status of %q, not %q", key, st.Application, app)
	}
	return st, nil
}

// Save implements Persister.
func (p *ConfigMapPersister) Save(ctx context.Context, namespace string, st *v1alpha1.ApplicationSyncStatus) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	data, err := json.Marshal(st)
	if err != nil {
		return errors.Wrapf(err, "encoding status of %q", st.Application)
	}

	cm := &corev1.ConfigMap{}
	key := client.ObjectKey{Namespace: namespace, Name: ConfigMapName(st.Application)}
	start := time.Now()
	err = p.Client.Get(ctx, key, cm)
	metrics.RecordAPICallDuration(ctx, st.Application, "get", metrics.StatusTagKey(err), kinds.ConfigMap(), start)
	switch {
	case apierrors.IsNotFound(err):
		cm = &corev1.ConfigMap{
			ObjectMeta: metav1.ObjectMeta{
				Name:      key.Name,
				Namespace: key.Namespace,
				Labels: map[string]string{
					metadata.StatusLabel:  st.Application,
					metadata.ManagedByKey: metadata.ManagedByValue,
				},
			},
			Data: map[string]string{statusKey: string(data)},
		}
		start = time.Now()
		err = p.Client.Create(ctx, cm)
		metrics.RecordAPICallDuration(ctx, st.Application, "create", metrics.StatusTagKey(err), kinds.ConfigMap(), start)
	case err != nil:
		return errors.Wrapf(err, "reading status ConfigMap %s", key)
	default:
		if cm.Data[statusKey] == string(data) {
			return nil
		}
		if cm.Data == nil {
			cm.Data = map[string]string{}
		}
		cm.Data[statusKey] = string(data)
		start = time.Now()
		err = p.Client.Update(ctx, cm)
		metrics.RecordAPICallDuration(ctx, st.Application, "update", metrics.StatusTagKey(err), kinds.ConfigMap(), start)
	}
	return errors.Wrapf(err, "writing status ConfigMap %s", key)
}

func (p *ConfigMapPersister) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.CallTimeout)
}
