package reconcilermanager

import (
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/validation"
	"sigs.k8s.io/yaml"

	"kpt.dev/appsync/pkg/api/appsync/v1alpha1"
	"kpt.dev/appsync/pkg/applier"
	"kpt.dev/appsync/pkg/reconciler"
)

// Config lists the applications the controller syncs.
type Config struct {
	// Defaults apply to every application which leaves a field unset.
	Defaults v1alpha1.SyncPolicy `json:"defaults,omitempty"`

	Applications []v1alpha1.Application `json:"applications"`
}

// LoadConfig reads and validates the configuration file at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config file %q", path)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid config file %q", path)
	}
	return cfg, nil
}

// ParseConfig decodes a YAML or JSON configuration and validates it. Unknown
// fields are rejected.
func ParseConfig(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate returns every problem with the configuration at once, or nil.
func (c *Config) Validate() error {
	var err error
	if len(c.Applications) == 0 {
		err = multierr.Append(err, errors.New("no applications configured"))
	}
	err = multierr.Append(err, validatePolicy("defaults", c.Defaults))

	byName := make(map[string]v1alpha1.Application, len(c.Applications))
	for i, app := range c.Applications {
		field := fmt.Sprintf("applications[%d]", i)
		for _, msg := range validation.IsDNS1123Label(app.Name) {
			err = multierr.Append(err, errors.Errorf("%s.name %q: %s", field, app.Name, msg))
		}
		if _, found := byName[app.Name]; found {
			err = multierr.Append(err, errors.Errorf("%s.name: duplicate application %q", field, app.Name))
		}
		byName[app.Name] = app

		if app.SourceDir == "" {
			err = multierr.Append(err, errors.Errorf("%s.sourceDir is required", field))
		}
		if app.Path != "" && (path.IsAbs(app.Path) || strings.HasPrefix(path.Clean(app.Path), "..")) {
			err = multierr.Append(err, errors.Errorf("%s.path %q must be relative to sourceDir", field, app.Path))
		}
		for _, msg := range validation.IsDNS1123Label(app.Namespace) {
			err = multierr.Append(err, errors.Errorf("%s.namespace %q: %s", field, app.Namespace, msg))
		}
		err = multierr.Append(err, validatePolicy(field, app.SyncPolicy))
	}

	for i, app := range c.Applications {
		if app.PromoteFrom == "" {
			continue
		}
		field := fmt.Sprintf("applications[%d].promoteFrom", i)
		if app.PromoteFrom == app.Name {
			err = multierr.Append(err, errors.Errorf("%s: %q cannot be promoted from itself", field, app.Name))
			continue
		}
		if _, found := byName[app.PromoteFrom]; !found {
			err = multierr.Append(err, errors.Errorf("%s: unknown application %q", field, app.PromoteFrom))
			continue
		}
		if promotionCycle(byName, app.Name) {
			err = multierr.Append(err, errors.Errorf("%s: promotion chain of %q is a cycle", field, app.Name))
		}
	}
	return err
}

func promotionCycle(byName map[string]v1alpha1.Application, name string) bool {
	seen := map[string]bool{name: true}
	for next := byName[name].PromoteFrom; next != ""; next = byName[next].PromoteFrom {
		if seen[next] {
			return true
		}
		seen[next] = true
	}
	return false
}

func validatePolicy(field string, p v1alpha1.SyncPolicy) error {
	var err error
	durations := []struct {
		name  string
		value *metav1.Duration
	}{
		{"pollInterval", p.PollInterval},
		{"resyncInterval", p.ResyncInterval},
		{"driftCheckInterval", p.DriftCheckInterval},
		{"cycleTimeout", p.CycleTimeout},
		{"callTimeout", p.CallTimeout},
		{"convergenceTimeout", p.ConvergenceTimeout},
	}
	for _, d := range durations {
		if d.value != nil && d.value.Duration <= 0 {
			err = multierr.Append(err, errors.Errorf("%s.%s must be positive, got %v", field, d.name, d.value.Duration))
		}
	}
	if p.RetryBaseDelay != nil && p.RetryBaseDelay.Duration < 0 {
		err = multierr.Append(err, errors.Errorf("%s.retryBaseDelay must not be negative, got %v", field, p.RetryBaseDelay.Duration))
	}
	ints := []struct {
		name  string
		value *int
	}{
		{"retryLimit", p.RetryLimit},
		{"readConcurrency", p.ReadConcurrency},
		{"historyLimit", p.HistoryLimit},
	}
	for _, n := range ints {
		if n.value != nil && *n.value < 1 {
			err = multierr.Append(err, errors.Errorf("%s.%s must be at least 1, got %d", field, n.name, *n.value))
		}
	}
	return err
}

// Application returns the application named name, if configured.
func (c *Config) Application(name string) (v1alpha1.Application, bool) {
	for _, app := range c.Applications {
		if app.Name == name {
			return app, true
		}
	}
	return v1alpha1.Application{}, false
}

// Policy returns the sync policy of app with unset fields taken from the
// defaults.
func (c *Config) Policy(app v1alpha1.Application) v1alpha1.SyncPolicy {
	p := c.Defaults
	o := app.SyncPolicy
	if o.PollInterval != nil {
		p.PollInterval = o.PollInterval
	}
	if o.ResyncInterval != nil {
		p.ResyncInterval = o.ResyncInterval
	}
	if o.DriftCheckInterval != nil {
		p.DriftCheckInterval = o.DriftCheckInterval
	}
	if o.CycleTimeout != nil {
		p.CycleTimeout = o.CycleTimeout
	}
	if o.CallTimeout != nil {
		p.CallTimeout = o.CallTimeout
	}
	if o.ConvergenceTimeout != nil {
		p.ConvergenceTimeout = o.ConvergenceTimeout
	}
	if o.RetryLimit != nil {
		p.RetryLimit = o.RetryLimit
	}
	if o.RetryBaseDelay != nil {
		p.RetryBaseDelay = o.RetryBaseDelay
	}
	if o.AutoSync != nil {
		p.AutoSync = o.AutoSync
	}
	if o.ReadConcurrency != nil {
		p.ReadConcurrency = o.ReadConcurrency
	}
	if o.HistoryLimit != nil {
		p.HistoryLimit = o.HistoryLimit
	}
	return p
}

// Options returns the sync loop settings of app. Most settings neither app
// nor the defaults name are left zero for the reconciler to fill in. Zero
// is meaningful for the convergence timeout and the retry delay, so those
// get their defaults here. AutoSync is off unless enabled.
func (c *Config) Options(app v1alpha1.Application) reconciler.Options {
	p := c.Policy(app)
	return reconciler.Options{
		Application:        app.Name,
		Namespace:          app.Namespace,
		SourceDir:          app.SourceDir,
		Path:               app.Path,
		AutoSync:           p.AutoSync != nil && *p.AutoSync,
		PollInterval:       duration(p.PollInterval),
		ResyncInterval:     duration(p.ResyncInterval),
		DriftCheckInterval: duration(p.DriftCheckInterval),
		CycleTimeout:       duration(p.CycleTimeout),
		CallTimeout:        duration(p.CallTimeout),
		ConvergenceTimeout: durationOr(p.ConvergenceTimeout, applier.DefaultConvergenceTimeout),
		RetryLimit:         intValue(p.RetryLimit),
		RetryBaseDelay:     durationOr(p.RetryBaseDelay, applier.DefaultRetryBaseDelay),
		ReadConcurrency:    intValue(p.ReadConcurrency),
		HistoryLimit:       intValue(p.HistoryLimit),
	}
}

func duration(d *metav1.Duration) time.Duration {
	if d == nil {
		return 0
	}
	return d.Duration
}

func durationOr(d *metav1.Duration, def time.Duration) time.Duration {
	if d == nil {
		return def
	}
	return d.Duration
}

func intValue(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}
