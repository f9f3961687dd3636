package restconfig

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"k8s.io/client-go/rest"
	"k8s.io/klog/v2"
)

// A source for creating a rest config
type configSource struct {
	name   string                       // The name for the config
	create func() (*rest.Config, error) // The function for creating the config
}

// NewRestConfig returns the config of the first source which works: the
// kubeconfig file at kubeconfig if set, otherwise the pod service account,
// otherwise the kubectl config of the current user.
func NewRestConfig(kubeconfig, contextName string) (*rest.Config, error) {
	kubectl := configSource{
		name: "kubectl",
		create: func() (*rest.Config, error) {
			return NewKubectlConfig(kubeconfig, contextName)
		},
	}
	if kubeconfig != "" || contextName != "" {
		klog.V(1).Infof("Creating new rest config from kubeconfig %q", kubeconfig)
		return kubectl.create()
	}

	configSources := []configSource{
		{name: "podServiceAccount", create: NewLocalClusterConfig},
		kubectl,
	}
	var errorStrs []string
	for _, source := range configSources {
		config, err := source.create()
		if err == nil {
			klog.V(1).Infof("Created rest config from source %s", source.name)
			return config, nil
		}
		klog.V(5).Infof("Failed to create from %s: %s", source.name, err)
		errorStrs = append(errorStrs, fmt.Sprintf("%s: %s", source.name, err))
	}

	return nil, errors.Errorf("Unable to create rest config:\n%s", strings.Join(errorStrs, "\n"))
}
