package restconfig

import (
	"os"
	"os/user"
	"path/filepath"

	"github.com/pkg/errors"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

const kubectlConfigPath = ".kube/config"

var (
	// The function to use to get default current user.  Can be changed for tests
	// using SetCurrentUserForTest.
	userCurrentTestHook = defaultGetCurrentUser
	currentUser         = &user.User{}
	currentError        error
)

func defaultGetCurrentUser() (*user.User, error) {
	return user.Current()
}

func customGetCurrentUser() (*user.User, error) {
	return currentUser, currentError
}

// SetCurrentUserForTest sets the current user that will be returned, and/or
// the error to be reported.  This makes the tests independent of CGO for
// user.Current() that depend on CGO. Set the user to nil to revert to the
// default way of getting the current user.
func SetCurrentUserForTest(u *user.User, err error) {
	if u == nil {
		userCurrentTestHook = defaultGetCurrentUser
		return
	}
	userCurrentTestHook = customGetCurrentUser
	currentUser = u
	currentError = err
}

// newConfigPath returns the kubeconfig file path to use when none is passed:
// $KUBECONFIG, or the kubectl config of the current user.
func newConfigPath() (string, error) {
	envPath := os.Getenv(clientcmd.RecommendedConfigPathEnvVar)
	if envPath != "" {
		return envPath, nil
	}
	u, err := userCurrentTestHook()
	if err != nil {
		return "", errors.Wrapf(err, "failed to get current user")
	}
	return filepath.Join(u.HomeDir, kubectlConfigPath), nil
}

// NewKubectlConfig creates a config from the kubeconfig file at path, using
// contextName if set and the current context otherwise. An empty path means
// the default location.
func NewKubectlConfig(path, contextName string) (*rest.Config, error) {
	if path == "" {
		var err error
		path, err = newConfigPath()
		if err != nil {
			return nil, errors.Wrapf(err, "while getting config path")
		}
	}
	clientConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
		&clientcmd.ClientConfigLoadingRules{ExplicitPath: path},
		&clientcmd.ConfigOverrides{CurrentContext: contextName})
	config, err := clientConfig.ClientConfig()
	if err != nil {
		return nil, errors.Wrapf(err, "while loading from %v", path)
	}
	return config, nil
}

// NewLocalClusterConfig creates a config for connecting to the API server of
// the cluster the binary runs in.
func NewLocalClusterConfig() (*rest.Config, error) {
	return rest.InClusterConfig()
}
