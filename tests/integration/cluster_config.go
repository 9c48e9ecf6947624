package integration

import (
	"os"
	"strings"

	"github.com/bizmatters/code-harmonizer/tests/helpers"
)

// ClusterConfig holds configuration for in-cluster testing
type ClusterConfig struct {
	DatabaseURL string
	RedisAddr   string
	IsInCluster bool
	Namespace   string
}

// SetupInClusterEnvironment configures the test environment for in-cluster execution
func SetupInClusterEnvironment() *ClusterConfig {
	config := &ClusterConfig{
		DatabaseURL: helpers.BuildDatabaseURL(),
		IsInCluster: isRunningInCluster(),
		Namespace:   getNamespace(),
	}

	config.RedisAddr = os.Getenv("REDIS_ADDR")
	if config.RedisAddr == "" {
		if config.IsInCluster {
			config.RedisAddr = "harmonizer-redis." + config.Namespace + ".svc:6379"
		} else {
			config.RedisAddr = "localhost:6379"
		}
	}

	return config
}

// isRunningInCluster detects if we're running inside a Kubernetes cluster
func isRunningInCluster() bool {
	// Check for Kubernetes service account token
	if _, err := os.Stat("/var/run/secrets/kubernetes.io/serviceaccount/token"); err == nil {
		return true
	}

	return os.Getenv("KUBERNETES_SERVICE_HOST") != ""
}

// getNamespace returns the current Kubernetes namespace
func getNamespace() string {
	if data, err := os.ReadFile("/var/run/secrets/kubernetes.io/serviceaccount/namespace"); err == nil {
		return strings.TrimSpace(string(data))
	}

	if ns := os.Getenv("NAMESPACE"); ns != "" {
		return ns
	}

	return "code-harmonizer"
}
