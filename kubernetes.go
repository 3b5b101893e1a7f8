package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// kubeGetClientset mirrors the teacher's in-cluster/out-of-cluster fallback,
// used for the typed coordination/v1 lease client, the lease's pod client
// and selfIdentity's pod lookup in main.go (none of which goes through the
// controller-runtime manager's cached client).
func kubeGetClientset() (*kubernetes.Clientset, error) {
	config, err := rest.InClusterConfig()
	if err != nil {
		if err == rest.ErrNotInCluster {
			config, err = getKubeOutOfCluster()
			if err != nil {
				return nil, err
			}
		} else {
			return nil, fmt.Errorf("getting kubernetes config from within cluster: %w", err)
		}
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, err
	}

	return clientset, nil
}

func getKubeOutOfCluster() (*rest.Config, error) {
	kubeconfig := os.Getenv("KUBECONFIG")
	if kubeconfig == "" {
		if home := homeDir(); home != "" {
			kubeconfig = filepath.Join(home, ".kube", "config")
		} else {
			return nil, fmt.Errorf("no KUBECONFIG provided and no home directory available")
		}
	}

	config, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("building config from %s: %w", kubeconfig, err)
	}
	return config, nil
}

func homeDir() string {
	if h := os.Getenv("HOME"); h != "" {
		return h
	}
	return os.Getenv("USERPROFILE") // windows
}

// instanceRef is the (project, zone, instance) triple the cloud driver
// needs, derived from a node's spec.providerID, which GKE populates as
// gce://<project>/<zone>/<instance>.
type instanceRef struct {
	Project  string
	Zone     string
	Instance string
}

// instanceRefFromNode parses the node's providerID. Nodes that are not
// backed by GCE (no gce:// providerID) return an error; the reconcile
// engine then falls back to crd.spec.cloud's project and zone with the node
// name as the instance name.
func instanceRefFromNode(node corev1.Node) (instanceRef, error) {
	const prefix = "gce://"

	providerID := node.Spec.ProviderID
	if !strings.HasPrefix(providerID, prefix) {
		return instanceRef{}, fmt.Errorf("node %s has no gce:// providerID (got %q)", node.Name, providerID)
	}

	parts := strings.Split(strings.TrimPrefix(providerID, prefix), "/")
	if len(parts) != 3 {
		return instanceRef{}, fmt.Errorf("node %s providerID %q does not match gce://project/zone/instance", node.Name, providerID)
	}

	return instanceRef{Project: parts[0], Zone: parts[1], Instance: parts[2]}, nil
}
