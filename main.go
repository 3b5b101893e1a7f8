/*
Copyright 2020 The node-detacher authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"

	"github.com/darkbrains/ip-address-controller/api/v1alpha1"
	zap2 "go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/klog/v2"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	// +kubebuilder:scaffold:imports
)

var (
	scheme   = runtime.NewScheme()
	setupLog = ctrl.Log.WithName("setup")
)

func init() {
	_ = clientgoscheme.AddToScheme(scheme)
	_ = v1alpha1.AddToScheme(scheme)
	// +kubebuilder:scaffold:scheme
}

func main() {
	// Prevents the same klog-to-tmpfile crash the teacher's main.go worked
	// around when fsGroup forbids writing under /tmp.
	klogFlags := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(klogFlags)
	klogFlags.Set("logtostderr", "true")
	klogFlags.Parse([]string{})

	var logLevel string
	flag.StringVar(&logLevel, "log-level", "info", "Log level. Must be one of debug, info, warn, error")
	flag.Parse()

	ctrl.SetLogger(zap.New(func(o *zap.Options) {
		o.Development = true
		lvl := zap2.NewAtomicLevelAt(stringToZapLogLevel(logLevel))
		o.Level = &lvl
	}))

	cfg := LoadConfig()

	mgr, err := ctrl.NewManager(ctrl.GetConfigOrDie(), ctrl.Options{
		Scheme:             scheme,
		MetricsBindAddress: "0", // the Prometheus endpoint is served separately on METRICS_PORT, not via controller-runtime's own registry.
		LeaderElection:     false,
	})
	if err != nil {
		setupLog.Error(err, "unable to start manager")
		os.Exit(1)
	}

	clientset, err := kubeGetClientset()
	if err != nil {
		setupLog.Error(err, "unable to build kubernetes clientset")
		os.Exit(1)
	}

	ctx := ctrl.SetupSignalHandler()

	if err := mgr.GetFieldIndexer().IndexField(ctx, &corev1.Pod{}, podNodeNameIndexField, indexPodByNodeName); err != nil {
		setupLog.Error(err, "unable to index pods by spec.nodeName")
		os.Exit(1)
	}

	go func() {
		if err := mgr.Start(ctx); err != nil {
			setupLog.Error(err, "manager exited with error")
		}
	}()
	if !mgr.GetCache().WaitForCacheSync(ctx) {
		setupLog.Error(fmt.Errorf("cache sync failed"), "unable to sync manager cache")
		os.Exit(1)
	}

	identity, err := selfIdentity(ctx, clientset, cfg.LeaseNamespace)
	if err != nil {
		setupLog.Error(err, "unable to determine self pod identity, falling back to hostname")
	}
	setupLog.Info("starting", "identity", identity, "namespace", cfg.LeaseNamespace, "version", cfg.ControllerVersion)

	metrics := NewMetrics(cfg.ControllerVersion)
	state := NewControllerState(cfg.LeaseDuration)

	cloud := NewCloudBinding(ctrl.Log.WithName("cloud"), metrics.IncCloudError)
	view := NewClusterView(ctrl.Log, mgr.GetClient())
	labels := NewLabelPatcher(ctrl.Log, mgr.GetClient())
	evictor := NewWorkloadEvictor(ctrl.Log, mgr.GetClient())
	engine := NewReconcileEngine(ctrl.Log, cloud, view, labels, evictor, metrics)
	scheduler := NewScheduler(ctrl.Log, mgr.GetClient(), engine, state)

	lease := NewLeaderLease(
		ctrl.Log,
		clientset.CoordinationV1().Leases(cfg.LeaseNamespace),
		clientset.CoreV1().Pods(cfg.LeaseNamespace),
		cfg,
		identity,
	)

	go lease.RunRenewalLoop(ctx, state, metrics)
	go scheduler.Run(ctx)

	go func() {
		if err := newHealthServer(state).Serve(ctx, cfg.HealthPort); err != nil {
			setupLog.Error(err, "health server exited with error")
		}
	}()
	go func() {
		if err := metrics.Serve(ctx, cfg.MetricsPort); err != nil {
			setupLog.Error(err, "metrics server exited with error")
		}
	}()

	<-ctx.Done()
	setupLog.Info("shutting down")
}

// selfIdentity discovers this replica's own pod name, the way main.py's
// get_own_pod_name_from_k8s does: match this process's own IP address
// against status.podIP across pods in the watched namespace, falling back
// to the OS hostname when no match is found (SUPPLEMENTED FEATURE 1).
func selfIdentity(ctx context.Context, clientset *kubernetes.Clientset, namespace string) (string, error) {
	if h := os.Getenv("POD_NAME"); h != "" {
		return h, nil
	}

	ownIPs, err := localIPs()
	if err != nil {
		return os.Hostname()
	}

	pods, err := clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return os.Hostname()
	}

	for _, pod := range pods.Items {
		if ownIPs[pod.Status.PodIP] {
			return pod.Name, nil
		}
	}

	return os.Hostname()
}

func localIPs() (map[string]bool, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, err
	}
	ips := make(map[string]bool, len(addrs))
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok {
			ips[ipnet.IP.String()] = true
		}
	}
	return ips, nil
}
