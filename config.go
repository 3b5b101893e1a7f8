package main

import (
	"os"
	"strconv"
)

const (
	defaultLeaseName           = "ip-address-controller-leader"
	defaultLeaseDurationSec    = 60
	defaultLeaseSkewGraceSec   = 2
	defaultMetricsPort         = 9999
	defaultHealthPort          = 8080
	podAnnotationControllerLeader = "controller-leader"
)

// Config carries the environment-derived settings the teacher's main.go
// otherwise wires up as flags. The original Python prototype (main.py)
// reads these straight from os.Getenv with the same defaults.
type Config struct {
	LeaseName      string
	LeaseNamespace string
	LeaseDuration  int
	SkewGrace      int
	MetricsPort    int
	HealthPort     int
	ControllerVersion string
}

func LoadConfig() Config {
	return Config{
		LeaseName:         getEnvOrDefault("LEASE_NAME", defaultLeaseName),
		LeaseNamespace:    podNamespace(),
		LeaseDuration:     getEnvIntOrDefault("LEASE_DURATION", defaultLeaseDurationSec),
		SkewGrace:         getEnvIntOrDefault("LEASE_SKEW_GRACE_SEC", defaultLeaseSkewGraceSec),
		MetricsPort:       getEnvIntOrDefault("METRICS_PORT", defaultMetricsPort),
		HealthPort:        defaultHealthPort,
		ControllerVersion: getEnvOrDefault("CONTROLLER_VERSION", "dev"),
	}
}

// RenewEvery is RENEW_EVERY ≈ LEASE_DURATION/3, floored at 1 second, per
// main.py's `RENEW_EVERY = max(1, LEASE_DURATION // 3)`.
func (c Config) RenewEvery() int {
	v := c.LeaseDuration / 3
	if v < 1 {
		return 1
	}
	return v
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvIntOrDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// podNamespace returns WATCH_NAMESPACE, else POD_NAMESPACE, else the
// in-cluster serviceaccount namespace file, else "default".
func podNamespace() string {
	if ns := os.Getenv("WATCH_NAMESPACE"); ns != "" {
		return ns
	}
	if ns := os.Getenv("POD_NAMESPACE"); ns != "" {
		return ns
	}
	if b, err := os.ReadFile("/var/run/secrets/kubernetes.io/serviceaccount/namespace"); err == nil {
		if ns := string(b); ns != "" {
			return ns
		}
	}
	return "default"
}
