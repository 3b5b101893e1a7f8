package main

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsGaugesReflectSetValues(t *testing.T) {
	m := NewMetrics("v1.2.3")

	m.SetReservedCount("alloc-1", 3)
	m.SetAttachedCount("alloc-1", 2)
	m.SetUnattachedCount("alloc-1", 1)

	if got := testutil.ToFloat64(m.reservedTotal.WithLabelValues("alloc-1")); got != 3 {
		t.Errorf("crd_reserved_ips_total = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.attachedTotal.WithLabelValues("alloc-1")); got != 2 {
		t.Errorf("crd_attached_ips_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.unattachedTotal.WithLabelValues("alloc-1")); got != 1 {
		t.Errorf("crd_unattached_ips_total = %v, want 1", got)
	}
}

func TestMetricsIncCloudErrorIgnoresEmptyClass(t *testing.T) {
	m := NewMetrics("v1")
	m.IncCloudError(ErrorClass(""))
	m.IncCloudError(ClassTransientAPI)
	m.IncCloudError(ClassTransientAPI)

	if got := testutil.ToFloat64(m.gcpAPIErrors.WithLabelValues(string(ClassTransientAPI))); got != 2 {
		t.Errorf("gcp_api_errors_total{class=TRANSIENT_API} = %v, want 2", got)
	}
}

func TestMetricsSelfInfoGauges(t *testing.T) {
	m := NewMetrics("v9.9.9")
	m.SetLeader(true)
	m.SetHealthy(true)
	m.SetReady(false)

	if got := testutil.ToFloat64(m.leader); got != 1 {
		t.Errorf("leader gauge = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.healthy); got != 1 {
		t.Errorf("healthy gauge = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ready); got != 0 {
		t.Errorf("ready gauge = %v, want 0", got)
	}
	if got := testutil.ToFloat64(m.controllerInfo.WithLabelValues("v9.9.9")); got != 1 {
		t.Errorf("controller_info{version=v9.9.9} = %v, want 1", got)
	}
}

func TestMetricsServeExposesPrometheusTextFormat(t *testing.T) {
	m := NewMetrics("v1")
	m.SetAttachedCount("alloc-x", 5)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "netipallocation_crd_attached_ips_total") {
		t.Error("expected the metrics endpoint to expose netipallocation_crd_attached_ips_total")
	}
}
