package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "netipallocation"

// Metrics holds every netipallocation_* series from spec.md §4.E plus the
// controller self-info gauges from SPEC_FULL.md's supplemented feature 5
// (mirrored from src/utils/metrics.py's usage in main.py).
type Metrics struct {
	reservedTotal   *prometheus.GaugeVec
	attachedTotal   *prometheus.GaugeVec
	unattachedTotal *prometheus.GaugeVec
	ipAttached      *prometheus.GaugeVec
	nodeIPReady     *prometheus.GaugeVec
	nodeCordoned    *prometheus.GaugeVec
	attachTotal     *prometheus.CounterVec
	detachTotal     *prometheus.CounterVec
	gcpAPIErrors    *prometheus.CounterVec
	reconcileDur    *prometheus.HistogramVec
	crdStatus       *prometheus.GaugeVec
	reconcileTotal  *prometheus.CounterVec

	controllerInfo *prometheus.GaugeVec
	leader         prometheus.Gauge
	healthy        prometheus.Gauge
	ready          prometheus.Gauge

	registry *prometheus.Registry
}

func NewMetrics(controllerVersion string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		registry: reg,
		reservedTotal: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Name: "crd_reserved_ips_total",
			Help: "Number of reserved IPs declared by this IPAllocation.",
		}, []string{"crd"}),
		attachedTotal: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Name: "crd_attached_ips_total",
			Help: "Number of reserved IPs currently attached to a pool node.",
		}, []string{"crd"}),
		unattachedTotal: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Name: "crd_unattached_ips_total",
			Help: "Number of reserved IPs currently unattached.",
		}, []string{"crd"}),
		ipAttached: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Name: "ip_attached",
			Help: "1 if the (crd, ip, node) triple is currently attached.",
		}, []string{"crd", "ip", "node"}),
		nodeIPReady: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Name: "node_ip_ready",
			Help: "1 if the node carries the ip.ready=true label.",
		}, []string{"node"}),
		nodeCordoned: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Name: "node_cordoned",
			Help: "1 if the node is cordoned (unschedulable).",
		}, []string{"node"}),
		attachTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Name: "ip_attach_total",
			Help: "Attach attempts by outcome.",
		}, []string{"crd", "status"}),
		detachTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Name: "ip_detach_total",
			Help: "Detach attempts by outcome.",
		}, []string{"crd", "status"}),
		gcpAPIErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Name: "gcp_api_errors_total",
			Help: "Cloud provider API errors by class.",
		}, []string{"class"}),
		reconcileDur: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace, Name: "reconcile_duration_seconds",
			Help:    "Duration of one IPAllocation reconcile pass.",
			Buckets: prometheus.DefBuckets,
		}, []string{"crd"}),
		crdStatus: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Name: "crd_status",
			Help: "1 iff the last reconcile had zero unattached IPs and zero per-IP failures.",
		}, []string{"crd"}),
		reconcileTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Name: "reconcile_total",
			Help: "Reconcile passes by outcome.",
		}, []string{"crd", "status"}),
		controllerInfo: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Name: "controller_info",
			Help: "Constant 1, labeled with the running controller's version.",
		}, []string{"version"}),
		leader: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Name: "leader",
			Help: "1 if this replica currently holds the lease.",
		}),
		healthy: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Name: "healthy",
			Help: "1 if the process reports healthy.",
		}),
		ready: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Name: "ready",
			Help: "1 if the process reports ready.",
		}),
	}

	m.controllerInfo.WithLabelValues(controllerVersion).Set(1)

	return m
}

func (m *Metrics) SetReservedCount(crd string, n int)   { m.reservedTotal.WithLabelValues(crd).Set(float64(n)) }
func (m *Metrics) SetAttachedCount(crd string, n int)   { m.attachedTotal.WithLabelValues(crd).Set(float64(n)) }
func (m *Metrics) SetUnattachedCount(crd string, n int) { m.unattachedTotal.WithLabelValues(crd).Set(float64(n)) }

func (m *Metrics) SetIPAttached(crd, ip, node string, attached bool) {
	v := 0.0
	if attached {
		v = 1.0
	}
	m.ipAttached.WithLabelValues(crd, ip, node).Set(v)
}

func (m *Metrics) SetNodeIPReady(node string, ready bool) {
	v := 0.0
	if ready {
		v = 1.0
	}
	m.nodeIPReady.WithLabelValues(node).Set(v)
}

func (m *Metrics) SetNodeCordoned(node string, cordoned bool) {
	v := 0.0
	if cordoned {
		v = 1.0
	}
	m.nodeCordoned.WithLabelValues(node).Set(v)
}

func (m *Metrics) IncAttachTotal(crd, status string) { m.attachTotal.WithLabelValues(crd, status).Inc() }
func (m *Metrics) IncDetachTotal(crd, status string) { m.detachTotal.WithLabelValues(crd, status).Inc() }
func (m *Metrics) IncReconcileTotal(crd, status string) {
	m.reconcileTotal.WithLabelValues(crd, status).Inc()
}

func (m *Metrics) ObserveReconcileDuration(crd string, seconds float64) {
	m.reconcileDur.WithLabelValues(crd).Observe(seconds)
}

func (m *Metrics) SetCRDStatus(crd string, ok bool) {
	v := 0.0
	if ok {
		v = 1.0
	}
	m.crdStatus.WithLabelValues(crd).Set(v)
}

func (m *Metrics) IncCloudError(class ErrorClass) {
	if class == "" {
		return
	}
	m.gcpAPIErrors.WithLabelValues(string(class)).Inc()
}

func (m *Metrics) SetLeader(v bool) {
	if v {
		m.leader.Set(1)
	} else {
		m.leader.Set(0)
	}
}

func (m *Metrics) SetHealthy(v bool) {
	if v {
		m.healthy.Set(1)
	} else {
		m.healthy.Set(0)
	}
}

func (m *Metrics) SetReady(v bool) {
	if v {
		m.ready.Set(1)
	} else {
		m.ready.Set(0)
	}
}

// Serve starts the Prometheus text-format endpoint on METRICS_PORT, blocking
// until ctx is cancelled or the server fails.
func (m *Metrics) Serve(ctx context.Context, port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return srv.Close()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
