package main

import (
	"context"
	"fmt"
	"net/http"
)

// serveHealth implements the exact-status-code /healthz and /readyz contract
// from spec.md §6. controller-runtime's pkg/healthz is not used here: it
// always answers unhealthy with 500, never 503, and doesn't let us control
// the response body text the spec mandates — so this is a small hand-rolled
// net/http server instead, grounded on original_source/health_server.py's
// BaseHTTPRequestHandler. It answers GET /healthz -> 200 "ok"/503
// "unhealthy" and GET /readyz -> 200 "ready"/503 "not ready: <reason>".
type healthServer struct {
	state *ControllerState
}

func newHealthServer(state *ControllerState) *healthServer {
	return &healthServer{state: state}
}

func (h *healthServer) mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealthz)
	mux.HandleFunc("/readyz", h.handleReadyz)
	return mux
}

func (h *healthServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	snap := h.state.Snapshot()
	if snap.Healthy {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	fmt.Fprint(w, "unhealthy")
}

func (h *healthServer) handleReadyz(w http.ResponseWriter, r *http.Request) {
	snap := h.state.Snapshot()

	if !snap.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "not ready: unhealthy")
		return
	}
	if !snap.Bootstrapped {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "not ready: not bootstrapped")
		return
	}

	if !snap.ComputeReady() {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "not ready: lease loop stalled")
		return
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "ready")
}

// Serve blocks serving /healthz and /readyz on port until ctx is cancelled.
func (h *healthServer) Serve(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: h.mux(),
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
