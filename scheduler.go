package main

import (
	"context"
	"time"

	"github.com/darkbrains/ip-address-controller/api/v1alpha1"
	"github.com/go-logr/logr"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

const sweepInterval = 5 * time.Second

// Scheduler is component G: the single cooperative loop that, while this
// replica is leader, drives the reconcile engine across every IPAllocation
// at its own declared interval. Grounded on main.py's controller_loop and
// reconciler.py's reconcile_all.
type Scheduler struct {
	Log    logr.Logger
	Client client.Client
	Engine *ReconcileEngine
	State  *ControllerState

	lastReconcile map[string]time.Time
}

func NewScheduler(log logr.Logger, c client.Client, engine *ReconcileEngine, state *ControllerState) *Scheduler {
	return &Scheduler{
		Log:           log.WithName("scheduler"),
		Client:        c,
		Engine:        engine,
		State:         state,
		lastReconcile: map[string]time.Time{},
	}
}

// Run blocks, sweeping every sweepInterval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	if !s.State.Snapshot().Leader {
		// Non-leader sweep: sleep only, no mutating work (§4.G).
		return
	}

	var list v1alpha1.IPAllocationList
	if err := s.Client.List(ctx, &list); err != nil {
		s.Log.Error(err, "listing IPAllocations")
		s.State.SetLastReconcileOk(false)
		return
	}

	now := time.Now()
	overallOk := true

	for i := range list.Items {
		crd := &list.Items[i]

		if err := applyDefaults(&crd.Spec); err != nil {
			s.Log.Error(err, "applying IPAllocation spec defaults", "crd", crd.Name)
		}

		interval := crd.Spec.ReconcileIntervalOrDefault()
		last, seen := s.lastReconcile[crd.Name]
		if seen && now.Sub(last) < time.Duration(interval)*time.Second {
			continue
		}

		ok := s.Engine.Reconcile(ctx, crd)
		s.lastReconcile[crd.Name] = time.Now()
		if !ok {
			overallOk = false
		}

		if err := s.Client.Status().Update(ctx, crd); err != nil {
			s.Log.Error(err, "updating IPAllocation status", "crd", crd.Name)
		}
	}

	s.State.SetLastReconcileOk(overallOk)
}
