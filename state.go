package main

import (
	"sync"
	"time"
)

// ControllerState is the shared record written by the lease task and the
// reconcile task and read by the health endpoint. Neither task ever holds
// this mutex across an I/O call.
type ControllerState struct {
	mu sync.Mutex

	healthy      bool
	ready        bool
	leader       bool
	bootstrapped bool

	leaseLoopLastTick time.Time
	lastReconcileOk   bool

	leaseDurationSeconds int
}

func NewControllerState(leaseDurationSeconds int) *ControllerState {
	return &ControllerState{
		healthy:              true,
		leaseDurationSeconds: leaseDurationSeconds,
	}
}

func (s *ControllerState) SetHealthy(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthy = v
}

func (s *ControllerState) SetLeader(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leader = v
	if !v {
		s.ready = false
	}
}

func (s *ControllerState) SetBootstrapped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bootstrapped = true
}

func (s *ControllerState) TickLeaseLoop(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leaseLoopLastTick = now
}

func (s *ControllerState) SetLastReconcileOk(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastReconcileOk = v
	s.ready = v
}

// Snapshot is a point-in-time copy, taken under the mutex, that the health
// handlers read without further locking.
type Snapshot struct {
	Healthy              bool
	Ready                bool
	Leader               bool
	Bootstrapped         bool
	LeaseLoopLastTick    time.Time
	LastReconcileOk      bool
	LeaseDurationSeconds int
}

func (s *ControllerState) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Healthy:              s.healthy,
		Ready:                s.ready,
		Leader:               s.leader,
		Bootstrapped:         s.bootstrapped,
		LeaseLoopLastTick:    s.leaseLoopLastTick,
		LastReconcileOk:      s.lastReconcileOk,
		LeaseDurationSeconds: s.leaseDurationSeconds,
	}
}

// ReadyDeadline mirrors the §6 readiness rule:
// now - leaseLoopLastTick <= 2*max(5, leaseDuration).
func (snap Snapshot) ReadyDeadline() time.Duration {
	grace := snap.LeaseDurationSeconds
	if grace < 5 {
		grace = 5
	}
	return 2 * time.Duration(grace) * time.Second
}

// ComputeReady implements the full §6 /readyz predicate:
// healthy ∧ bootstrapped ∧ (now − leaseLoopLastTick) ≤ 2·max(5, leaseDuration).
func (snap Snapshot) ComputeReady() bool {
	if !snap.Healthy || !snap.Bootstrapped {
		return false
	}
	if snap.LeaseLoopLastTick.IsZero() {
		return false
	}
	return time.Since(snap.LeaseLoopLastTick) <= snap.ReadyDeadline()
}
