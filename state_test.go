package main

import (
	"testing"
	"time"
)

func TestControllerStateReadyDeadline(t *testing.T) {
	s := NewControllerState(60)
	snap := s.Snapshot()
	if got, want := snap.ReadyDeadline(), 2*60*time.Second; got != want {
		t.Errorf("ReadyDeadline() = %v, want %v", got, want)
	}

	s2 := NewControllerState(1)
	snap2 := s2.Snapshot()
	if got, want := snap2.ReadyDeadline(), 2*5*time.Second; got != want {
		t.Errorf("ReadyDeadline() with sub-5s duration = %v, want floor of 5s*2", got)
	}
}

func TestControllerStateSetLeaderClearsReady(t *testing.T) {
	s := NewControllerState(60)
	s.SetLastReconcileOk(true)
	if !s.Snapshot().Ready {
		t.Fatal("expected ready after successful reconcile")
	}

	s.SetLeader(false)
	if s.Snapshot().Ready {
		t.Error("demoting to follower must clear ready immediately (§4.F: surfaces as not ready)")
	}
}

func TestControllerStateTickLeaseLoop(t *testing.T) {
	s := NewControllerState(60)
	now := time.Now()
	s.TickLeaseLoop(now)
	if !s.Snapshot().LeaseLoopLastTick.Equal(now) {
		t.Error("TickLeaseLoop did not record the tick time")
	}
}
