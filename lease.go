package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/go-logr/logr"
	coordinationv1 "k8s.io/api/coordination/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	coordinationv1client "k8s.io/client-go/kubernetes/typed/coordination/v1"
	corev1client "k8s.io/client-go/kubernetes/typed/core/v1"
)

// LeaseState is this replica's position in the §4.F state machine.
type LeaseState string

const (
	LeaseFollower     LeaseState = "FOLLOWER"
	LeaseLeader       LeaseState = "LEADER"
	LeaseShuttingDown LeaseState = "SHUTTING_DOWN"
)

// LeaderLease is component F. It intentionally bypasses client-go's own
// k8s.io/client-go/tools/leaderelection package in favor of a hand-rolled
// compare-and-set over the typed coordination/v1 client, the way
// awslabs/operatorpkg's leasehijacker.go manipulates
// Lease.Spec.HolderIdentity/AcquireTime/RenewTime directly — this is the
// only way to implement the exact evaluate() state machine spec.md §4.F
// describes (including its distinct holder-pod-liveness takeover rule,
// which client-go's leaderelection has no equivalent of).
type LeaderLease struct {
	Log          logr.Logger
	Leases       coordinationv1client.LeaseInterface
	Pods         corev1client.PodInterface
	Identity     string
	Namespace    string
	LeaseName    string
	Duration     int
	SkewGrace    int
	RenewEvery   int
	State        LeaseState
}

func NewLeaderLease(log logr.Logger, leases coordinationv1client.LeaseInterface, pods corev1client.PodInterface, cfg Config, identity string) *LeaderLease {
	return &LeaderLease{
		Log:        log.WithName("lease"),
		Leases:     leases,
		Pods:       pods,
		Identity:   identity,
		Namespace:  cfg.LeaseNamespace,
		LeaseName:  cfg.LeaseName,
		Duration:   cfg.LeaseDuration,
		SkewGrace:  cfg.SkewGrace,
		RenewEvery: cfg.RenewEvery(),
		State:      LeaseFollower,
	}
}

// expired implements the §4.F expiry predicate: a renewTime in the future
// (clock skew) is treated as not-expired.
func (l *LeaderLease) expired(renewTime time.Time, now time.Time) bool {
	grace := l.SkewGrace
	if grace < 5 {
		grace = 5
	}
	deadline := renewTime.Add(time.Duration(l.Duration) * time.Second).Add(time.Duration(grace) * time.Second)
	return now.After(deadline)
}

func (l *LeaderLease) podExists(ctx context.Context, name string) bool {
	if name == "" {
		return false
	}
	_, err := l.Pods.Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return !apierrors.IsNotFound(err)
	}
	return true
}

// Evaluate runs one step of the §4.F state machine and returns the
// resulting state.
func (l *LeaderLease) Evaluate(ctx context.Context) (LeaseState, error) {
	now := time.Now()

	lease, err := l.Leases.Get(ctx, l.LeaseName, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		created, err := l.Leases.Create(ctx, l.newLease(now), metav1.CreateOptions{})
		if err != nil {
			if apierrors.IsAlreadyExists(err) || apierrors.IsConflict(err) {
				l.State = LeaseFollower
				return l.State, nil
			}
			return l.State, fmt.Errorf("creating lease: %w", err)
		}
		_ = created
		l.State = LeaseLeader
		return l.State, nil
	}
	if err != nil {
		return l.State, fmt.Errorf("reading lease: %w", err)
	}

	holder := ""
	if lease.Spec.HolderIdentity != nil {
		holder = *lease.Spec.HolderIdentity
	}
	var renewTime time.Time
	if lease.Spec.RenewTime != nil {
		renewTime = lease.Spec.RenewTime.Time
	}
	isExpired := l.expired(renewTime, now)

	if holder == l.Identity && !isExpired {
		lease.Spec.RenewTime = &metav1.MicroTime{Time: now}
		if _, err := l.Leases.Update(ctx, lease, metav1.UpdateOptions{}); err != nil {
			if apierrors.IsConflict(err) {
				l.State = LeaseFollower
				return l.State, nil
			}
			return l.State, fmt.Errorf("renewing lease: %w", err)
		}
		l.State = LeaseLeader
		return l.State, nil
	}

	if holder != l.Identity && !isExpired && l.podExists(ctx, holder) {
		l.State = LeaseFollower
		return l.State, nil
	}

	// Expired, or the recorded holder's pod is demonstrably gone: attempt
	// a CAS takeover.
	transitions := int32(0)
	if lease.Spec.LeaseTransitions != nil {
		transitions = *lease.Spec.LeaseTransitions + 1
	}
	lease.Spec.HolderIdentity = strPtr(l.Identity)
	lease.Spec.AcquireTime = &metav1.MicroTime{Time: now}
	lease.Spec.RenewTime = &metav1.MicroTime{Time: now}
	lease.Spec.LeaseTransitions = &transitions
	lease.Spec.LeaseDurationSeconds = int32Ptr(int32(l.Duration))

	if _, err := l.Leases.Update(ctx, lease, metav1.UpdateOptions{}); err != nil {
		if apierrors.IsConflict(err) {
			l.State = LeaseFollower
			return l.State, nil
		}
		return l.State, fmt.Errorf("taking over lease: %w", err)
	}

	l.State = LeaseLeader
	return l.State, nil
}

func (l *LeaderLease) newLease(now time.Time) *coordinationv1.Lease {
	transitions := int32(0)
	duration := int32(l.Duration)
	return &coordinationv1.Lease{
		ObjectMeta: metav1.ObjectMeta{
			Name:      l.LeaseName,
			Namespace: l.Namespace,
		},
		Spec: coordinationv1.LeaseSpec{
			HolderIdentity:       strPtr(l.Identity),
			AcquireTime:          &metav1.MicroTime{Time: now},
			RenewTime:            &metav1.MicroTime{Time: now},
			LeaseDurationSeconds: &duration,
			LeaseTransitions:     &transitions,
		},
	}
}

// jitteredRenewEvery returns the jittered renewal interval: RENEW_EVERY *
// uniform(0.8, 1.2), per main.py's lease_renewal_loop. RENEW_EVERY itself
// comes from Config.RenewEvery, not a duplicate of that computation.
func (l *LeaderLease) jitteredRenewEvery() time.Duration {
	base := l.RenewEvery
	if base < 1 {
		base = 1
	}
	jitter := 0.8 + rand.Float64()*0.4
	return time.Duration(float64(base)*jitter*1000) * time.Millisecond
}

// RunRenewalLoop drives Evaluate on a jittered interval until ctx is
// cancelled, updating state and ticking leaseLoopLastTick on every pass.
// On cancellation it performs the §4.F graceful-shutdown steps: demote to
// SHUTTING_DOWN, clear the self pod's controller-leader annotation if it
// was held, mark not ready, and leave the lease itself to expire.
func (l *LeaderLease) RunRenewalLoop(ctx context.Context, state *ControllerState, metrics *Metrics) {
	for {
		select {
		case <-ctx.Done():
			l.shutdown(context.Background(), state)
			return
		case <-time.After(l.jitteredRenewEvery()):
		}

		wasLeader := l.State == LeaseLeader

		newState, err := l.Evaluate(ctx)
		if err != nil {
			l.Log.Error(err, "lease evaluation failed")
			state.SetLeader(false)
			metrics.SetLeader(false)
			state.TickLeaseLoop(time.Now())
			metrics.SetHealthy(state.Snapshot().Healthy)
			metrics.SetReady(state.Snapshot().ComputeReady())
			continue
		}

		becameLeader := newState == LeaseLeader
		state.SetLeader(becameLeader)
		metrics.SetLeader(becameLeader)
		state.SetBootstrapped()
		state.TickLeaseLoop(time.Now())
		metrics.SetHealthy(state.Snapshot().Healthy)
		metrics.SetReady(state.Snapshot().ComputeReady())

		if err := l.annotateSelf(ctx, becameLeader); err != nil {
			l.Log.Error(err, "annotating self pod with leader status")
		}

		if becameLeader && !wasLeader {
			l.Log.Info("acquired lease", "identity", l.Identity)
		} else if !becameLeader && wasLeader {
			l.Log.Info("lost lease, demoting to follower", "identity", l.Identity)
		}
	}
}

func (l *LeaderLease) shutdown(ctx context.Context, state *ControllerState) {
	l.Log.Info("shutting down", "identity", l.Identity, "was_leader", l.State == LeaseLeader)
	wasLeader := l.State == LeaseLeader
	l.State = LeaseShuttingDown
	state.SetLeader(false)

	if wasLeader {
		if err := l.annotateSelf(ctx, false); err != nil {
			l.Log.Error(err, "clearing leader annotation during shutdown")
		}
	}
}

// annotateSelf patches the pod-level controller-leader annotation on this
// replica's own pod, per spec §6 and main.py's _annotate_leader.
func (l *LeaderLease) annotateSelf(ctx context.Context, isLeader bool) error {
	if l.Identity == "" {
		return nil
	}

	// A JSON-merge-patch null removes the annotation when not leader.
	value := "null"
	if isLeader {
		value = `"true"`
	}

	patch := fmt.Sprintf(`{"metadata":{"annotations":{%q:%s}}}`, podAnnotationControllerLeader, value)
	_, err := l.Pods.Patch(ctx, l.Identity, types.MergePatchType, []byte(patch), metav1.PatchOptions{})
	return err
}

func strPtr(s string) *string { return &s }
func int32Ptr(i int32) *int32 { return &i }
