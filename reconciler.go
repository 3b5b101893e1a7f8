package main

import (
	"context"
	"fmt"
	"time"

	"github.com/darkbrains/ip-address-controller/api/v1alpha1"
	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
)

// ReconcileEngine is component E: the per-IPAllocation convergence
// algorithm composing CloudBinding (A), ClusterView (B), LabelPatcher (C)
// and WorkloadEvictor (D). Grounded step-by-step on
// original_source/src/utils/reconciler.py's reconcile().
type ReconcileEngine struct {
	Log     logr.Logger
	Cloud   CloudBinding
	View    *ClusterView
	Labels  *LabelPatcher
	Evictor *WorkloadEvictor
	Metrics *Metrics
}

func NewReconcileEngine(log logr.Logger, cloud CloudBinding, view *ClusterView, labels *LabelPatcher, evictor *WorkloadEvictor, metrics *Metrics) *ReconcileEngine {
	return &ReconcileEngine{
		Log:     log.WithName("reconciler"),
		Cloud:   cloud,
		View:    view,
		Labels:  labels,
		Evictor: evictor,
		Metrics: metrics,
	}
}

// Reconcile runs the full §4.E algorithm for one IPAllocation and reports
// whether the pass completed without a per-IP failure (used for
// crd_status).
func (e *ReconcileEngine) Reconcile(ctx context.Context, crd *v1alpha1.IPAllocation) bool {
	start := time.Now()
	log := e.Log.WithValues("crd", crd.Name)

	defer func() {
		e.Metrics.ObserveReconcileDuration(crd.Name, time.Since(start).Seconds())
	}()

	pool, err := e.View.ListNodes(ctx, crd.Spec.NodeSelector)
	if err != nil {
		log.Error(err, "listing candidate node pool")
		e.Metrics.IncReconcileTotal(crd.Name, "error")
		return false
	}

	free := make([]string, 0, len(pool))
	byName := make(map[string]*corev1.Node, len(pool))
	for i := range pool {
		n := &pool[i]
		byName[n.Name] = n
		free = append(free, n.Name)
		e.Metrics.SetNodeCordoned(n.Name, !e.View.Schedulable(*n))
	}
	removeFree := func(name string) {
		for i, n := range free {
			if n == name {
				free = append(free[:i], free[i+1:]...)
				return
			}
		}
	}

	ok := true
	attached := 0
	unattached := 0

	for _, ip := range crd.Spec.ReservedIPs {
		assignedNode, success := e.reconcileOneIP(ctx, log, crd, pool, byName, &free, removeFree, ip)
		if !success {
			ok = false
			unattached++
			continue
		}
		if assignedNode == "" {
			unattached++
			continue
		}
		attached++
	}

	e.Metrics.SetReservedCount(crd.Name, len(crd.Spec.ReservedIPs))
	e.Metrics.SetAttachedCount(crd.Name, attached)
	e.Metrics.SetUnattachedCount(crd.Name, unattached)

	if err := e.cleanupSweep(ctx, log, crd); err != nil {
		log.Error(err, "label cleanup sweep failed")
		// Step 5 failure is logged but does not invalidate earlier
		// successful assignments (§4.E failure semantics).
	}

	crd.Status.LastReconcileTime.Time = start
	crd.Status.AttachedCount = attached
	crd.Status.UnattachedCount = unattached
	crd.Status.Healthy = ok

	status := "success"
	if !ok {
		status = "error"
	}
	e.Metrics.IncReconcileTotal(crd.Name, status)
	e.Metrics.SetCRDStatus(crd.Name, ok && unattached == 0)

	return ok
}

// reconcileOneIP implements §4.E step 3 for a single reserved IP. It
// returns the node name the IP ends up assigned to (empty if unassigned)
// and whether the step completed without a hard failure.
func (e *ReconcileEngine) reconcileOneIP(
	ctx context.Context,
	log logr.Logger,
	crd *v1alpha1.IPAllocation,
	pool []corev1.Node,
	byName map[string]*corev1.Node,
	free *[]string,
	removeFree func(string),
	ip string,
) (string, bool) {
	ipLog := log.WithValues("ip", ip)

	holder := e.findHolder(ctx, crd, pool, ip)

	if holder != nil {
		target := e.nodeTarget(crd, *holder)
		nodeLog := ipLog.WithValues("node", holder.Name, "zone", target.Zone)

		e.Metrics.SetIPAttached(crd.Name, ip, holder.Name, true)
		e.Metrics.SetNodeIPReady(holder.Name, hasTrueLabel(*holder, NodeLabelIPReady))

		drained := e.View.IsDrained(ctx, *holder, crd.Spec.WorkloadRef, "app")
		cordoned := !e.View.Schedulable(*holder)

		workloadStillPresent := false
		if cordoned && !drained && crd.Spec.WorkloadRef != nil {
			pods, err := e.View.PodsOnNode(ctx, holder.Name)
			if err == nil {
				for _, pod := range pods {
					if ownedByWorkload(pod, *crd.Spec.WorkloadRef) && isRunningOrPending(pod) {
						workloadStillPresent = true
						break
					}
				}
			}
		}

		if drained || (cordoned && !workloadStillPresent) {
			if err := e.Cloud.Detach(ctx, target, ip); err != nil {
				nodeLog.Error(err, "detaching ip")
				e.Metrics.IncDetachTotal(crd.Name, "error")
				if !Classify(err).Retryable() {
					return "", false
				}
				return "", true
			}
			e.Metrics.IncDetachTotal(crd.Name, "success")
			e.Metrics.SetIPAttached(crd.Name, ip, holder.Name, false)
			e.Metrics.SetNodeIPReady(holder.Name, false)

			if err := e.Labels.SetIPReady(ctx, holder, false); err != nil {
				nodeLog.Error(err, "clearing ip.ready label after detach")
			}
			removeFree(holder.Name)

			// Step 4: optional re-attach to a healthy replacement.
			if replacement := e.findHealthyReplacement(ctx, pool, holder.Name); replacement != nil {
				replTarget := e.nodeTarget(crd, *replacement)
				if err := e.Cloud.Attach(ctx, replTarget, ip); err != nil {
					nodeLog.Error(err, "re-attaching ip to replacement node", "replacement", replacement.Name)
					e.Metrics.IncAttachTotal(crd.Name, "error")
					return "", true
				}
				e.Metrics.IncAttachTotal(crd.Name, "success")
				e.Metrics.SetIPAttached(crd.Name, ip, replacement.Name, true)
				e.Metrics.SetNodeIPReady(replacement.Name, true)
				if err := e.Labels.SetIPReady(ctx, replacement, true); err != nil {
					nodeLog.Error(err, "setting ip.ready on replacement node")
				}
				removeFree(replacement.Name)
				return replacement.Name, true
			}

			nodeLog.Info("detached ip, no healthy replacement node found")
			return "", true
		}

		if !hasTrueLabel(*holder, NodeLabelIPReady) {
			if err := e.Labels.SetIPReady(ctx, holder, true); err != nil {
				nodeLog.Error(err, "setting ip.ready label")
			}
			e.Metrics.SetNodeIPReady(holder.Name, true)
		}
		removeFree(holder.Name)
		return holder.Name, true
	}

	// No holder: pick the first schedulable free node, in listing order.
	for _, name := range *free {
		n := byName[name]
		if n == nil || !e.View.Schedulable(*n) {
			continue
		}

		target := e.nodeTarget(crd, *n)
		if err := e.Cloud.Attach(ctx, target, ip); err != nil {
			ipLog.Error(err, "attaching ip", "node", n.Name)
			e.Metrics.IncAttachTotal(crd.Name, "error")
			if !Classify(err).Retryable() {
				return "", false
			}
			return "", true
		}
		e.Metrics.IncAttachTotal(crd.Name, "success")
		e.Metrics.SetIPAttached(crd.Name, ip, n.Name, true)
		e.Metrics.SetNodeIPReady(n.Name, true)

		if err := e.Labels.SetIPReady(ctx, n, true); err != nil {
			ipLog.Error(err, "setting ip.ready label", "node", n.Name)
		}
		removeFree(n.Name)
		return n.Name, true
	}

	ipLog.Info("no schedulable free node available for reserved ip")
	e.Metrics.SetIPAttached(crd.Name, ip, "none", false)
	return "", true
}

// findHolder scans the pool in order for the first node whose NIC carries
// ip, per §4.E step 3.a. Anomalous multi-node holders are not forcibly
// corrected in this pass (the cleanup sweep strips stale labels instead).
func (e *ReconcileEngine) findHolder(ctx context.Context, crd *v1alpha1.IPAllocation, pool []corev1.Node, ip string) *corev1.Node {
	for i := range pool {
		n := &pool[i]
		target := e.nodeTarget(crd, *n)
		if e.Cloud.HasIP(ctx, target, ip) {
			return n
		}
	}
	return nil
}

// findHealthyReplacement implements §4.E step 4: a ready, schedulable node
// in the pool other than exclude.
func (e *ReconcileEngine) findHealthyReplacement(ctx context.Context, pool []corev1.Node, exclude string) *corev1.Node {
	for i := range pool {
		n := &pool[i]
		if n.Name == exclude {
			continue
		}
		if e.View.Ready(*n) && e.View.Schedulable(*n) {
			return n
		}
	}
	return nil
}

// cleanupSweep implements §4.E step 5 over the entire cluster, not just the
// resource's candidate pool.
func (e *ReconcileEngine) cleanupSweep(ctx context.Context, log logr.Logger, crd *v1alpha1.IPAllocation) error {
	all, err := e.View.ListAllNodes(ctx)
	if err != nil {
		return fmt.Errorf("listing all nodes for cleanup sweep: %w", err)
	}

	reserved := make(map[string]bool, len(crd.Spec.ReservedIPs))
	for _, ip := range crd.Spec.ReservedIPs {
		reserved[ip] = true
	}

	for i := range all {
		node := all[i]
		if !hasTrueLabel(node, NodeLabelIPReady) {
			continue
		}

		target := e.nodeTarget(crd, node)
		hasReserved := e.Cloud.HasAnyOf(ctx, target, crd.Spec.ReservedIPs)
		if hasReserved {
			continue
		}

		if err := e.Labels.SetIPReady(ctx, &node, false); err != nil {
			log.Error(err, "clearing stale ip.ready label", "node", node.Name)
			continue
		}
		e.Metrics.SetNodeIPReady(node.Name, false)

		if crd.Spec.WorkloadRef != nil {
			pods, err := e.View.PodsOnNode(ctx, node.Name)
			if err != nil {
				log.Error(err, "listing pods for stale-label eviction", "node", node.Name)
				continue
			}
			e.Evictor.EvictWorkloadPodsFrom(ctx, node.Name, *crd.Spec.WorkloadRef, pods)
		}
	}

	return nil
}

func (e *ReconcileEngine) nodeTarget(crd *v1alpha1.IPAllocation, node corev1.Node) NodeTarget {
	ref, err := instanceRefFromNode(node)
	if err != nil {
		e.Log.V(1).Info("could not parse providerID, falling back to crd.spec.cloud.zone", "node", node.Name, "error", err.Error())
		ref = instanceRef{Project: crd.Spec.Cloud.Project, Zone: crd.Spec.Cloud.Zone, Instance: node.Name}
	}
	if crd.Spec.Cloud.Project != "" {
		ref.Project = crd.Spec.Cloud.Project
	}
	if crd.Spec.Cloud.Zone != "" {
		ref.Zone = crd.Spec.Cloud.Zone
	}
	return NodeTarget{
		Project:         ref.Project,
		Zone:            ref.Zone,
		Instance:        ref.Instance,
		CredentialsPath: crd.Spec.Cloud.Credentials,
	}
}

func hasTrueLabel(node corev1.Node, key string) bool {
	return node.Labels[key] == "true"
}
