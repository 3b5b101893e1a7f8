package main

import (
	"context"
	"sync"
	"testing"

	"github.com/darkbrains/ip-address-controller/api/v1alpha1"
	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
)

// fakeCloud is a test double for CloudBinding keyed by instance name, the
// way fake_gcp.py stubs the compute API in the Python prototype's own test
// suite. It counts Attach and Detach calls under its mutex so tests can
// assert on attach/detach volume without depending on ordering.
type fakeCloud struct {
	mu      sync.Mutex
	held    map[string]map[string]bool // instance -> set of ips it holds
	attachN int
	detachN int
	attachErr error
}

func newFakeCloud() *fakeCloud {
	return &fakeCloud{held: make(map[string]map[string]bool)}
}

func (f *fakeCloud) give(instance, ip string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[instance] == nil {
		f.held[instance] = make(map[string]bool)
	}
	f.held[instance][ip] = true
}

func (f *fakeCloud) HasIP(ctx context.Context, target NodeTarget, ip string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.held[target.Instance][ip]
}

func (f *fakeCloud) HasAnyOf(ctx context.Context, target NodeTarget, ips []string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ip := range ips {
		if f.held[target.Instance][ip] {
			return true
		}
	}
	return false
}

func (f *fakeCloud) Attach(ctx context.Context, target NodeTarget, ip string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attachN++
	if f.attachErr != nil {
		return f.attachErr
	}
	if f.held[target.Instance] == nil {
		f.held[target.Instance] = make(map[string]bool)
	}
	f.held[target.Instance][ip] = true
	return nil
}

func (f *fakeCloud) Detach(ctx context.Context, target NodeTarget, ip string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detachN++
	delete(f.held[target.Instance], ip)
	return nil
}

func newReadySchedulableNode(name string) corev1.Node {
	return corev1.Node{
		ObjectMeta: metav1.ObjectMeta{Name: name},
		Status: corev1.NodeStatus{Conditions: []corev1.NodeCondition{
			{Type: corev1.NodeReady, Status: corev1.ConditionTrue},
		}},
	}
}

func baseCRD(name string, ips ...string) *v1alpha1.IPAllocation {
	return &v1alpha1.IPAllocation{
		ObjectMeta: metav1.ObjectMeta{Name: name},
		Spec: v1alpha1.IPAllocationSpec{
			ReservedIPs: ips,
			Cloud:       v1alpha1.CloudSpec{Project: "proj", Zone: "us-central1-a"},
		},
	}
}

// TestReconcileFreshAttach exercises S1: an unheld reserved IP is attached
// to the first schedulable node in the pool.
func TestReconcileFreshAttach(t *testing.T) {
	nodeA := newReadySchedulableNode("A")
	c := newIndexedFakeClientBuilder().WithObjects(&nodeA).Build()
	view := NewClusterView(logr.Discard(), c)
	labels := NewLabelPatcher(logr.Discard(), c)
	evictor := NewWorkloadEvictor(logr.Discard(), c)
	metrics := NewMetrics("s1")
	cloud := newFakeCloud()
	engine := NewReconcileEngine(logr.Discard(), cloud, view, labels, evictor, metrics)

	crd := baseCRD("alloc-1", "10.0.0.1")
	ok := engine.Reconcile(context.Background(), crd)
	if !ok {
		t.Fatal("expected reconcile to succeed")
	}
	if cloud.attachN != 1 {
		t.Errorf("expected exactly one Attach call, got %d", cloud.attachN)
	}
	if !cloud.held["A"]["10.0.0.1"] {
		t.Error("expected node A to hold the reserved ip after reconcile")
	}
	if crd.Status.AttachedCount != 1 {
		t.Errorf("status.attachedCount = %d, want 1", crd.Status.AttachedCount)
	}

	var got corev1.Node
	if err := c.Get(context.Background(), types.NamespacedName{Name: "A"}, &got); err != nil {
		t.Fatalf("get node: %v", err)
	}
	if got.Labels[NodeLabelIPReady] != "true" {
		t.Error("expected ip.ready=true label on the node that received the ip")
	}
}

// TestReconcileAlreadyCorrectIsNoop exercises S2: a node already holding the
// ip and already labeled is left untouched; no further Attach call is made.
func TestReconcileAlreadyCorrectIsNoop(t *testing.T) {
	nodeA := newReadySchedulableNode("A")
	nodeA.Labels = map[string]string{NodeLabelIPReady: "true"}
	c := newIndexedFakeClientBuilder().WithObjects(&nodeA).Build()
	view := NewClusterView(logr.Discard(), c)
	labels := NewLabelPatcher(logr.Discard(), c)
	evictor := NewWorkloadEvictor(logr.Discard(), c)
	metrics := NewMetrics("s2")
	cloud := newFakeCloud()
	cloud.give("A", "10.0.0.1")
	engine := NewReconcileEngine(logr.Discard(), cloud, view, labels, evictor, metrics)

	crd := baseCRD("alloc-2", "10.0.0.1")
	ok := engine.Reconcile(context.Background(), crd)
	if !ok {
		t.Fatal("expected reconcile to succeed")
	}
	if cloud.attachN != 0 || cloud.detachN != 0 {
		t.Errorf("expected no attach/detach calls for an already-correct assignment, got attach=%d detach=%d", cloud.attachN, cloud.detachN)
	}
}

// TestReconcileCordonedDrainedReattaches exercises S3: a cordoned, drained
// holder is detached and the ip is reattached to a healthy replacement.
func TestReconcileCordonedDrainedReattaches(t *testing.T) {
	cordonedNode := corev1.Node{
		ObjectMeta: metav1.ObjectMeta{Name: "A", Labels: map[string]string{NodeLabelIPReady: "true"}},
		Spec:       corev1.NodeSpec{Unschedulable: true},
		Status: corev1.NodeStatus{Conditions: []corev1.NodeCondition{
			{Type: corev1.NodeReady, Status: corev1.ConditionTrue},
		}},
	}
	replacement := newReadySchedulableNode("B")

	c := newIndexedFakeClientBuilder().WithObjects(&cordonedNode, &replacement).Build()
	view := NewClusterView(logr.Discard(), c)
	labels := NewLabelPatcher(logr.Discard(), c)
	evictor := NewWorkloadEvictor(logr.Discard(), c)
	metrics := NewMetrics("s3")
	cloud := newFakeCloud()
	cloud.give("A", "10.0.0.1")
	engine := NewReconcileEngine(logr.Discard(), cloud, view, labels, evictor, metrics)

	crd := baseCRD("alloc-3", "10.0.0.1")
	ok := engine.Reconcile(context.Background(), crd)
	if !ok {
		t.Fatal("expected reconcile to succeed")
	}
	if cloud.detachN != 1 {
		t.Errorf("expected exactly one Detach call from the drained holder, got %d", cloud.detachN)
	}
	if cloud.attachN != 1 {
		t.Errorf("expected exactly one Attach call to the replacement node, got %d", cloud.attachN)
	}
	if cloud.held["A"]["10.0.0.1"] {
		t.Error("node A should no longer hold the ip")
	}
	if !cloud.held["B"]["10.0.0.1"] {
		t.Error("node B (the replacement) should now hold the ip")
	}

	var gotA corev1.Node
	if err := c.Get(context.Background(), types.NamespacedName{Name: "A"}, &gotA); err != nil {
		t.Fatalf("get node A: %v", err)
	}
	if _, ok := gotA.Labels[NodeLabelIPReady]; ok {
		t.Errorf("expected ip.ready cleared on the detached node, still present: %v", gotA.Labels)
	}
}

// TestReconcileCordonedButWorkloadPresentDoesNotDetach exercises S4: a
// cordoned holder that is not yet drained (a workload pod is still
// Running) keeps its assignment.
func TestReconcileCordonedButWorkloadPresentDoesNotDetach(t *testing.T) {
	cordonedNode := corev1.Node{
		ObjectMeta: metav1.ObjectMeta{Name: "A", Labels: map[string]string{NodeLabelIPReady: "true"}},
		Spec:       corev1.NodeSpec{Unschedulable: true},
		Status: corev1.NodeStatus{Conditions: []corev1.NodeCondition{
			{Type: corev1.NodeReady, Status: corev1.ConditionTrue},
		}},
	}
	pod := corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "w-abc-xyz",
			Namespace: "default",
			OwnerReferences: []metav1.OwnerReference{
				{Kind: "ReplicaSet", Name: "w-abc"},
			},
		},
		Spec:   corev1.PodSpec{NodeName: "A"},
		Status: corev1.PodStatus{Phase: corev1.PodRunning},
	}

	c := newIndexedFakeClientBuilder().WithObjects(&cordonedNode, &pod).Build()
	view := NewClusterView(logr.Discard(), c)
	labels := NewLabelPatcher(logr.Discard(), c)
	evictor := NewWorkloadEvictor(logr.Discard(), c)
	metrics := NewMetrics("s4")
	cloud := newFakeCloud()
	cloud.give("A", "10.0.0.1")
	engine := NewReconcileEngine(logr.Discard(), cloud, view, labels, evictor, metrics)

	crd := baseCRD("alloc-4", "10.0.0.1")
	crd.Spec.WorkloadRef = &v1alpha1.WorkloadRef{Kind: v1alpha1.WorkloadKindDeployment, Name: "w", Namespace: "default"}

	ok := engine.Reconcile(context.Background(), crd)
	if !ok {
		t.Fatal("expected reconcile to succeed")
	}
	if cloud.detachN != 0 {
		t.Errorf("must not detach while the referenced workload still has a live pod on the node (S4), got detach=%d", cloud.detachN)
	}
	if !cloud.held["A"]["10.0.0.1"] {
		t.Error("node A should retain the ip while the workload is still present")
	}
}

// TestReconcileCleanupSweepClearsStaleLabel exercises S5: a node labeled
// ip.ready=true that the cloud no longer reports holding any reserved ip
// has its label cleared by the sweep.
func TestReconcileCleanupSweepClearsStaleLabel(t *testing.T) {
	staleNode := corev1.Node{
		ObjectMeta: metav1.ObjectMeta{Name: "Z", Labels: map[string]string{NodeLabelIPReady: "true"}},
	}
	c := newIndexedFakeClientBuilder().WithObjects(&staleNode).Build()
	view := NewClusterView(logr.Discard(), c)
	labels := NewLabelPatcher(logr.Discard(), c)
	evictor := NewWorkloadEvictor(logr.Discard(), c)
	metrics := NewMetrics("s5")
	cloud := newFakeCloud() // holds nothing for Z

	engine := NewReconcileEngine(logr.Discard(), cloud, view, labels, evictor, metrics)
	crd := baseCRD("alloc-5", "10.0.0.9") // no node attached; pool empty on purpose
	crd.Spec.NodeSelector = map[string]string{"never": "matches"}

	ok := engine.Reconcile(context.Background(), crd)
	if !ok {
		t.Fatal("expected reconcile to succeed even with an empty candidate pool")
	}

	var got corev1.Node
	if err := c.Get(context.Background(), types.NamespacedName{Name: "Z"}, &got); err != nil {
		t.Fatalf("get node Z: %v", err)
	}
	if _, ok := got.Labels[NodeLabelIPReady]; ok {
		t.Error("expected the cleanup sweep to clear the stale ip.ready label on a node outside the candidate pool")
	}
}

