package main

import (
	"testing"

	corev1 "k8s.io/api/core/v1"
)

func TestInstanceRefFromNodeParsesGCEProviderID(t *testing.T) {
	node := corev1.Node{Spec: corev1.NodeSpec{ProviderID: "gce://my-project/us-central1-a/gke-pool-abcd"}}
	ref, err := instanceRefFromNode(node)
	if err != nil {
		t.Fatalf("instanceRefFromNode: %v", err)
	}
	if ref.Project != "my-project" || ref.Zone != "us-central1-a" || ref.Instance != "gke-pool-abcd" {
		t.Errorf("got %+v, want {my-project us-central1-a gke-pool-abcd}", ref)
	}
}

func TestInstanceRefFromNodeRejectsNonGCEProviderID(t *testing.T) {
	node := corev1.Node{Spec: corev1.NodeSpec{ProviderID: "aws:///us-east-1a/i-0123456789"}}
	if _, err := instanceRefFromNode(node); err == nil {
		t.Error("expected an error for a non-gce:// providerID")
	}
}

func TestInstanceRefFromNodeRejectsMalformedProviderID(t *testing.T) {
	node := corev1.Node{Spec: corev1.NodeSpec{ProviderID: "gce://only-one-segment"}}
	if _, err := instanceRefFromNode(node); err == nil {
		t.Error("expected an error for a providerID missing the zone/instance segments")
	}
}
