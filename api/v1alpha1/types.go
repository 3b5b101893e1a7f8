/*
Copyright 2020 The node-detacher-controller authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// DefaultReconcileIntervalSeconds is used when IPAllocationSpec.ReconcileInterval is unset or non-positive.
const DefaultReconcileIntervalSeconds = 30

// WorkloadKind enumerates the kinds that WorkloadRef may point at.
type WorkloadKind string

const (
	WorkloadKindDeployment  WorkloadKind = "Deployment"
	WorkloadKindStatefulSet WorkloadKind = "StatefulSet"
	WorkloadKindDaemonSet   WorkloadKind = "DaemonSet"
)

// WorkloadRef identifies the workload whose pods gate draining of a node
// that carries one of the reserved IPs.
type WorkloadRef struct {
	// Kind is one of Deployment, StatefulSet, DaemonSet.
	Kind WorkloadKind `json:"kind"`

	Name string `json:"name"`

	// +optional
	Namespace string `json:"namespace,omitempty"`
}

// CloudSpec carries provider-specific parameters for the CloudBinding driver.
type CloudSpec struct {
	Project string `json:"project"`

	// Region is not read by the controller.
	// +optional
	Region string `json:"region,omitempty"`

	// Zone, when set, is used as the instance zone for every node in place of
	// the zone parsed from the node's spec.providerID.
	// +optional
	Zone string `json:"zone,omitempty"`

	// Credentials, when set, is a path to a service-account JSON key file.
	// When empty, ambient workload-identity credentials are used.
	// +optional
	Credentials string `json:"credentials,omitempty"`
}

// IPAllocationSpec defines the desired binding of reserved external IPs to a
// pool of candidate nodes.
type IPAllocationSpec struct {
	// ReservedIPs is an ordered, duplicate-free list of IPv4 literals.
	// +kubebuilder:validation:MinItems=1
	ReservedIPs []string `json:"reservedIPs"`

	// NodeSelector selects the candidate node pool by label equality.
	// +optional
	NodeSelector map[string]string `json:"nodeSelector,omitempty"`

	// WorkloadRef is consulted when deciding whether a cordoned node is safe to detach from.
	// +optional
	WorkloadRef *WorkloadRef `json:"workloadRef,omitempty"`

	Cloud CloudSpec `json:"cloud"`

	// ReconcileInterval is the minimum spacing, in seconds, between two
	// reconciliations of this resource. Defaults to 30.
	// +optional
	// +kubebuilder:default=30
	ReconcileInterval int `json:"reconcileInterval,omitempty"`
}

// IPAllocationStatus reports the last reconcile outcome.
type IPAllocationStatus struct {
	// +optional
	LastReconcileTime metav1.Time `json:"lastReconcileTime,omitempty"`

	// +optional
	AttachedCount int `json:"attachedCount,omitempty"`

	// +optional
	UnattachedCount int `json:"unattachedCount,omitempty"`

	// +optional
	Healthy bool `json:"healthy,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:printcolumn:JSONPath=".status.attachedCount",name=Attached,type=integer
// +kubebuilder:printcolumn:JSONPath=".status.unattachedCount",name=Unattached,type=integer
// +kubebuilder:printcolumn:JSONPath=".status.healthy",name=Healthy,type=boolean

// IPAllocation is the Schema for the netipallocations API.
type IPAllocation struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   IPAllocationSpec   `json:"spec,omitempty"`
	Status IPAllocationStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// IPAllocationList contains a list of IPAllocation.
type IPAllocationList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []IPAllocation `json:"items"`
}

func init() {
	SchemeBuilder.Register(&IPAllocation{}, &IPAllocationList{})
}

// ReconcileIntervalOrDefault returns spec.ReconcileInterval if positive, else the package default.
func (s IPAllocationSpec) ReconcileIntervalOrDefault() int {
	if s.ReconcileInterval <= 0 {
		return DefaultReconcileIntervalSeconds
	}
	return s.ReconcileInterval
}
