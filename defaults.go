package main

import (
	"github.com/darkbrains/ip-address-controller/api/v1alpha1"
	"github.com/imdario/mergo"
)

// defaultIPAllocationSpec carries the zero-value fallbacks for
// IPAllocationSpec, merged into an incoming spec before it is reconciled.
// Grounded on the teacher's use of imdario/mergo for defaulting patch
// bodies before they're applied.
var defaultIPAllocationSpec = v1alpha1.IPAllocationSpec{
	ReconcileInterval: v1alpha1.DefaultReconcileIntervalSeconds,
}

// applyDefaults fills zero-valued fields of spec from
// defaultIPAllocationSpec in place. mergo.Merge only overwrites empty
// destination fields, so an explicitly set reconcileInterval is never
// touched.
func applyDefaults(spec *v1alpha1.IPAllocationSpec) error {
	return mergo.Merge(spec, defaultIPAllocationSpec)
}
