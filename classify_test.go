package main

import (
	"context"
	"testing"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

func TestClassify(t *testing.T) {
	gr := schema.GroupResource{Group: "netinfra.darkbrains.com", Resource: "netipallocations"}

	cases := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"nil", nil, ""},
		{"not found", apierrors.NewNotFound(gr, "x"), ClassNotFound},
		{"forbidden", apierrors.NewForbidden(gr, "x", nil), ClassPermission},
		{"unauthorized", apierrors.NewUnauthorized("nope"), ClassPermission},
		{"conflict", apierrors.NewConflict(gr, "x", nil), ClassTransientAPI},
		{"timeout", apierrors.NewTimeoutError("slow", 1), ClassTransientAPI},
		{"deadline exceeded", context.DeadlineExceeded, ClassTransientAPI},
		{"canceled", context.Canceled, ClassTransientAPI},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.err); got != tc.want {
				t.Errorf("Classify(%v) = %q, want %q", tc.err, got, tc.want)
			}
		})
	}
}

func TestErrorClassRetryable(t *testing.T) {
	if !ClassTransientAPI.Retryable() {
		t.Error("TRANSIENT_API should be retryable")
	}
	if !ClassPermission.Retryable() {
		t.Error("PERMISSION should be retryable (logged, not fatal to the loop)")
	}
	if !ClassNotFound.Retryable() {
		t.Error("NOT_FOUND should be retryable")
	}
	if ClassUnexpected.Retryable() {
		t.Error("UNEXPECTED should not be retryable")
	}
}
