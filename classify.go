package main

import (
	"context"
	"errors"
	"net/http"

	apierrors "k8s.io/apimachinery/pkg/api/errors"

	"google.golang.org/api/googleapi"
)

// ErrorClass is the §7 error taxonomy shared by the cloud driver and the
// cluster-facing components.
type ErrorClass string

const (
	ClassTransientAPI ErrorClass = "TRANSIENT_API"
	ClassPermission   ErrorClass = "PERMISSION"
	ClassNotFound     ErrorClass = "NOT_FOUND"
	ClassUnexpected   ErrorClass = "UNEXPECTED"
)

// Classify maps a cloud-SDK or cluster-API error onto the taxonomy. It never
// panics; a nil error yields the empty class, and any other error one of
// the four classes, matching the teacher's
// aws.go style of switching on the SDK's own error type before falling back
// to a generic bucket.
func Classify(err error) ErrorClass {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ClassTransientAPI
	}

	if apierrors.IsNotFound(err) {
		return ClassNotFound
	}
	if apierrors.IsForbidden(err) || apierrors.IsUnauthorized(err) {
		return ClassPermission
	}
	if apierrors.IsConflict(err) || apierrors.IsServerTimeout(err) || apierrors.IsTimeout(err) || apierrors.IsTooManyRequests(err) || apierrors.IsServiceUnavailable(err) {
		return ClassTransientAPI
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusNotFound:
			return ClassNotFound
		case http.StatusForbidden, http.StatusUnauthorized:
			return ClassPermission
		case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout, http.StatusInternalServerError:
			return ClassTransientAPI
		}
		return ClassUnexpected
	}

	return ClassUnexpected
}

// Retryable reports whether the §7 propagation policy treats the class as
// safe to retry on the next sweep rather than fatal to the loop.
// PERMISSION is "logged and treated as transient (not fatal to the loop)"
// per spec §4.A, so it is retryable here too.
func (c ErrorClass) Retryable() bool {
	switch c {
	case ClassTransientAPI, ClassPermission, ClassNotFound:
		return true
	default:
		return false
	}
}
