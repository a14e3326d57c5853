package engine

import (
	"fmt"
	"strings"
)

// quotaMarkers are textual signatures of capacity exhaustion in provider
// error payloads. Matching any of them classifies the failure as quota-class,
// which both makes it retryable and, when it surfaces as fatal to the
// scheduler, trips the run-level circuit breaker.
var quotaMarkers = []string{
	"RESOURCE_EXHAUSTED",
	"429",
	"quota",
	"Overloaded",
	"rate limit",
}

// RemoteError is a classified failure from one of the remote ports.
type RemoteError struct {
	Status    int    // HTTP status, 0 when unknown
	Detail    string // provider error payload or message
	Retryable bool   // transient: the retry policy re-attempts automatically
	Quota     bool   // capacity exhaustion: opens the run circuit breaker when fatal
}

func (e *RemoteError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("HTTP %d: %s", e.Status, e.Detail)
	}
	return e.Detail
}

// IsQuotaError reports whether the message carries a quota marker.
func IsQuotaError(msg string) bool {
	for _, m := range quotaMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// Classify builds a RemoteError from an HTTP status and error payload.
// 429/500/503 and textual quota markers are retryable; everything else,
// including 403 permission errors, is fatal and must not be retried.
func Classify(status int, detail string) *RemoteError {
	quota := IsQuotaError(detail) || status == 429
	retryable := status == 429 || status == 500 || status == 503 || quota
	if status == 403 {
		// Credential/entitlement problem: never recoverable by waiting.
		retryable = false
	}
	return &RemoteError{Status: status, Detail: detail, Retryable: retryable, Quota: quota}
}

// Fatal builds a non-retryable RemoteError from a plain message.
func Fatal(detail string) *RemoteError {
	return &RemoteError{Detail: detail, Quota: IsQuotaError(detail)}
}
