package cloudstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/smithy-go"
)

// AuthError indicates the backend rejected the configured credentials.
type AuthError struct {
	Bucket string
	Err    error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("cloud auth failed for bucket %s: %v", e.Bucket, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// AuthTimeoutError indicates the connect+list probe did not complete within
// the configured timeout. Distinct from AuthError: the credentials were
// never evaluated.
type AuthTimeoutError struct {
	Bucket  string
	Timeout time.Duration
}

func (e *AuthTimeoutError) Error() string {
	return fmt.Sprintf("cloud auth timed out after %s for bucket %s", e.Timeout, e.Bucket)
}

// OpError wraps a failed storage operation with context.
type OpError struct {
	Op     string
	Bucket string
	Key    string
	Err    error
}

func (e *OpError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("cloud %s: %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
	}
	return fmt.Sprintf("cloud %s: %s: %v", e.Op, e.Bucket, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// IsAuthTimeout reports whether err is an auth-probe timeout.
func IsAuthTimeout(err error) bool {
	var t *AuthTimeoutError
	return errors.As(err, &t)
}

// isCredentialRejection classifies SDK errors that mean the credentials
// themselves were refused rather than the request failing in transit.
func isCredentialRejection(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken", "TokenRefreshRequired":
		return true
	}
	return false
}

func isDeadline(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
