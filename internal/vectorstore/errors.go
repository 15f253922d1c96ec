package vectorstore

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a store failure for the retry policy.
type ErrorKind int

const (
	// KindTransient covers network failures and server-side trouble:
	// retried with bounded backoff.
	KindTransient ErrorKind = iota
	// KindClient covers malformed requests and validation failures:
	// never retried, surfaced immediately.
	KindClient
)

// StoreError is a classified vector-store failure.
type StoreError struct {
	Kind   ErrorKind
	Op     string
	Status int
	Err    error
}

func (e *StoreError) Error() string {
	kind := "transient"
	if e.Kind == KindClient {
		kind = "client"
	}
	if e.Status != 0 {
		return fmt.Sprintf("vectorstore: %s: %s error (HTTP %d): %v", e.Op, kind, e.Status, e.Err)
	}
	return fmt.Sprintf("vectorstore: %s: %s error: %v", e.Op, kind, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Kind == KindTransient
	}
	// Unclassified failures (e.g. context deadline on the request) are
	// treated as transient; the retry bound caps the damage.
	return true
}

// classifyStatus maps an HTTP status to an error kind. Throttling and
// request timeouts are transient despite being 4xx.
func classifyStatus(status int) ErrorKind {
	switch {
	case status == http.StatusTooManyRequests, status == http.StatusRequestTimeout:
		return KindTransient
	case status >= 400 && status < 500:
		return KindClient
	default:
		return KindTransient
	}
}
