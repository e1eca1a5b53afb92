package core

import (
	"errors"
	"fmt"
	"strings"
)

// TransportError wraps connection failures, timeouts and HTTP error
// statuses that carried no recognizable site payload. The core never
// retries these; retry policy belongs to the caller.
type TransportError struct {
	Err error
}

func (e TransportError) Error() string {
	return fmt.Errorf("transport: %w", e.Err).Error()
}

func (e TransportError) Unwrap() error {
	return e.Err
}

// NotFoundError means the site reported the "not_found" error code. In
// collection contexts this is recoverable (an empty listing); in direct
// entity lookups it means the entity does not exist.
type NotFoundError struct {
	Verdict Classification
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("page not found: %s", e.Verdict)
}

// ForbiddenError means the site reported the "forbidden" error code.
// The session lacks permission, usually because the login went stale.
type ForbiddenError struct {
	Verdict Classification
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("page forbidden: %s", e.Verdict)
}

// SiteError carries any other structured rejection from the site,
// including its message list verbatim.
type SiteError struct {
	Verdict Classification
}

func (e SiteError) Error() string {
	return fmt.Sprintf("site error: %s", e.Verdict)
}

// ValidationError is raised before any network call when the input is
// malformed, e.g. a rating outside its valid range.
type ValidationError struct {
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation: %s", e.Reason)
}

func (c Classification) String() string {
	parts := []string{}
	if c.HasResult {
		parts = append(parts, fmt.Sprintf("result=%s", c.Result))
	}
	if c.ErrorCode != "" {
		parts = append(parts, fmt.Sprintf("error=%s", c.ErrorCode))
	}
	if len(c.Messages) > 0 {
		parts = append(parts, fmt.Sprintf("messages=%s", strings.Join(c.Messages, "; ")))
	}
	if len(parts) == 0 {
		return "no verdict"
	}
	return strings.Join(parts, " ")
}

// errorLabel buckets an error into a short label for metrics.
func errorLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var transport TransportError
	if errors.As(err, &transport) {
		return "transport"
	}
	var notFound NotFoundError
	if errors.As(err, &notFound) {
		return "not_found"
	}
	var forbidden ForbiddenError
	if errors.As(err, &forbidden) {
		return "forbidden"
	}
	var site SiteError
	if errors.As(err, &site) {
		return "site"
	}
	var validation ValidationError
	if errors.As(err, &validation) {
		return "validation"
	}
	return "unknown"
}
