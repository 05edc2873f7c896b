package integrations

import (
	"errors"
	"fmt"
)

// ErrReauthRequired signals that the stored refresh token was revoked or
// expired. Callers must prompt the user to reconnect the integration instead
// of retrying the call.
var ErrReauthRequired = errors.New("reauthorization required")

// ErrIntegrationNotFound is returned when no integration matches the request.
var ErrIntegrationNotFound = errors.New("integration not found")

// ErrSyncDisabled is returned when sync is attempted on a disabled integration.
var ErrSyncDisabled = errors.New("sync is disabled for this integration")

// ProviderError carries the status of a failed provider call. Discrimination
// happens on the structured fields, never by matching error message strings.
type ProviderError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s failed with status %d: %s", e.Op, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s failed with status %d", e.Op, e.StatusCode)
}

// Temporary reports whether the failure is likely transient (provider 5xx or
// rate limiting) as opposed to a permanent rejection.
func (e *ProviderError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}
