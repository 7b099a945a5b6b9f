// file: internal/catalog/errors.go
// version: 1.0.0
// guid: aeae89a6-b7c4-4dd4-96de-17776652567d

package catalog

import "errors"

var (
	// ErrCatalogUnavailable is returned when the catalog cannot be reached
	// after the configured retries.
	ErrCatalogUnavailable = errors.New("catalog unavailable")

	// ErrMissingCredentials is returned when no client ID or secret is set.
	ErrMissingCredentials = errors.New("spotify client credentials are not configured")
)
