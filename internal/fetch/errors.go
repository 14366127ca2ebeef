// Package fetch talks to the content-fetch service: a remote scrape API
// that turns a URL into title and body text.
package fetch

import (
	"errors"
	"fmt"
)

// ErrTransient marks fetch failures worth retrying: rate limits, server
// errors, network timeouts. Everything else is permanent for the item and
// skips it without aborting the batch.
var ErrTransient = errors.New("transient fetch error")

// StatusError reports a non-success HTTP status from the scrape API.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
}

// Unwrap lets errors.Is classify retryable statuses as transient.
func (e *StatusError) Unwrap() error {
	if e.StatusCode == 429 || e.StatusCode >= 500 {
		return ErrTransient
	}
	return nil
}
