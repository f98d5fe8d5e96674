// Package resilience defines the error taxonomy shared by the enrichment
// pipeline and its collaborator adapters.
package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// ProviderError wraps a failed language-model or search provider call.
// Stages react with their documented fallback or fail-closed verdict.
type ProviderError struct {
	Provider string // "anthropic", "yandex"
	Err      error
}

func (e *ProviderError) Error() string {
	return e.Provider + ": " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NewProviderError wraps err as a ProviderError for the named provider.
func NewProviderError(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Err: err}
}

// IsProviderError reports whether any error in the chain is a ProviderError.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

// NavigationError wraps a failed browser navigation. The affected site is
// skipped; the pipeline run continues.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return "navigate " + e.URL + ": " + e.Err.Error()
}

func (e *NavigationError) Unwrap() error { return e.Err }

// NewNavigationError wraps err as a NavigationError for the given URL.
func NewNavigationError(url string, err error) *NavigationError {
	return &NavigationError{URL: url, Err: err}
}

// IsNavigationError reports whether any error in the chain is a NavigationError.
func IsNavigationError(err error) bool {
	var ne *NavigationError
	return errors.As(err, &ne)
}

// MalformedResponseError signals collaborator output that could not be coerced
// to the expected schema even after repair.
type MalformedResponseError struct {
	Snippet string
	Err     error
}

func (e *MalformedResponseError) Error() string {
	return "malformed response: " + e.Err.Error()
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// NewMalformedResponseError records the parse failure with a short snippet of
// the offending text for diagnostics.
func NewMalformedResponseError(err error, text string) *MalformedResponseError {
	const maxSnippet = 200
	if len(text) > maxSnippet {
		text = text[:maxSnippet]
	}
	return &MalformedResponseError{Snippet: text, Err: err}
}

// IsMalformedResponse reports whether any error in the chain is a
// MalformedResponseError.
func IsMalformedResponse(err error) bool {
	var me *MalformedResponseError
	return errors.As(err, &me)
}

// IsTransient returns true if the error matches common transient network
// patterns (timeouts, connection resets, DNS failures). Used for log
// classification only; the pipeline never retries automatically.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	patterns := []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
	}
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}
