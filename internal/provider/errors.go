package provider

import "errors"

var (
	// ErrUnsupportedURL means no provider can handle the URL at all.
	ErrUnsupportedURL = errors.New("unsupported URL")

	// ErrExtractionFailed means the provider ran but could not produce an
	// artifact for this URL.
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrNetwork covers connection and transport failures.
	ErrNetwork = errors.New("network error")

	// ErrTimeout means the attempt exceeded its wall-clock budget.
	ErrTimeout = errors.New("timed out")

	// ErrValidationFailed means the fetched bytes are not usable media,
	// e.g. an HTML error page or a file under the size floor.
	ErrValidationFailed = errors.New("validation failed")

	// ErrAllProvidersFailed is the aggregate returned when the whole chain
	// is exhausted.
	ErrAllProvidersFailed = errors.New("all providers failed")
)
