package ai

import "errors"

// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("ai quota exceeded")

// ErrUnavailable covers transport failures, timeouts and provider-side errors.
var ErrUnavailable = errors.New("ai provider unavailable")

// ErrEmptyResponse is returned when the provider answers with no choices or no content.
var ErrEmptyResponse = errors.New("ai provider returned an empty response")
