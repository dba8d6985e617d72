// Package types defines the wire envelopes every JSON response uses.
package types

// SuccessEnvelope wraps successful payloads under a data key.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the client-facing projection of a pkg/errors Error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps an APIError under an error key.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
