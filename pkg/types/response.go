// Package types holds the wire shapes shared between handlers and clients.
package types

// SuccessEnvelope wraps successful API payloads. Warning carries non-fatal
// post-commit failures (for example an audit write that did not land).
type SuccessEnvelope struct {
	Data    any    `json:"data"`
	Warning string `json:"warning,omitempty"`
}

// APIError is the public error body; Details is only populated for codes
// whose metadata allows it.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
