// Package types holds the JSON envelopes shared by edge handlers and the
// offline interceptor.
package types

// SuccessEnvelope wraps every 2xx control-plane body.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the client-visible error. Details is only set for codes that
// allow it.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func NewErrorEnvelope(code, message string, details any) ErrorEnvelope {
	return ErrorEnvelope{Error: APIError{Code: code, Message: message, Details: details}}
}
