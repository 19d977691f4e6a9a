package llm

import "errors"

// ErrGeneration is returned when the completion provider fails.
var ErrGeneration = errors.New("completion failed")

// ErrorResponse is the JSON error shape returned by the API surface.
type ErrorResponse struct {
	Error string `json:"error"`
}
