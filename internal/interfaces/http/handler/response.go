package handler

import "github.com/propbill/backend/internal/interfaces/http/dto"

// Envelope documents a response body whose data field has type T. Commit
// and upload failures use it too: error is set and data still reports what
// was written before the failure.
type Envelope[T any] struct {
	Success bool           `json:"success"`
	Data    T              `json:"data,omitempty"`
	Error   *dto.ErrorInfo `json:"error,omitempty"`
}

// Failure documents a response body that carries only an error
type Failure struct {
	Success bool           `json:"success" example:"false"`
	Error   *dto.ErrorInfo `json:"error"`
}
