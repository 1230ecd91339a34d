package app

import (
	"errors"

	"quiz-pipeline-service/internal/domain"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Result is the tagged outcome of every public pipeline operation. Callers
// never see a raw error or panic from the orchestrator.
type Result[T any] struct {
	Status     Status      `json:"status"`
	RequestID  string      `json:"request_id,omitempty"`
	TraceSteps int         `json:"trace_steps"`
	Error      string      `json:"error,omitempty"`
	ErrorKind  domain.Kind `json:"error_kind,omitempty"`
	Data       T           `json:"data"`
}

func (r Result[T]) OK() bool { return r.Status == StatusSuccess }

// Err rebuilds a classified error from a failed result, or nil on success.
func (r Result[T]) Err() error {
	if r.OK() {
		return nil
	}
	return &domain.Error{Kind: r.ErrorKind, Err: errors.New(r.Error)}
}

func success[T any](requestID string, steps int, data T) Result[T] {
	return Result[T]{Status: StatusSuccess, RequestID: requestID, TraceSteps: steps, Data: data}
}

func failure[T any](requestID string, steps int, err error) Result[T] {
	return Result[T]{
		Status:     StatusError,
		RequestID:  requestID,
		TraceSteps: steps,
		Error:      err.Error(),
		ErrorKind:  domain.KindOf(err),
	}
}
