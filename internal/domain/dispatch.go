package domain

import (
	"errors"
	"fmt"
)

// DispatchErrorKind классифицирует отказ шлюза доставки.
type DispatchErrorKind string

const (
	// DispatchErrTimeout — шлюз не ответил за отведённое время.
	DispatchErrTimeout DispatchErrorKind = "timeout"
	// DispatchErrUpstream — ошибка провайдера LLM.
	DispatchErrUpstream DispatchErrorKind = "upstream"
	// DispatchErrInvalidOutput — ответ получен, но артефакт из него не собрать.
	DispatchErrInvalidOutput DispatchErrorKind = "invalid_output"
)

// DispatchError — типизированный отказ доставки.
type DispatchError struct {
	Kind DispatchErrorKind
	Err  error
}

func (e *DispatchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("dispatch: %s", e.Kind)
	}
	return fmt.Sprintf("dispatch: %s: %v", e.Kind, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// NewDispatchError оборачивает ошибку шлюза с классификацией.
func NewDispatchError(kind DispatchErrorKind, err error) *DispatchError {
	return &DispatchError{Kind: kind, Err: err}
}

// DispatchKind возвращает вид отказа. Неклассифицированные ошибки
// трактуются как DispatchErrUpstream.
func DispatchKind(err error) DispatchErrorKind {
	var de *DispatchError
	if errors.As(err, &de) {
		return de.Kind
	}
	return DispatchErrUpstream
}
