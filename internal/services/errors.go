package services

import (
	"errors"
	"fmt"

	"finflow/internal/core"
)

// ErrUnauthenticated is returned when an operation needs a user id and no
// one is signed in. No request is made in that case.
var ErrUnauthenticated = errors.New("not authenticated")

// OperationError is returned by every failed mutation.
type OperationError struct {
	Domain core.Domain
	Action string
	Reason string
	Err    error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Action, e.Domain, e.Reason)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}
