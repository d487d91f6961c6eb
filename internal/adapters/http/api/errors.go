package api

import (
	"errors"
	"fmt"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrBackpressure = errors.New("backpressure")
	ErrRender       = errors.New("render failed")
)

// NewKind returns "op: kind".
func NewKind(op string, kind error) error {
	return fmt.Errorf("%s: %w", op, kind)
}

// Wrap returns "op: cause".
func Wrap(op string, cause error) error {
	return fmt.Errorf("%s: %w", op, cause)
}

// WrapKind returns "op: kind: cause"; both kind and cause match errors.Is.
func WrapKind(op string, kind, cause error) error {
	return fmt.Errorf("%s: %w: %w", op, kind, cause)
}
