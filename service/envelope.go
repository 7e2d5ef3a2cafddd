package service

import "github.com/meshregistry/registry/regerrors"

// Result is the uniform success/error wrapper every domain operation
// returns across the host boundary (SPEC_FULL.md §6.1's "result envelope
// {success, error, …payload}"), generic over the payload shape.
type Result[T any] struct {
	Success bool
	Value   T
	Error   string
	err     error
}

// ok wraps a successful payload.
func ok[T any](v T) Result[T] {
	return Result[T]{Success: true, Value: v}
}

// fail wraps an error, formatting it the same way regerrors.RegistryError
// would be formatted for a peer on the wire.
func fail[T any](err error) Result[T] {
	return Result[T]{Error: err.Error(), err: err}
}

// Kind exposes the regerrors.Kind of a failed Result, for callers that want
// to branch on category rather than string-match Error.
func (r Result[T]) Kind() regerrors.Kind {
	if r.Success || r.err == nil {
		return regerrors.InternalError
	}
	return regerrors.KindOf(r.err)
}
