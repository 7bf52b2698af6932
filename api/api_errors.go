package api

import (
	"errors"
	"reflect"

	"golang.org/x/xerrors"

	"github.com/filecoin-project/go-jsonrpc"
)

const (
	EOutOfGas = iota + jsonrpc.FirstUserCode
	EActorNotFound
	EChainStateUnavailable
	ENumericConversion
	EAddressResolution
	EExecutor
)

var (
	RPCErrors = jsonrpc.NewErrors()

	_ error = (*ErrOutOfGas)(nil)
	_ error = (*ErrActorNotFound)(nil)
	_ error = (*ErrChainStateUnavailable)(nil)
	_ error = (*ErrNumericConversion)(nil)
	_ error = (*ErrAddressResolution)(nil)
	_ error = (*ErrExecutor)(nil)
)

func init() {
	RPCErrors.Register(EOutOfGas, new(*ErrOutOfGas))
	RPCErrors.Register(EActorNotFound, new(*ErrActorNotFound))
	RPCErrors.Register(EChainStateUnavailable, new(*ErrChainStateUnavailable))
	RPCErrors.Register(ENumericConversion, new(*ErrNumericConversion))
	RPCErrors.Register(EAddressResolution, new(*ErrAddressResolution))
	RPCErrors.Register(EExecutor, new(*ErrExecutor))
}

func ErrorIsIn(err error, errorTypes []error) bool {
	for _, etype := range errorTypes {
		tmp := reflect.New(reflect.PointerTo(reflect.ValueOf(etype).Elem().Type())).Interface()
		if errors.As(err, tmp) {
			return true
		}
	}
	return false
}

// ErrOutOfGas signals that a call failed due to insufficient gas.
type ErrOutOfGas struct{}

func (ErrOutOfGas) Error() string { return "call ran out of gas" }

// ErrActorNotFound signals that the actor is not found.
type ErrActorNotFound struct{}

func (ErrActorNotFound) Error() string { return "actor not found" }

// ErrChainStateUnavailable signals that a tipset or one of its ancestors could
// not be loaded. Usually resolves once chain sync progresses.
type ErrChainStateUnavailable struct{ Err error }

func (e *ErrChainStateUnavailable) Error() string { return withCause("chain state unavailable", e.Err) }
func (e *ErrChainStateUnavailable) Unwrap() error { return e.Err }

// ErrNumericConversion signals that a floating point factor could not be
// turned into a fixed-point big integer (NaN, infinity or negative).
type ErrNumericConversion struct{ Err error }

func (e *ErrNumericConversion) Error() string { return withCause("numeric conversion failed", e.Err) }
func (e *ErrNumericConversion) Unwrap() error { return e.Err }

// ErrAddressResolution signals that the sender has no key address at the
// reference tipset.
type ErrAddressResolution struct{ Err error }

func (e *ErrAddressResolution) Error() string { return withCause("address resolution failed", e.Err) }
func (e *ErrAddressResolution) Unwrap() error { return e.Err }

// ErrExecutor signals that speculative execution itself failed. A message
// that executes and exits non-zero is not an ErrExecutor.
type ErrExecutor struct{ Err error }

func (e *ErrExecutor) Error() string { return withCause("message simulation failed", e.Err) }
func (e *ErrExecutor) Unwrap() error { return e.Err }

func withCause(msg string, err error) string {
	if err == nil {
		return msg
	}
	return msg + ": " + err.Error()
}

var ErrNotSupported = xerrors.New("method not supported")
