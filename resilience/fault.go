package resilience

import (
	"errors"
	"fmt"
)

// FaultKind tags a fault with where it came from.
type FaultKind int

const (
	// FaultOther is any fault that is not transport or timeout shaped.
	FaultOther FaultKind = iota
	// FaultTransport is a transport-level failure raised by the operation.
	FaultTransport
	// FaultTimeout is synthesized by the timeout strategy.
	FaultTimeout
)

// String returns the string representation of the kind.
func (k FaultKind) String() string {
	switch k {
	case FaultOther:
		return "other"
	case FaultTransport:
		return "transport"
	case FaultTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Fault is a classified error. The kind is fixed at creation so classifiers
// never need to inspect concrete error types.
type Fault struct {
	Kind FaultKind
	Err  error
}

// NewFault creates a fault of the given kind wrapping err.
func NewFault(kind FaultKind, err error) *Fault {
	return &Fault{Kind: kind, Err: err}
}

// TransportFault marks err as a transport-level fault.
func TransportFault(err error) *Fault {
	return NewFault(FaultTransport, err)
}

// TimeoutFault returns the fault emitted when an attempt deadline elapses.
func TimeoutFault(cause error) *Fault {
	if cause == nil {
		return NewFault(FaultTimeout, ErrTimeout)
	}
	return NewFault(FaultTimeout, fmt.Errorf("%w: %w", ErrTimeout, cause))
}

func (f *Fault) Error() string {
	if f.Err == nil {
		return "resilience: " + f.Kind.String() + " fault"
	}
	return f.Err.Error()
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// KindOf returns the fault kind carried by err. Errors that are not faults
// are FaultOther, except ErrTimeout which is always FaultTimeout.
func KindOf(err error) FaultKind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	if errors.Is(err, ErrTimeout) {
		return FaultTimeout
	}
	return FaultOther
}
