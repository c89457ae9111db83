package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/fairyhunter13/coupon-ledger/internal/ledger"
)

// Kind is the stable failure category callers branch on.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthenticated
	KindInvalidArgument
	KindPermissionDenied
	KindNotFound
	KindFailedPrecondition
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindInvalidArgument:
		return "invalid-argument"
	case KindPermissionDenied:
		return "permission-denied"
	case KindNotFound:
		return "not-found"
	case KindFailedPrecondition:
		return "failed-precondition"
	default:
		return "internal"
	}
}

// Error is a categorized service error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

var (
	// ErrUnauthenticated is returned when there is no verified caller identity
	ErrUnauthenticated = &Error{Kind: KindUnauthenticated, Message: "unauthenticated"}

	// ErrMissingCouponID is returned when the coupon id is empty
	ErrMissingCouponID = &Error{Kind: KindInvalidArgument, Message: "coupon id is required"}

	// ErrAccountNotFound is returned when the caller has no account record
	ErrAccountNotFound = &Error{Kind: KindPermissionDenied, Message: "account not found"}

	// ErrCouponNotFound is returned when a coupon cannot be found
	ErrCouponNotFound = &Error{Kind: KindNotFound, Message: "coupon not found"}

	// ErrNoUsesLeft is returned when a coupon has no remaining uses
	ErrNoUsesLeft = &Error{Kind: KindFailedPrecondition, Message: "no uses left"}

	// ErrCouponExpired is returned when a coupon's validity policy has lapsed
	ErrCouponExpired = &Error{Kind: KindFailedPrecondition, Message: "coupon expired"}

	// ErrOutcomeUnknown marks failures where the transaction may or may not have committed.
	ErrOutcomeUnknown = errors.New("outcome unknown")
)

// KindOf returns the category of err. Uncategorized errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Retriable reports whether the caller may retry the operation with backoff.
// Business outcomes (not found, failed precondition, ...) are final.
func Retriable(err error) bool {
	return err != nil && KindOf(err) == KindInternal && !errors.Is(err, ErrOutcomeUnknown)
}

// internalError wraps err into an internal service error, preserving
// categorized errors as they are.
func internalError(op string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return &Error{Kind: KindInternal, Message: op, Err: fmt.Errorf("%w: %w", ErrOutcomeUnknown, err)}
	case errors.Is(err, ledger.ErrConflict):
		return &Error{Kind: KindInternal, Message: op + ": conflict retries exhausted", Err: err}
	}
	return &Error{Kind: KindInternal, Message: op, Err: err}
}
