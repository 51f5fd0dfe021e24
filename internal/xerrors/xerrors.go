// Package xerrors defines the discriminated error taxonomy the rest of the
// core reports through. Every layer still wraps with fmt.Errorf("...: %w",
// err); Kind is layered on top so callers can branch on error category with
// errors.As instead of string-matching a message.
package xerrors

import "fmt"

// Kind discriminates error categories a caller might want to branch on —
// e.g. retry on RateLimited but give up on Rejected.
type Kind string

const (
	KindRateLimited    Kind = "rate_limited"
	KindAuthFailed     Kind = "auth_failed"
	KindInvalidOrder   Kind = "invalid_order"
	KindRejected       Kind = "rejected"       // venue rejected the action
	KindNotFound       Kind = "not_found"      // order/pair/position unknown
	KindConnectionLost Kind = "connection_lost"
	KindTimeout        Kind = "timeout"
	KindOverflow       Kind = "overflow"       // decimal overflow
	KindInternal       Kind = "internal"       // bug, not a venue/caller fault

	// Data/protocol/business/system kinds, layered on top of the original
	// nine-kind taxonomy this package started with.
	KindInvalidFormat        Kind = "invalid_format"
	KindInvalidPair          Kind = "invalid_pair"
	KindInvalidTickSize      Kind = "invalid_tick_size"
	KindInsufficientLiquidity Kind = "insufficient_liquidity"
	KindInvalidResponse      Kind = "invalid_response"
	KindInvalidOrderResponse Kind = "invalid_order_response"
	KindSignatureRejected    Kind = "signature_rejected"
	KindSignerRequired       Kind = "signer_required"
	KindAddressMismatch      Kind = "address_mismatch"
	KindOrderNotCancellable  Kind = "order_not_cancellable"
	KindInsufficientBalance  Kind = "insufficient_balance"
	KindPositionNotFound     Kind = "position_not_found"
	KindDivisionByZero       Kind = "division_by_zero"
	KindIoError              Kind = "io_error"
	KindConfigError          Kind = "config_error"
	KindInvariantViolated    Kind = "invariant_violated"
	KindOutOfMemory          Kind = "out_of_memory"
)

// Error is a Kind-tagged wrapped error.
type Error struct {
	Kind Kind
	Op   string // operation being attempted, e.g. "place_order"
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs a Kind-tagged error wrapping cause.
func New(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// Retryable reports whether the error kind represents a transient condition
// worth retrying (rate limits, dropped connections, timeouts) as opposed to
// a durable rejection (bad order, auth failure, unknown entity).
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindRateLimited, KindConnectionLost, KindTimeout:
		return true
	default:
		return false
	}
}
