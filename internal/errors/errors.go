// Package errors defines error types used throughout anchorlite.
//
// Every failure of an instruction flow is scoped to a single attempt and carries
// a stable code, so callers can render an actionable message and decide whether
// to re-run the resolve, build, assemble cycle.
package errors

import (
	"errors"
	"fmt"
)

// Error codes for anchorlite.
const (
	ErrCodeIDLLoad                   = "IDL_LOAD"
	ErrCodeAccountResolution         = "ACCOUNT_RESOLUTION"
	ErrCodeSimulationTransport       = "SIMULATION_TRANSPORT"
	ErrCodeSimulatedExecutionFailure = "SIMULATED_EXECUTION_FAILURE"
	ErrCodeWalletUnavailable         = "WALLET_UNAVAILABLE"
	ErrCodeConfirmation              = "CONFIRMATION"
	ErrCodeFlowInProgress            = "FLOW_IN_PROGRESS"
	ErrCodeChainNotSolana            = "CHAIN_NOT_SOLANA"
	ErrCodeInvalidArgument           = "INVALID_ARGUMENT"
	ErrCodeStorage                   = "STORAGE"
	ErrCodeSignedMessageMismatch     = "SIGNED_MESSAGE_MISMATCH"
)

// CodedError represents an error with a stable code.
type CodedError struct {
	// Code is a unique error code for this error type.
	Code string

	// Message is a human-readable error message.
	Message string

	// Cause is the underlying error, if any.
	Cause error

	// Details contains additional error context.
	Details map[string]any
}

// Error implements the error interface.
func (e *CodedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *CodedError) Unwrap() error {
	return e.Cause
}

// Is reports whether the error matches the target.
func (e *CodedError) Is(target error) bool {
	t, ok := target.(*CodedError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithCause returns a copy of the error with the given cause.
func (e *CodedError) WithCause(cause error) *CodedError {
	cp := *e
	cp.Cause = cause
	return &cp
}

// WithDetails returns a copy of the error with the given details.
func (e *CodedError) WithDetails(details map[string]any) *CodedError {
	cp := *e
	cp.Details = details
	return &cp
}

// NewError creates a new CodedError.
func NewError(code, message string) *CodedError {
	return &CodedError{
		Code:    code,
		Message: message,
	}
}

// Sentinels for errors.Is checks against a whole class of failures.
var (
	// ErrIDLLoad is returned when the IDL cannot be fetched or parsed.
	ErrIDLLoad = NewError(ErrCodeIDLLoad, "failed to load idl")

	// ErrAccountResolution is matched by every AccountResolutionError.
	ErrAccountResolution = NewError(ErrCodeAccountResolution, "account resolution failed")

	// ErrSimulationTransport is returned when the simulate RPC call itself fails.
	ErrSimulationTransport = NewError(ErrCodeSimulationTransport, "simulation transport failure")

	// ErrSimulatedExecutionFailure is matched by simulation failures of the instruction.
	ErrSimulatedExecutionFailure = NewError(ErrCodeSimulatedExecutionFailure, "simulated execution failed")

	// ErrWalletUnavailable is returned when the wallet exposes no signing capability.
	ErrWalletUnavailable = NewError(ErrCodeWalletUnavailable, "no compatible wallet capability")

	// ErrConfirmation is matched by every ConfirmationError.
	ErrConfirmation = NewError(ErrCodeConfirmation, "confirmation failed")

	// ErrFlowInProgress is returned when another flow holds the gate.
	ErrFlowInProgress = NewError(ErrCodeFlowInProgress, "a transaction flow is already in progress")

	// ErrChainNotSolana is returned when a Solana flow runs while an EVM chain is selected.
	ErrChainNotSolana = NewError(ErrCodeChainNotSolana, "current chain is not a solana chain")

	// ErrInvalidArgument is returned for malformed caller input.
	ErrInvalidArgument = NewError(ErrCodeInvalidArgument, "invalid argument")

	// ErrSignedMessageMismatch is returned when a wallet hands back a message
	// other than the one that was simulated.
	ErrSignedMessageMismatch = NewError(ErrCodeSignedMessageMismatch, "signed message differs from simulated message")
)

// IDLLoad creates an IDL load error for the given source.
func IDLLoad(source string, cause error) *CodedError {
	return NewError(ErrCodeIDLLoad, fmt.Sprintf("failed to load idl from %s", source)).WithCause(cause)
}

// SimulationTransport creates an error for a failed simulate call.
func SimulationTransport(cause error) *CodedError {
	return ErrSimulationTransport.WithCause(cause)
}

// InvalidArgument creates an invalid argument error with the given message.
func InvalidArgument(format string, args ...any) *CodedError {
	return NewError(ErrCodeInvalidArgument, fmt.Sprintf(format, args...))
}

// Storage creates an error for a failed storage operation.
func Storage(op string, cause error) *CodedError {
	return NewError(ErrCodeStorage, fmt.Sprintf("storage %s failed", op)).WithCause(cause)
}

// AccountResolutionError reports a declared account role that could not be
// bound to an address.
type AccountResolutionError struct {
	// Role is the declared account name, verbatim.
	Role string

	// Cause is set when derivation failed rather than no rule matching.
	Cause error
}

// Error implements the error interface.
func (e *AccountResolutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: cannot resolve account %q: %v", ErrCodeAccountResolution, e.Role, e.Cause)
	}
	return fmt.Sprintf("%s: cannot resolve account %q", ErrCodeAccountResolution, e.Role)
}

// Unwrap returns the underlying error.
func (e *AccountResolutionError) Unwrap() error {
	return e.Cause
}

// Is matches ErrAccountResolution.
func (e *AccountResolutionError) Is(target error) bool {
	return target == ErrAccountResolution
}

// ConfirmationReason distinguishes the two post-broadcast failure outcomes.
type ConfirmationReason string

const (
	// ConfirmationExpired means the checkpoint validity window closed first.
	ConfirmationExpired ConfirmationReason = "expired"
	// ConfirmationRejected means the cluster reported an execution error.
	ConfirmationRejected ConfirmationReason = "rejected"
)

// ConfirmationError reports a broadcast transaction that did not confirm.
type ConfirmationError struct {
	Reason    ConfirmationReason
	Signature string

	// Err is the on-chain error for rejected transactions.
	Err any
}

// Error implements the error interface.
func (e *ConfirmationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: transaction %s %s: %v", ErrCodeConfirmation, e.Signature, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: transaction %s %s", ErrCodeConfirmation, e.Signature, e.Reason)
}

// Is matches ErrConfirmation.
func (e *ConfirmationError) Is(target error) bool {
	return target == ErrConfirmation
}

// IsExpired reports whether err is a ConfirmationError caused by checkpoint expiry.
func IsExpired(err error) bool {
	var ce *ConfirmationError
	return errors.As(err, &ce) && ce.Reason == ConfirmationExpired
}

// CodeOf returns the anchorlite error code carried by err, or "".
func CodeOf(err error) string {
	var ce *CodedError
	if errors.As(err, &ce) {
		return ce.Code
	}
	var ar *AccountResolutionError
	if errors.As(err, &ar) {
		return ErrCodeAccountResolution
	}
	var cf *ConfirmationError
	if errors.As(err, &cf) {
		return ErrCodeConfirmation
	}
	var coder interface{ ErrorCode() string }
	if errors.As(err, &coder) {
		return coder.ErrorCode()
	}
	return ""
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Join returns an error that wraps the given errors.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
