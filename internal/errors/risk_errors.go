package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies risk-gate failures.
type ErrorCategory string

const (
	// Malformed input: non-positive quantity/price, unknown side.
	// Rejected immediately, no state change.
	ErrorCategoryInput ErrorCategory = "INPUT"

	// A named risk limit was breached. Always carries a reason code.
	ErrorCategoryLimit ErrorCategory = "LIMIT"

	// A pluggable data provider failed or timed out. The manager degrades
	// to configured defaults instead of failing the call.
	ErrorCategoryData ErrorCategory = "DATA"

	// An internal invariant was violated. Fatal: the manager halts into
	// emergency stop rather than continue with corrupt financial state.
	ErrorCategoryState ErrorCategory = "STATE"
)

// ReasonCode is the machine-readable rejection reason attached to limit
// violations and halt decisions.
type ReasonCode string

const (
	ReasonHalted        ReasonCode = "halted"
	ReasonInvalidInput  ReasonCode = "invalid-input"
	ReasonBalance       ReasonCode = "insufficient-balance"
	ReasonPositionSize  ReasonCode = "position-size"
	ReasonOpenPositions ReasonCode = "open-positions"
	ReasonConcentration ReasonCode = "concentration"
	ReasonDailyLoss     ReasonCode = "daily-loss"
	ReasonMinOrderSize  ReasonCode = "min-order-size"
)

// RiskError is a categorized error with component/operation context.
type RiskError struct {
	Category   ErrorCategory
	Reason     ReasonCode
	Component  string
	Operation  string
	Message    string
	Underlying error
}

func (e *RiskError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Category, e.Component, e.Operation, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Category, e.Component, e.Operation, e.Message)
}

func (e *RiskError) Unwrap() error {
	return e.Underlying
}

// IsFatal reports whether this error must halt the manager.
func (e *RiskError) IsFatal() bool {
	return e.Category == ErrorCategoryState
}

// IsDegradable reports whether the manager may continue on defaults.
func (e *RiskError) IsDegradable() bool {
	return e.Category == ErrorCategoryData
}

// NewInputError reports a malformed proposal.
func NewInputError(component, operation, message string) *RiskError {
	return &RiskError{
		Category:  ErrorCategoryInput,
		Reason:    ReasonInvalidInput,
		Component: component,
		Operation: operation,
		Message:   message,
	}
}

// NewLimitError reports a named limit violation.
func NewLimitError(component, operation string, reason ReasonCode, message string) *RiskError {
	return &RiskError{
		Category:  ErrorCategoryLimit,
		Reason:    reason,
		Component: component,
		Operation: operation,
		Message:   message,
	}
}

// NewDataError wraps a failed provider lookup.
func NewDataError(component, operation string, err error) *RiskError {
	return &RiskError{
		Category:   ErrorCategoryData,
		Component:  component,
		Operation:  operation,
		Message:    "data lookup failed",
		Underlying: err,
	}
}

// NewStateError reports a violated internal invariant.
func NewStateError(component, operation, message string) *RiskError {
	return &RiskError{
		Category:  ErrorCategoryState,
		Component: component,
		Operation: operation,
		Message:   message,
	}
}

// CategoryOf extracts the category from any error chain, defaulting to STATE
// for unclassified errors so unknown failures stay on the safe side.
func CategoryOf(err error) ErrorCategory {
	var re *RiskError
	if errors.As(err, &re) {
		return re.Category
	}
	return ErrorCategoryState
}
