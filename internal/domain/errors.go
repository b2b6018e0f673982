package domain

import "errors"

var (
	// Input errors
	ErrInvalidAmount  = errors.New("invalid currency amount")
	ErrInvalidPeriod  = errors.New("invalid processing period")
	ErrEmptyStatement = errors.New("statement has no rows")

	// Lookup errors
	ErrStatementNotFound  = errors.New("statement not found")
	ErrStatementNotActive = errors.New("statement is not active")
	ErrRoleGroupNotFound  = errors.New("role group not found")

	// Allocation errors
	ErrAllocationImbalance = errors.New("role split does not sum to commission amount")
	ErrInvalidRuleTable    = errors.New("invalid rule table")

	// Orchestration errors
	ErrPeriodLocked        = errors.New("processing period is locked by another operation")
	ErrDuplicateSubmission = errors.New("statement was already submitted for this period")
)
