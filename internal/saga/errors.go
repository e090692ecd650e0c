// internal/saga/errors.go
package saga

import "fmt"

// The provisioning error taxonomy. The API layer maps these to status
// codes and environment-gated messages; everything else wraps and
// escalates to the orchestrator, which alone decides on compensation.

// ValidationError rejects malformed input at S0, before any side effect.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// ConflictError rejects an already-registered slug at S1. The unique
// constraint fired, so no physical resource was touched.
type ConflictError struct {
	Slug string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("slug %q is already in use", e.Slug)
}

// ProvisioningError is a failure at S2 or S3 after which compensation
// fully succeeded. The system is back to the never-attempted state.
type ProvisioningError struct {
	Step  string
	Cause error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning failed at %s: %v", e.Step, e.Cause)
}

func (e *ProvisioningError) Unwrap() error { return e.Cause }

// CompensationError is the partial-cleanup outcome: the saga failed and
// undoing it failed too. State is inconsistent and an operator must
// intervene; it is never conflated with an ordinary ProvisioningError.
type CompensationError struct {
	Step              string
	Cause             error
	CompensationCause error
	// Orphans names the resources left behind, for the operator.
	Orphans []string
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("provisioning failed at %s (%v) and cleanup also failed: %v",
		e.Step, e.Cause, e.CompensationCause)
}

func (e *CompensationError) Unwrap() error { return e.Cause }

// DeprovisionError is a physical drop failure during deletion. The
// registry record is deliberately kept so the database is never
// forgotten while it exists; the operation is safe to retry.
type DeprovisionError struct {
	Cause error
}

func (e *DeprovisionError) Error() string {
	return fmt.Sprintf("deprovisioning failed: %v", e.Cause)
}

func (e *DeprovisionError) Unwrap() error { return e.Cause }
