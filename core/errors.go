package core

import "fmt"

var (
	// ErrConfigurationNotFound is returned when no configuration record exists for an id.
	ErrConfigurationNotFound = fmt.Errorf("configuration not found")
	// ErrPermissionDenied is returned when the caller does not own a record.
	ErrPermissionDenied = fmt.Errorf("permission denied")
	// ErrNotApproved is returned when executing a tool or skill that is not approved.
	ErrNotApproved = fmt.Errorf("not approved")
	// ErrInactiveUser is returned for disabled users.
	ErrInactiveUser = fmt.Errorf("inactive user")
	// ErrAgencyNotLoaded is returned when a turn targets an agency that is not cached.
	ErrAgencyNotLoaded = fmt.Errorf("agency not loaded")
	// ErrTurnInProgress is returned when a turn is already running for the same thread.
	ErrTurnInProgress = fmt.Errorf("turn already in progress")
	// ErrTurnNotFound is returned when cancelling a turn that is not running.
	ErrTurnNotFound = fmt.Errorf("turn not found")
	// ErrInvalidInput is returned for malformed requests.
	ErrInvalidInput = fmt.Errorf("invalid input")
)

// GraphConstructionError reports that an agency configuration could not be
// turned into an executable graph.
type GraphConstructionError struct {
	AgencyID string
	Reason   string
	Err      error
}

// NewGraphConstructionError creates a GraphConstructionError.
func NewGraphConstructionError(agencyID, reason string, err error) *GraphConstructionError {
	return &GraphConstructionError{AgencyID: agencyID, Reason: reason, Err: err}
}

// Error implements the error interface.
func (e *GraphConstructionError) Error() string {
	msg := "graph construction failed"
	if e.AgencyID != "" {
		msg += " for agency " + e.AgencyID
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *GraphConstructionError) Unwrap() error { return e.Err }
