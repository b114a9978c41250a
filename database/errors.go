package database

import "errors"

// Error taxonomy surfaced to handlers. Handlers map these to HTTP statuses;
// anything else is an internal persistence failure.
var (
	ErrReportNotFound = errors.New("report not found")
	ErrTruckNotFound  = errors.New("truck not found")
	ErrUserNotFound   = errors.New("user not found")
	ErrAdminNotFound  = errors.New("admin not found")

	// ErrTruckBusy means the truck is bound to a different unresolved report.
	ErrTruckBusy = errors.New("truck already assigned to an active report")

	// ErrReportClosed means the report is Resolved or Rejected and cannot be
	// dispatched or transitioned further.
	ErrReportClosed = errors.New("report already closed")

	// ErrIllegalTransition means the requested status change is not in the
	// transition table.
	ErrIllegalTransition = errors.New("illegal status transition")

	// ErrValidation means the request was rejected before any persistence
	// happened.
	ErrValidation = errors.New("validation failed")

	ErrDuplicateEmail = errors.New("email already registered")
	ErrDuplicateTruck = errors.New("truck already exists")

	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUpstream means a collaborator service (vision, geocoder) did not
	// answer. The request itself was well-formed.
	ErrUpstream = errors.New("upstream service unavailable")
)
