package service

import "errors"

// Service errors
var (
	// ErrInvalidCheckIn wraps validation failures of a check-in submission
	ErrInvalidCheckIn = errors.New("invalid check-in")
	// ErrAlreadyCheckedOut is returned when checking out a record twice
	ErrAlreadyCheckedOut = errors.New("check-in already checked out")
	// ErrInvalidRoomUpdate wraps validation failures of an admin room edit
	ErrInvalidRoomUpdate = errors.New("invalid room update")
	// ErrInvalidUserName is returned when a support session is started without a name
	ErrInvalidUserName = errors.New("invalid user name")
	// ErrSessionNotFound is returned for unknown support sessions or calls
	ErrSessionNotFound = errors.New("support session not found")
)
