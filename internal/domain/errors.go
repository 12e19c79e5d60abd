package domain

import "errors"

var (
	// ErrValidation covers empty or mismatched form fields.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicateUser is returned when a name is already registered.
	ErrDuplicateUser = errors.New("username already exists")
	// ErrUnknownUser is returned when a named user does not exist.
	ErrUnknownUser = errors.New("username does not exist")
	// ErrRegistrationLimitReached is returned once the user cap is met.
	ErrRegistrationLimitReached = errors.New("registration limit reached")
	// ErrStorageUnavailable wraps failures of the underlying record medium.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrInvalidAnswerState is returned when submit/advance is called out of turn.
	ErrInvalidAnswerState = errors.New("action not allowed in current game state")
	// ErrInvalidCredentials is the single login failure for every cause.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrForbidden covers admin-only actions and self-demotion/self-delete.
	ErrForbidden = errors.New("forbidden")
	// ErrSessionNotFound is returned when a player session is unknown or expired.
	ErrSessionNotFound = errors.New("session not found")
	// ErrGameNotStarted is returned when a game action arrives before start.
	ErrGameNotStarted = errors.New("game not started")
	// ErrNotFound indicates an admin position or id does not exist.
	ErrNotFound = errors.New("record not found")
)
