package domain

import "errors"

// Kind is the stable category of a failure.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindPermission  Kind = "permission"
	KindConflict    Kind = "conflict"
	KindNotFound    Kind = "not_found"
	KindUnavailable Kind = "unavailable"
	KindTransient   Kind = "transient"
)

// Error is a typed failure carrying a machine-readable code.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels by code so wrapped copies still compare equal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

var (
	// ErrInvalidID is returned for malformed session or user ids.
	ErrInvalidID = &Error{Kind: KindValidation, Code: "INVALID_ID", Message: "invalid identifier"}
	// ErrSelfTarget is returned when a user invites themselves.
	ErrSelfTarget = &Error{Kind: KindValidation, Code: "SELF_TARGET", Message: "cannot start a coop session with yourself"}
	// ErrCountOutOfRange is returned for sample counts outside [5, 50].
	ErrCountOutOfRange = &Error{Kind: KindValidation, Code: "COUNT_OUT_OF_RANGE", Message: "question count must be between 5 and 50"}
	// ErrInvalidSelection is returned for option indexes outside [0, optionCount).
	ErrInvalidSelection = &Error{Kind: KindValidation, Code: "INVALID_SELECTION", Message: "selected option index out of range"}
	// ErrInvalidDuration is returned for negative or non-finite client durations.
	ErrInvalidDuration = &Error{Kind: KindValidation, Code: "INVALID_DURATION", Message: "duration must be a non-negative number"}
	ErrInvalidCorrectionMode = &Error{Kind: KindValidation, Code: "INVALID_CORRECTION_MODE", Message: "unknown correction mode"}
	ErrInvalidLevel          = &Error{Kind: KindValidation, Code: "INVALID_LEVEL", Message: "unknown level"}

	// ErrNotFriends is returned when the target is not an accepted friend.
	ErrNotFriends = &Error{Kind: KindPermission, Code: "NOT_FRIENDS", Message: "users are not friends"}
	// ErrNotParticipant is returned when the actor is not one of the two participants.
	ErrNotParticipant = &Error{Kind: KindPermission, Code: "NOT_PARTICIPANT", Message: "not a participant of this session"}
	// ErrNotInitiator is returned when a non-initiator tries an initiator-only change.
	ErrNotInitiator = &Error{Kind: KindPermission, Code: "NOT_INITIATOR", Message: "only the initiator can change filters"}

	// ErrAlreadyActiveSession is returned when either user already has a live session.
	ErrAlreadyActiveSession = &Error{Kind: KindConflict, Code: "ALREADY_ACTIVE_SESSION", Message: "a coop session is already active"}
	// ErrAlreadyStarted is returned for pre-launch changes on a launched session.
	ErrAlreadyStarted = &Error{Kind: KindConflict, Code: "ALREADY_STARTED", Message: "session already started"}
	// ErrSessionClosed is returned for changes on a cancelled or expired session.
	ErrSessionClosed = &Error{Kind: KindConflict, Code: "SESSION_CLOSED", Message: "session is no longer active"}
	// ErrNotAllReady is returned when launch is attempted before both players are ready.
	ErrNotAllReady = &Error{Kind: KindConflict, Code: "NOT_ALL_READY", Message: "both participants must be ready"}
	// ErrNoQuestionsToGrade is returned when a result arrives for a session without questions.
	ErrNoQuestionsToGrade = &Error{Kind: KindConflict, Code: "NO_QUESTIONS_TO_GRADE", Message: "session has no questions to grade"}
	// ErrAlreadySubmittedOrInactive is returned when the submission guard fails.
	ErrAlreadySubmittedOrInactive = &Error{Kind: KindConflict, Code: "ALREADY_SUBMITTED_OR_INACTIVE", Message: "result already submitted or session inactive"}

	// ErrSessionNotFound is returned when no session exists for the id.
	ErrSessionNotFound = &Error{Kind: KindNotFound, Code: "SESSION_NOT_FOUND", Message: "coop session not found"}
	// ErrUserNotFound is returned by user directories for unknown ids.
	ErrUserNotFound = &Error{Kind: KindNotFound, Code: "USER_NOT_FOUND", Message: "user not found"}

	// ErrNoQuestionsAvailable is returned when no question matches the filters.
	ErrNoQuestionsAvailable = &Error{Kind: KindUnavailable, Code: "NO_QUESTIONS_AVAILABLE", Message: "no questions match the selected filters"}

	errStorage = &Error{Kind: KindTransient, Code: "STORAGE_UNAVAILABLE", Message: "storage temporarily unavailable"}
)

// ErrStorageUnavailable is the sentinel matched by Transient errors.
var ErrStorageUnavailable error = errStorage

// Transient wraps a storage failure so callers can retry.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	return &Error{Kind: errStorage.Kind, Code: errStorage.Code, Message: errStorage.Message, Err: err}
}

// KindOf classifies err. Unknown errors are treated as transient.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindTransient
}

// CodeOf returns the stable code of err.
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return errStorage.Code
}
