package domain

import "errors"

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrPolicyNotFound    = errors.New("policy not found")
	ErrInstanceNotFound  = errors.New("action instance not found")
	ErrDuplicateInstance = errors.New("action instance already exists")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidWindow     = errors.New("invalid action window")
	ErrCycleInProgress   = errors.New("cycle already in progress for user")
	ErrForbidden         = errors.New("access forbidden")
)
