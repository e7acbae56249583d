package service

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrFamilyNotFound  = errors.New("family not found")
	ErrIncorrectPIN    = errors.New("incorrect PIN")
	ErrNoFamily        = errors.New("user has no associated family")
	ErrProfileNotFound = errors.New("profile not found")
	ErrActorNotFound   = errors.New("actor not found")
)

// Provisioning stages reported by PersistenceError.Op
const (
	OpCreateFamily = "family"
	OpCreateActors = "actors"
	OpUpsertUser   = "user"
)

// PersistenceError reports a failed store write or read
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error (%s): %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// MalformedRequestError reports a request body that could not be decoded at all
type MalformedRequestError struct {
	Err error
}

func (e *MalformedRequestError) Error() string {
	return fmt.Sprintf("malformed request: %v", e.Err)
}

func (e *MalformedRequestError) Unwrap() error {
	return e.Err
}

func persistenceError(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}
