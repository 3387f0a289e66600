package employee

import "errors"

var (
	// ErrUnauthenticated indicates that no actor identity was supplied.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrEmployeeNotFound indicates the actor has no employee profile.
	ErrEmployeeNotFound = errors.New("employee not found")
)
