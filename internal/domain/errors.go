// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates the write collides with existing state, such as a
// duplicate business name.
var ErrConflict = errors.New("conflict")

// ErrValidation indicates the caller supplied invalid input. The HTTP layer
// maps it to 400 and strips the sentinel suffix from the message.
var ErrValidation = errors.New("validation failed")
