// Package errdefs defines the error taxonomy shared by every persistence
// backend and the engines built on top of them. Callers are expected to
// classify failures with the Is* helpers instead of matching on backend
// specific error types.
package errdefs

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// NotFoundError indicates that no record exists for the given identity or
// secondary lookup key.
type NotFoundError struct {
	Entity string
	Ident  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s could not be found", e.Entity, e.Ident)
}

// NewNotFound creates a NotFoundError for the given entity and identity.
func NewNotFound(entity string, ident string) error {
	return &NotFoundError{Entity: entity, Ident: ident}
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// AlreadyExistsError indicates a uniqueness violation. Fields carries the
// offending field names and values.
type AlreadyExistsError struct {
	Entity string
	Fields map[string]string
}

func (e *AlreadyExistsError) Error() string {
	pairs := make([]string, 0, len(e.Fields))
	for field, value := range e.Fields {
		pairs = append(pairs, fmt.Sprintf("%s=%s", field, value))
	}
	sort.Strings(pairs)
	return fmt.Sprintf("%s with %s already exists", e.Entity, strings.Join(pairs, ", "))
}

// NewAlreadyExists creates an AlreadyExistsError naming the conflicting
// field and its value. Additional field/value pairs may follow.
func NewAlreadyExists(entity string, fieldValues ...string) error {
	fields := make(map[string]string, len(fieldValues)/2)
	for i := 0; i+1 < len(fieldValues); i += 2 {
		fields[fieldValues[i]] = fieldValues[i+1]
	}
	return &AlreadyExistsError{Entity: entity, Fields: fields}
}

// IsAlreadyExists returns true if the error is an AlreadyExistsError.
func IsAlreadyExists(err error) bool {
	var target *AlreadyExistsError
	return errors.As(err, &target)
}

// InvalidIdentityError indicates that an identity token matches neither the
// integer surrogate key form nor the UUID form.
type InvalidIdentityError struct {
	Ident string
}

func (e *InvalidIdentityError) Error() string {
	return fmt.Sprintf("expected an integer id or uuid but received %q", e.Ident)
}

// NewInvalidIdentity creates an InvalidIdentityError for the given token.
func NewInvalidIdentity(ident string) error {
	return &InvalidIdentityError{Ident: ident}
}

// IsInvalidIdentity returns true if the error is an InvalidIdentityError.
func IsInvalidIdentity(err error) bool {
	var target *InvalidIdentityError
	return errors.As(err, &target)
}

// InvalidParameterError indicates an invalid parameter value, e.g. an
// unknown sort key or an attempt to mutate an immutable field.
type InvalidParameterError struct {
	Param  string
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid value for parameter %s: %s", e.Param, e.Reason)
}

// NewInvalidParameter creates an InvalidParameterError.
func NewInvalidParameter(param string, reason string) error {
	return &InvalidParameterError{Param: param, Reason: reason}
}

// IsInvalidParameter returns true if the error is an InvalidParameterError.
func IsInvalidParameter(err error) bool {
	var target *InvalidParameterError
	return errors.As(err, &target)
}

// ConflictError indicates that a secondary lookup expected to match at most
// one record matched several, i.e. the stored data itself is inconsistent.
type ConflictError struct {
	Entity string
	Field  string
	Value  string
	Count  int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("expected one %s with %s=%s but found %d", e.Entity, e.Field, e.Value, e.Count)
}

// NewConflict creates a ConflictError.
func NewConflict(entity string, field string, value string, count int) error {
	return &ConflictError{Entity: entity, Field: field, Value: value, Count: count}
}

// IsConflict returns true if the error is a ConflictError.
func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}
