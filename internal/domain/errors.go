// Package domain defines core types, interfaces, and errors for the metric engine.
package domain

import "fmt"

// ValidationError indicates invalid input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NotFoundError indicates a catalog entity was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// UnresolvableJoinError indicates no join path exists between two tables.
type UnresolvableJoinError struct {
	From    string
	To      string
	Message string
}

func (e *UnresolvableJoinError) Error() string { return e.Message }

// CircularDependencyError indicates a metric depends transitively on itself.
type CircularDependencyError struct {
	Key     string
	Message string
}

func (e *CircularDependencyError) Error() string { return e.Message }

// CrossConnectionError indicates metrics span connections the chosen plan
// cannot reconcile.
type CrossConnectionError struct {
	ConnectionA string
	ConnectionB string
	Message     string
}

func (e *CrossConnectionError) Error() string { return e.Message }

// UnsupportedRelationError indicates a relation kind has no join rule.
type UnsupportedRelationError struct {
	Kind    string
	Message string
}

func (e *UnsupportedRelationError) Error() string { return e.Message }

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrUnresolvableJoin creates an UnresolvableJoinError naming both tables.
func ErrUnresolvableJoin(from, to string) *UnresolvableJoinError {
	return &UnresolvableJoinError{
		From:    from,
		To:      to,
		Message: fmt.Sprintf("no join path from table %q to table %q", from, to),
	}
}

// ErrCircularDependency creates a CircularDependencyError naming the metric key.
func ErrCircularDependency(key string) *CircularDependencyError {
	return &CircularDependencyError{
		Key:     key,
		Message: fmt.Sprintf("metric %q is part of a circular dependency chain", key),
	}
}

// ErrCrossConnection creates a CrossConnectionError naming both connections.
func ErrCrossConnection(a, b string) *CrossConnectionError {
	return &CrossConnectionError{
		ConnectionA: a,
		ConnectionB: b,
		Message:     fmt.Sprintf("connections %q and %q cannot be joined natively", a, b),
	}
}

// ErrUnsupportedRelation creates an UnsupportedRelationError for a relation kind.
func ErrUnsupportedRelation(kind string) *UnsupportedRelationError {
	return &UnsupportedRelationError{
		Kind:    kind,
		Message: fmt.Sprintf("relation kind %q has no join rule", kind),
	}
}
