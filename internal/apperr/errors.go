// Package apperr defines the error taxonomy shared by the gateway, the controller and the local service.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// Kind identifies a variant of Error.
type Kind int

const (
	KindUnknown Kind = iota
	KindTransport
	KindService
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindService:
		return "service"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// Error is implemented only by TransportError, ServiceError and ValidationError.
type Error interface {
	error
	Kind() Kind
	appError()
}

// TransportError means no response reached the client.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("%s: transport: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }
func (e *TransportError) Kind() Kind    { return KindTransport }
func (*TransportError) appError()       {}

// ServiceError is a non-2xx response.
type ServiceError struct {
	Status int
	Body   string
}

func (e *ServiceError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("service: status %d", e.Status)
	}
	return fmt.Sprintf("service: status %d: %s", e.Status, e.Body)
}
func (e *ServiceError) Kind() Kind { return KindService }
func (*ServiceError) appError()    {}

// NotFound reports whether the service answered 404.
func (e *ServiceError) NotFound() bool { return e.Status == 404 }

// ValidationError is a rejected creation payload. Fields maps a field name to its message.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + ": " + e.Fields[name]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
func (e *ValidationError) Kind() Kind { return KindValidation }
func (*ValidationError) appError()    {}

// NewValidation converts an ozzo validation error into a ValidationError.
// Errors that are not validation.Errors end up under the "" field.
func NewValidation(err error) *ValidationError {
	ve := &ValidationError{Fields: map[string]string{}}
	var errs validation.Errors
	if errors.As(err, &errs) {
		for name, fe := range errs {
			if fe != nil {
				ve.Fields[name] = fe.Error()
			}
		}
		return ve
	}
	if err != nil {
		ve.Fields[""] = err.Error()
	}
	return ve
}

// KindOf returns the Kind of the first Error in err's chain.
func KindOf(err error) Kind {
	var ae Error
	if errors.As(err, &ae) {
		return ae.Kind()
	}
	return KindUnknown
}
