// Package failure defines the error taxonomy shared by the storefront client:
// local validation errors, authorization failures, transient server errors,
// explicit server rejections, and transport failures.
//
// Every error is recoverable at the UI boundary; Message renders the text the
// user sees.
package failure

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
)

var (
	// ErrEmptyCart is returned when an order is attempted with a zero cart total.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrNotLoggedIn is returned when an operation requires a session and none is present.
	ErrNotLoggedIn = errors.New("not logged in")
	// ErrUnauthorized is returned when the backend rejects the session token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTransient is returned when the backend signals it is temporarily unavailable.
	ErrTransient = errors.New("service temporarily unavailable")
)

// FieldError describes a single invalid input field.
type FieldError struct {
	Field string
	Rule  string
}

// ValidationError lists the fields that failed local validation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("%s (%s)", f.Field, f.Rule)
	}
	return "invalid input: " + strings.Join(parts, ", ")
}

// Has reports whether field failed validation.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// RejectionError is an explicit error payload returned by the backend.
type RejectionError struct {
	Status  int
	Message string
}

func (e *RejectionError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request rejected with status %d", e.Status)
	}
	return fmt.Sprintf("request rejected with status %d: %s", e.Status, e.Message)
}

// NetworkError is a transport-level failure where no response was received.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Validate runs struct validation and converts validator errors into a
// *ValidationError keyed by the fields' JSON names.
func Validate(v *validator.Validate, s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrap(err, "validate")
	}
	out := &ValidationError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Rule: fe.Tag()})
	}
	sort.Slice(out.Fields, func(i, j int) bool { return out.Fields[i].Field < out.Fields[j].Field })
	return out
}

// NewValidator returns a validator that reports fields by their json tag name.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)
	return v
}

// Message renders err as the text shown to the user.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var (
		vErr   *ValidationError
		rejErr *RejectionError
	)
	switch {
	case errors.Is(err, ErrNotLoggedIn):
		return "Please log in to continue."
	case errors.Is(err, ErrEmptyCart):
		return "Your cart is empty. Please add items to your cart."
	case errors.Is(err, ErrUnauthorized):
		return "Your session has expired. Please log in again."
	case errors.Is(err, ErrTransient):
		return "The service is waking up. Please try again in a moment."
	case errors.As(err, &vErr):
		names := make([]string, len(vErr.Fields))
		for i, f := range vErr.Fields {
			names[i] = f.Field
		}
		return "Please check the following fields: " + strings.Join(names, ", ") + "."
	case errors.As(err, &rejErr):
		if rejErr.Message != "" {
			return rejErr.Message
		}
		return "Try again later."
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "The request was cancelled."
	default:
		return "Something went wrong. Try again later."
	}
}

func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	default:
		return name
	}
}
