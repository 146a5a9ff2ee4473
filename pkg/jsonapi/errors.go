package jsonapi

import (
	"fmt"
	"strconv"
)

// StatusCode returns the HTTP status code as an int.
func (e Error) StatusCode() int {
	code, _ := strconv.Atoi(e.Status)
	return code
}

func newError(status int, code, title, detail string) Error {
	return Error{
		Status: strconv.Itoa(status),
		Code:   code,
		Title:  title,
		Detail: detail,
	}
}

// ErrBadRequest creates a 400 Bad Request error.
func ErrBadRequest(detail string) Error {
	return newError(400, "bad_request", "Bad Request", detail)
}

// ErrUnauthorized creates a 401 Unauthorized error.
func ErrUnauthorized(detail string) Error {
	if detail == "" {
		detail = "Authentication required"
	}
	return newError(401, "unauthorized", "Unauthorized", detail)
}

// ErrForbidden creates a 403 Forbidden error.
func ErrForbidden(detail string) Error {
	if detail == "" {
		detail = "Access denied"
	}
	return newError(403, "forbidden", "Forbidden", detail)
}

// ErrNotFound creates a 404 Not Found error.
func ErrNotFound(resourceType string) Error {
	return newError(404, "not_found", "Not Found",
		fmt.Sprintf("The requested %s was not found", resourceType))
}

// ErrNotFoundWithID creates a 404 Not Found error with resource ID.
func ErrNotFoundWithID(resourceType, id string) Error {
	return newError(404, "not_found", "Not Found",
		fmt.Sprintf("The %s with ID '%s' was not found", resourceType, id))
}

// ErrConflict creates a 409 Conflict error.
func ErrConflict(detail string) Error {
	return newError(409, "conflict", "Conflict", detail)
}

// ErrValidation creates a 422 Unprocessable Entity error for a named field.
func ErrValidation(field, message string) Error {
	e := newError(422, "validation_error", "Validation Failed", message)
	e.Source = &ErrorSource{Pointer: "/data/attributes/" + field}
	return e
}

// ErrInvalidParameter creates a 400 error for a bad query parameter.
func ErrInvalidParameter(param, message string) Error {
	e := newError(400, "invalid_parameter", "Invalid Parameter", message)
	e.Source = &ErrorSource{Parameter: param}
	return e
}

// ErrDuplicateEvent creates a 409 error for a replayed event ID.
func ErrDuplicateEvent(eventID string) Error {
	return newError(409, "duplicate_event", "Duplicate Event",
		fmt.Sprintf("Event with ID '%s' has already been processed", eventID))
}

// ErrInternal creates a 500 Internal Server Error.
func ErrInternal(detail string) Error {
	if detail == "" {
		detail = "An internal error occurred"
	}
	return newError(500, "internal_error", "Internal Server Error", detail)
}
