package odata

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/vyrodovalexey/ordcatalog/internal/catalog"
)

// Sentinel errors for request handling.
var (
	// ErrInvalidQuery is returned for unknown or malformed system query options.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrUnknownEntitySet is returned when the resource path names no entity set.
	ErrUnknownEntitySet = errors.New("unknown entity set")

	// ErrTenantRequired is returned when the tenant header is missing or blank.
	ErrTenantRequired = errors.New("tenant header required")
)

// DebugHint is appended to the message of resource-not-found errors.
const DebugHint = "Use odata-debug query parameter with value one of the following formats: json,html,download for more information"

// Error is a request error carrying the HTTP status to answer with.
type Error struct {
	Status  int
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d %s: %v", e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

func badRequest(format string, args ...any) *Error {
	return &Error{
		Status:  http.StatusBadRequest,
		Message: fmt.Sprintf(format, args...),
		Err:     ErrInvalidQuery,
	}
}

func unknownEntitySet(name string) *Error {
	return &Error{
		Status: http.StatusNotFound,
		Message: fmt.Sprintf(
			"Cannot find EntitySet, Singleton, ActionImport or FunctionImport with name '%s'. %s",
			name, DebugHint),
		Err: ErrUnknownEntitySet,
	}
}

// toError maps an error onto the status it is answered with. Store
// failures become 500 with a generic message.
func toError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	switch {
	case errors.Is(err, catalog.ErrTenantRequired):
		return &Error{Status: http.StatusBadRequest, Message: "missing tenant", Err: ErrTenantRequired}
	case errors.Is(err, catalog.ErrUnknownEntitySet):
		return &Error{Status: http.StatusNotFound, Message: err.Error() + ". " + DebugHint, Err: ErrUnknownEntitySet}
	case errors.Is(err, catalog.ErrNotFound):
		return &Error{Status: http.StatusNotFound, Message: "The requested resource does not exist.", Err: err}
	case errors.Is(err, catalog.ErrUnknownProperty),
		errors.Is(err, catalog.ErrUnknownNavigation),
		errors.Is(err, catalog.ErrInvalidFilter),
		errors.Is(err, catalog.ErrInvalidPaging):
		return &Error{Status: http.StatusBadRequest, Message: err.Error(), Err: errors.Join(ErrInvalidQuery, err)}
	}
	return &Error{Status: http.StatusInternalServerError, Message: http.StatusText(http.StatusInternalServerError), Err: err}
}
