package jsonapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/artpar/cmskit/domain/field"
)

// ErrorBuilder assembles an Error.
type ErrorBuilder struct {
	e Error
}

// NewError starts an error with an HTTP status and a machine-readable code.
func NewError(status int, code, title string) *ErrorBuilder {
	return &ErrorBuilder{e: Error{Status: strconv.Itoa(status), Code: code, Title: title}}
}

// Detail sets the human-readable explanation.
func (b *ErrorBuilder) Detail(detail string) *ErrorBuilder {
	b.e.Detail = detail
	return b
}

// Detailf sets a formatted explanation.
func (b *ErrorBuilder) Detailf(format string, args ...any) *ErrorBuilder {
	b.e.Detail = fmt.Sprintf(format, args...)
	return b
}

// Pointer locates the error in the request body. An empty pointer is ignored.
func (b *ErrorBuilder) Pointer(pointer string) *ErrorBuilder {
	if pointer != "" {
		b.source().Pointer = pointer
	}
	return b
}

// Parameter names the query parameter that caused the error.
func (b *ErrorBuilder) Parameter(name string) *ErrorBuilder {
	b.source().Parameter = name
	return b
}

// Header names the request header that caused the error.
func (b *ErrorBuilder) Header(name string) *ErrorBuilder {
	b.source().Header = name
	return b
}

// Meta sets one meta entry.
func (b *ErrorBuilder) Meta(key string, value any) *ErrorBuilder {
	if b.e.Meta == nil {
		b.e.Meta = Meta{}
	}
	b.e.Meta[key] = value
	return b
}

// Build returns the error.
func (b *ErrorBuilder) Build() Error {
	return b.e
}

func (b *ErrorBuilder) source() *ErrorSource {
	if b.e.Source == nil {
		b.e.Source = &ErrorSource{}
	}
	return b.e.Source
}

// ErrBadRequest is returned for malformed requests.
func ErrBadRequest(detail string) Error {
	return NewError(http.StatusBadRequest, "bad_request", "Bad Request").Detail(detail).Build()
}

// ErrBadParameter is returned for an invalid query parameter.
func ErrBadParameter(name, detail string) Error {
	return NewError(http.StatusBadRequest, "bad_request", "Bad Request").Detail(detail).Parameter(name).Build()
}

// ErrUnauthenticated is returned when a required identity header is missing.
func ErrUnauthenticated(header string) Error {
	return NewError(http.StatusUnauthorized, "unauthenticated", "Unauthenticated").
		Detail("Missing " + header + " header").Header(header).Build()
}

// ErrNotFound is returned for unknown resources and routes.
func ErrNotFound(detail string) Error {
	return NewError(http.StatusNotFound, "not_found", "Not Found").Detail(detail).Build()
}

// ErrMethodNotAllowed is returned for a known route with the wrong method.
func ErrMethodNotAllowed(method string) Error {
	return NewError(http.StatusMethodNotAllowed, "method_not_allowed", "Method Not Allowed").
		Detailf("Method %s is not allowed on this route", method).Build()
}

// ErrTooLarge is returned when a request body exceeds its limit.
func ErrTooLarge(limit int64) Error {
	return NewError(http.StatusRequestEntityTooLarge, "too_large", "Payload Too Large").
		Detailf("Uploads are limited to %d bytes", limit).Build()
}

// ErrInternal is returned for unexpected failures. The detail stays empty
// so internals do not leak.
func ErrInternal() Error {
	return NewError(http.StatusInternalServerError, "internal_error", "Internal Server Error").Build()
}

// ValidationErrors converts a failed result to one error per issue, each
// pointing at the offending member of the request body. Warnings are
// attached to the first error's meta.
func ValidationErrors(res field.Result) []Error {
	out := make([]Error, 0, len(res.Issues))
	for _, iss := range res.Issues {
		out = append(out, IssueError(iss))
	}
	if len(out) == 0 {
		out = append(out, NewError(http.StatusUnprocessableEntity, "validation_failed", "Validation Failed").Build())
	}
	if len(res.Warnings) > 0 {
		if out[0].Meta == nil {
			out[0].Meta = Meta{}
		}
		out[0].Meta["warnings"] = res.Warnings
	}
	return out
}

// IssueError converts one validation issue.
func IssueError(iss field.Issue) Error {
	return NewError(http.StatusUnprocessableEntity, "validation_failed", "Validation Failed").
		Detail(iss.Message).
		Pointer(IssuePointer(iss.Path)).
		Meta("issue", iss.Code).
		Build()
}

// IssuePointer turns an issue path such as "customFields[0].slug" into the
// JSON Pointer "/customFields/0/slug". An empty path yields "".
func IssuePointer(path string) string {
	if path == "" {
		return ""
	}
	path = strings.NewReplacer("[", ".", "]", "").Replace(path)
	var b strings.Builder
	for _, tok := range strings.Split(path, ".") {
		if tok == "" {
			continue
		}
		b.WriteByte('/')
		b.WriteString(strings.NewReplacer("~", "~0", "/", "~1").Replace(tok))
	}
	return b.String()
}
