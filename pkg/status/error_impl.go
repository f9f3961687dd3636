package status

import (
	"sort"
	"strings"

	"kpt.dev/appsync/pkg/core"
)

type baseErrorImpl struct {
	code string
}

var _ Error = baseErrorImpl{}

// Error implements error.
func (e baseErrorImpl) Error() string {
	return format(e)
}

// Code implements Error.
func (e baseErrorImpl) Code() string {
	return e.code
}

// Body implements Error.
func (e baseErrorImpl) Body() string {
	return ""
}

// Errors implements MultiError.
func (e baseErrorImpl) Errors() []Error {
	return []Error{e}
}

// Cause implements Error.
func (e baseErrorImpl) Cause() error {
	return nil
}

type messageErrorImpl struct {
	underlying Error
	message    string
}

var _ Error = messageErrorImpl{}

// Error implements error.
func (m messageErrorImpl) Error() string {
	return format(m)
}

// Code implements Error.
func (m messageErrorImpl) Code() string {
	return m.underlying.Code()
}

// Body implements Error.
func (m messageErrorImpl) Body() string {
	return formatBody(m.message, ": ", m.underlying.Body())
}

// Errors implements MultiError.
func (m messageErrorImpl) Errors() []Error {
	return []Error{m}
}

// Cause implements Error.
func (m messageErrorImpl) Cause() error {
	return m.underlying.Cause()
}

type wrappedErrorImpl struct {
	underlying Error
	wrapped    error
}

var _ Error = wrappedErrorImpl{}

// Error implements error.
func (w wrappedErrorImpl) Error() string {
	return format(w)
}

// Code implements Error.
func (w wrappedErrorImpl) Code() string {
	return w.underlying.Code()
}

// Body implements Error.
func (w wrappedErrorImpl) Body() string {
	return formatBody(w.underlying.Body(), ": ", w.wrapped.Error())
}

// Errors implements MultiError.
func (w wrappedErrorImpl) Errors() []Error {
	return []Error{w}
}

// Cause implements Error.
func (w wrappedErrorImpl) Cause() error {
	return w.wrapped
}

// Unwrap lets errors.Is and errors.As see the wrapped error.
func (w wrappedErrorImpl) Unwrap() error {
	return w.wrapped
}

// ResourceError defines a status error related to one or more resources.
type ResourceError interface {
	Error
	Resources() []core.ID
}

type resourceErrorImpl struct {
	underlying Error
	resources  []core.ID
}

var _ ResourceError = resourceErrorImpl{}

// Error implements error.
func (r resourceErrorImpl) Error() string {
	return format(r)
}

// Code implements Error.
func (r resourceErrorImpl) Code() string {
	return r.underlying.Code()
}

// Body implements Error.
func (r resourceErrorImpl) Body() string {
	return formatBody(r.underlying.Body(), "\n\n", formatResources(r.resources))
}

// Errors implements MultiError.
func (r resourceErrorImpl) Errors() []Error {
	return []Error{r}
}

// Cause implements Error.
func (r resourceErrorImpl) Cause() error {
	return r.underlying.Cause()
}

// Unwrap lets errors.Is and errors.As see the wrapped error.
func (r resourceErrorImpl) Unwrap() error {
	return r.underlying.Cause()
}

// Resources implements ResourceError.
func (r resourceErrorImpl) Resources() []core.ID {
	return r.resources
}

// formatResources returns a formatted string containing all Resources in the
// ResourceError.
func formatResources(resources []core.ID) string {
	resStrs := make([]string, len(resources))
	for i, res := range resources {
		resStrs[i] = res.String()
	}
	// Sort to ensure deterministic resource printing order.
	sort.Strings(resStrs)
	return "Affected resources: " + strings.Join(resStrs, "; ")
}
