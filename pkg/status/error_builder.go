package status

import (
	"fmt"

	"kpt.dev/appsync/pkg/core"
)

// ErrorBuilders handle the oft-duplicated logic we use for generating error
// messages.
//
// Each Error has a unique code, "ASE" followed by four digits. Errors with the
// same code share a strong unifying feature (e.g. they result from a malformed
// manifest), but may include variations. Construct a new ErrorBuilder by
// passing a code to NewErrorBuilder. If the code is not unique, the code
// panics when packages are loaded.
//
//   var myErrorBuilder = NewErrorBuilder("1234").Sprint("a coloring problem")
//
// Libraries should keep ErrorBuilders package private and instead provide
// functions that tell callers the correct number and position of formatting
// arguments.
//
//   func MyError(color string, count int) Error {
//     return myErrorBuilder.Sprintf("problem with color %q when count is %d", color, count).Build()
//   }
type ErrorBuilder interface {
	// Build returns the constructed Error.
	Build() Error

	// BuildWithResources adds the passed resources to the error in a structured
	// way. If the set of passed resources is empty, returns nil.
	BuildWithResources(resources ...core.ID) ResourceError

	// Sprint wraps the ErrorBuilder with a message, and returns the result.
	Sprint(message string) ErrorBuilder

	// Sprintf wraps the ErrorBuilder with a formatted message, and returns the
	// result.
	Sprintf(format string, a ...interface{}) ErrorBuilder

	// Wrap wraps toWrap with the ErrorBuilder. The resulting Error returns
	// toWrap if Cause() is called. If toWrap is nil, the final Error returned by
	// Build() is nil.
	Wrap(toWrap error) ErrorBuilder
}

// NewErrorBuilder returns an ErrorBuilder that can be used to generate errors.
// Registers this call with the passed unique code. Panics if there is an error
// code collision.
func NewErrorBuilder(code string) ErrorBuilder {
	register(code)
	return errorBuilder{error: baseErrorImpl{code: code}}
}

type errorBuilder struct {
	error Error
}

// Build implements ErrorBuilder.
func (eb errorBuilder) Build() Error {
	return eb.error
}

// BuildWithResources implements ErrorBuilder.
func (eb errorBuilder) BuildWithResources(resources ...core.ID) ResourceError {
	if len(resources) == 0 {
		reportMisuse("BuildWithResources called without resources")
		return nil
	}
	return resourceErrorImpl{
		underlying: eb.error,
		resources:  resources,
	}
}

// Sprint implements ErrorBuilder.
func (eb errorBuilder) Sprint(message string) ErrorBuilder {
	return errorBuilder{error: messageErrorImpl{
		underlying: eb.error,
		message:    message,
	}}
}

// Sprintf implements ErrorBuilder.
func (eb errorBuilder) Sprintf(format string, a ...interface{}) ErrorBuilder {
	return eb.Sprint(fmt.Sprintf(format, a...))
}

// Wrap implements ErrorBuilder.
func (eb errorBuilder) Wrap(toWrap error) ErrorBuilder {
	if toWrap == nil {
		return nilErrorBuilder{}
	}
	return errorBuilder{error: wrappedErrorImpl{
		underlying: eb.error,
		wrapped:    toWrap,
	}}
}

// nilErrorBuilder represents an ErrorBuilder that will return nil when built.
type nilErrorBuilder struct{}

// Build implements ErrorBuilder.
func (n nilErrorBuilder) Build() Error {
	return nil
}

// BuildWithResources implements ErrorBuilder.
func (n nilErrorBuilder) BuildWithResources(...core.ID) ResourceError {
	return nil
}

// Sprint implements ErrorBuilder.
func (n nilErrorBuilder) Sprint(string) ErrorBuilder {
	return n
}

// Sprintf implements ErrorBuilder.
func (n nilErrorBuilder) Sprintf(string, ...interface{}) ErrorBuilder {
	return n
}

// Wrap implements ErrorBuilder.
func (n nilErrorBuilder) Wrap(error) ErrorBuilder {
	return n
}
