package status

import (
	"fmt"
	"strings"
)

// codePrefix precedes every error code in user-facing messages.
const codePrefix = "ASE"

// Error defines a structured appsync error. Every Error has a unique, stable
// code so that users (and machines) can tell kinds of failures apart.
type Error interface {
	MultiError
	// Code is the unique identifier of the kind of error.
	Code() string
	// Body is the error message without the code prefix.
	Body() string
	// Cause is the underlying error, if any.
	Cause() error
}

// format formats error messages consistently.
func format(err Error) string {
	return fmt.Sprintf("%s%s: %s", codePrefix, err.Code(), err.Body())
}

// formatBody joins the non-empty parts of an error body with sep.
func formatBody(prefix, sep, suffix string) string {
	switch {
	case prefix == "":
		return suffix
	case suffix == "":
		return prefix
	default:
		return prefix + sep + suffix
	}
}

// HasCode returns true if err, or any error contained in it, has the passed
// code.
func HasCode(err error, code string) bool {
	for _, e := range toMultiError(err).Errors() {
		if e.Code() == code {
			return true
		}
	}
	return false
}

// Filter returns the errors in err with the passed code.
func Filter(err error, code string) MultiError {
	var result MultiError
	for _, e := range toMultiError(err).Errors() {
		if e.Code() == code {
			result = Append(result, e)
		}
	}
	return result
}

// Messages returns the formatted message of every contained error, suitable
// for surfacing in a status record.
func Messages(err error) []string {
	var msgs []string
	for _, e := range toMultiError(err).Errors() {
		msgs = append(msgs, strings.TrimSpace(e.Error()))
	}
	return msgs
}
