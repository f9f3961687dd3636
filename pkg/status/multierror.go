package status

import (
	"fmt"
	"sort"
	"strings"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

// MultiError represents a collection of errors.
type MultiError interface {
	error
	Errors() []Error
}

// Append adds one or more errors to an existing MultiError.
// If m, err, and errs are nil, returns nil.
//
// Requires at least one error to be passed explicitly to prevent developer
// mistakes. There is no valid reason to call Append with exactly one argument.
//
// If err is a MultiError, appends all contained errors.
func Append(m MultiError, err error, errs ...error) MultiError {
	result := &multiError{}

	if m != nil {
		result.errs = append(result.errs, m.Errors()...)
	}

	result.add(err)
	for _, e := range errs {
		result.add(e)
	}

	if len(result.errs) == 0 {
		return nil
	}
	return result
}

var _ MultiError = (*multiError)(nil)

type multiError struct {
	errs []Error
}

// add adds err to the builder. If the error is known to contain an array of
// errors, adds all of the contained errors. If err is nil, does nothing.
func (m *multiError) add(err error) {
	switch e := err.(type) {
	case nil:
		// No error to add if nil.
	case Error:
		m.errs = append(m.errs, e)
	case MultiError:
		if e == nil {
			return
		}
		m.errs = append(m.errs, e.Errors()...)
	case utilerrors.Aggregate:
		for _, er := range e.Errors() {
			m.add(er)
		}
	default:
		m.errs = append(m.errs, undocumented(err))
	}
}

// Error implements error.
func (m *multiError) Error() string {
	return FormatError(true, m)
}

// Errors returns a list of the contained errors.
func (m *multiError) Errors() []Error {
	if m == nil {
		return nil
	}
	return m.errs
}

// FormatError formats the multiple errors using multiline argument.
// When multiline is true, errors are formatted and joined using new lines.
// Else, multiple errors are joined using a single line.
func FormatError(multiline bool, e error) string {
	mErrs := toMultiError(e).Errors()
	if len(mErrs) == 0 {
		return ""
	}

	var msgs []string
	for _, err := range mErrs {
		msgs = append(msgs, err.Error())
	}
	sort.Strings(msgs)

	// Since errors are sorted by message we can eliminate duplicates by comparing
	// the current error message with the previous.
	var uniqueErrors []string
	for idx, err := range msgs {
		if idx == 0 || msgs[idx-1] != err {
			uniqueErrors = append(uniqueErrors, err)
		}
	}

	allErrors := []string{fmt.Sprintf("%d error(s)", len(uniqueErrors))}
	for idx, err := range uniqueErrors {
		allErrors = append(allErrors, fmt.Sprintf("[%d] %v", idx+1, err))
	}
	if !multiline {
		for idx, err := range allErrors {
			allErrors[idx] = strings.ReplaceAll(err, "\n", " ")
		}
		return strings.Join(allErrors, " ")
	}
	return strings.Join(allErrors, "\n")
}

// FormatSingleLine formats e on a single line, for logs.
func FormatSingleLine(e error) string {
	return FormatError(false, e)
}

// DeepEqual returns true if the two MultiErrors contain the same messages.
func DeepEqual(left, right MultiError) bool {
	return FormatError(false, left) == FormatError(false, right)
}

// toMultiError never returns nil, so callers may range over Errors() of
// any error including nil.
func toMultiError(e error) MultiError {
	if e == nil {
		return &multiError{}
	}
	if me, ok := e.(MultiError); ok && me != nil {
		return me
	}
	if me := Append(nil, e); me != nil {
		return me
	}
	return &multiError{}
}
