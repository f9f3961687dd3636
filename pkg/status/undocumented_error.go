package status

// UndocumentedErrorCode is the error code for errors which have not been
// assigned a code of their own.
const UndocumentedErrorCode = "9999"

var undocumentedErrorBuilder = NewErrorBuilder(UndocumentedErrorCode)

// undocumented wraps an error which does not have a documented code.
func undocumented(err error) Error {
	return undocumentedErrorBuilder.Wrap(err).Build()
}
