package status

// InternalErrorCode is the error code for Internal.
const InternalErrorCode = "1000"

// InternalErrorBuilder allows creating complex internal errors.
var InternalErrorBuilder = NewErrorBuilder(InternalErrorCode).Sprint("internal error")

// InternalError represents conditions that should never occur, but that we
// check for so we can track that they are happening.
func InternalError(message string) Error {
	return InternalErrorBuilder.Sprint(message).Build()
}

// InternalErrorf returns an InternalError with a formatted message.
func InternalErrorf(format string, a ...interface{}) Error {
	return InternalErrorBuilder.Sprintf(format, a...).Build()
}

// InternalWrap wraps err as an InternalError.
func InternalWrap(err error) Error {
	return InternalErrorBuilder.Wrap(err).Build()
}
