package lifecycle

// Error is an application-layer error that can be mapped to an HTTP response.
// Validation errors are raised before any write is attempted, so a caller
// receiving one can retry the operation unchanged.
type Error struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

func validationError(message string, details map[string]any) *Error {
	return &Error{
		Status:  422,
		Code:    "VALIDATION_ERROR",
		Message: message,
		Details: details,
	}
}

func notFoundError() *Error {
	return &Error{
		Status:  404,
		Code:    "RECORD_NOT_FOUND",
		Message: "No record exists with the given id in the requested partition.",
	}
}
