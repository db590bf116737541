package errcodes

import "fmt"

type Error struct {
	Message string
	Code    string
}

func (err *Error) Error() string {
	return err.Message
}

func (err *Error) As(target interface{}) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	te.Message = err.Message
	te.Code = err.Code
	return true
}

func (err *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return te.Message == err.Message &&
		te.Code == err.Code
}

// NotFound returns an error with a message indicating the given resource
// could not be found.
func NotFound(resource string) error {
	return &Error{
		resource + " not found.",
		"not_found",
	}
}

// InvalidArgument is returned when a caller hands a store or service an
// argument it cannot act on, such as a delete without any filter.
func InvalidArgument(msg string) error {
	return &Error{
		msg,
		"invalid_argument",
	}
}

// UnknownEvent is returned when a queued event payload names an event type
// that no longer exists.
func UnknownEvent(name string) error {
	return &Error{
		fmt.Sprintf("Unknown event %q", name),
		"unknown_event",
	}
}
