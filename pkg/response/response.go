package response

import (
	"errors"
	"net/http"
)

type Error struct {
	Code int
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Is(target error) bool {
	var t *Error
	ok := errors.As(target, &t)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Err.Error() == t.Err.Error()
}

func NewError(code int, err string) error {
	return &Error{code, errors.New(err)}
}

// Wrap attaches a status code to an arbitrary error from a collaborator.
func Wrap(code int, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Err: err}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusCode returns the code of the first *Error in err's chain.
func StatusCode(err error) (int, bool) {
	var respErr *Error
	if errors.As(err, &respErr) {
		return respErr.Code, true
	}
	return 0, false
}

// Classify collaborator status codes into the three transport failure families.
func IsUnauthorized(code int) bool {
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}

func IsTimeout(code int) bool {
	return code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout
}
