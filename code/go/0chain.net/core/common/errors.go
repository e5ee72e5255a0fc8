package common

import (
	"fmt"
	"net/http"
)

/*Error type for a new application error */
type Error struct {
	Code       string `json:"code,omitempty"`
	Msg        string `json:"msg"`
	StatusCode int    `json:"status_code,omitempty"`
}

func (err *Error) Error() string {
	return fmt.Sprintf("%s: %s", err.Code, err.Msg)
}

/*NewErrorfWithStatusCode - create a new error with format and the http status it maps to */
func NewErrorfWithStatusCode(statusCode int, errCode, format string, args ...interface{}) *Error {
	return &Error{StatusCode: statusCode, Code: errCode, Msg: fmt.Sprintf(format, args...)}
}

/*InvalidRequest - create error messages that are needed when validating request input */
func InvalidRequest(msg string) error {
	return NewErrorfWithStatusCode(http.StatusBadRequest, "invalid_request", "Invalid request (%v)", msg)
}
