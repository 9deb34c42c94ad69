// Package errs holds the error type handlers return to the web layer.
package errs

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
)

// ErrCode is an error category with an HTTP status.
type ErrCode struct {
	name   string
	status int
}

var (
	InvalidArgument = ErrCode{name: "invalid_argument", status: http.StatusBadRequest}
	NotFound        = ErrCode{name: "not_found", status: http.StatusNotFound}
	Unavailable     = ErrCode{name: "unavailable", status: http.StatusServiceUnavailable}
	Internal        = ErrCode{name: "internal", status: http.StatusInternalServerError}
	// InternalOnlyLog is logged in full and sent to the client as Internal.
	InternalOnlyLog = ErrCode{name: "internal_only_log", status: http.StatusInternalServerError}
)

func (c ErrCode) String() string {
	return c.name
}

// Error is an error that knows how to present itself over HTTP.
type Error struct {
	Code     ErrCode `json:"-"`
	Message  string  `json:"error"`
	FuncName string  `json:"-"`
	FileName string  `json:"-"`
	err      error
}

// New wraps err with code. The message sent to the client is err's text.
func New(code ErrCode, err error) *Error {
	e := newError(code, err.Error())
	e.err = err
	return e
}

// Newf builds an Error from a format string.
func Newf(code ErrCode, format string, v ...any) *Error {
	return newError(code, fmt.Sprintf(format, v...))
}

func newError(code ErrCode, msg string) *Error {
	pc, file, line, _ := runtime.Caller(2)
	e := &Error{
		Code:     code,
		Message:  msg,
		FileName: fmt.Sprintf("%s:%d", file, line),
	}
	if fn := runtime.FuncForPC(pc); fn != nil {
		e.FuncName = fn.Name()
	}
	return e
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.err
}

func (e *Error) Encode() ([]byte, string, error) {
	data, err := json.Marshal(e)
	return data, "application/json; charset=utf-8", err
}

func (e *Error) HTTPStatus() int {
	return e.Code.status
}
