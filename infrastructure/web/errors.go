package web

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
}

// NewError returns an error response with the given status.
func NewError(status int, msg string) *ErrorResponse {
	return &ErrorResponse{Status: status, Message: msg}
}

func (e *ErrorResponse) Error() string {
	return e.Message
}

func (e *ErrorResponse) Encode() ([]byte, string, error) {
	data, err := json.Marshal(e)
	return data, "application/json; charset=utf-8", err
}

func (e *ErrorResponse) HTTPStatus() int {
	if e.Status == 0 {
		return http.StatusInternalServerError
	}
	return e.Status
}
