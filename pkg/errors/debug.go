package errors

import (
	"errors"
	"fmt"
)

// ErrorDump flattens an error chain for structured logging.
type ErrorDump struct {
	TopMessage string `json:"top_message"`
	Code       Code   `json:"code,omitempty"`

	Chain []string `json:"chain,omitempty"`

	HTTPStatus int    `json:"http_status,omitempty"`
	Upstream   string `json:"upstream,omitempty"`
}

// upstreamError is satisfied by gateway errors without importing the gateway.
type upstreamError interface {
	StatusCode() int
	UpstreamMessage() string
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{
		TopMessage: err.Error(),
	}

	if te := As(err); te != nil {
		d.Code = te.Code()
	}

	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var up upstreamError
	if errors.As(err, &up) {
		d.HTTPStatus = up.StatusCode()
		d.Upstream = up.UpstreamMessage()
	}

	return d
}
