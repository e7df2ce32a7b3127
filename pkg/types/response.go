// Package types holds the JSON envelopes wrapping every console API response.
package types

// SuccessEnvelope is written as {"data": ...}.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// ErrorBody is the machine readable failure shown to the operator. It is
// distinct from the gateway's upstream error, which never reaches the UI raw.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}
