package types

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the stable category of a backend failure.
type Kind string

const (
	KindBackendUnreachable     Kind = "backend_unreachable"
	KindSessionCreationFailed  Kind = "session_creation_failed"
	KindSendHTTPError          Kind = "send_http_error"
	KindEmptyReply             Kind = "empty_reply"
	KindUnrecognizedReplyShape Kind = "unrecognized_reply_shape"
	KindNetworkFailure         Kind = "network_failure"
)

// Error represents a categorized backend failure.
//
// Status and Body are set when the backend answered with a non-success
// status; Err carries the transport error for network failures.
type Error struct {
	Kind   Kind
	Op     string
	Status int
	Body   string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}

	switch e.Kind {
	case KindBackendUnreachable:
		if e.Status != 0 {
			return fmt.Sprintf("backend is not responding (status %d)", e.Status)
		}
		return "backend is not responding: " + e.cause()
	case KindSessionCreationFailed:
		if e.Status != 0 && e.Detail == "" {
			return fmt.Sprintf("failed to create session: %d - %s", e.Status, strings.TrimSpace(e.Body))
		}
		return "failed to create session: " + e.cause()
	case KindSendHTTPError:
		return fmt.Sprintf("HTTP error! status: %d - %s", e.Status, strings.TrimSpace(e.Body))
	case KindEmptyReply:
		return "empty response from server"
	case KindUnrecognizedReplyShape:
		return "unexpected response format from server"
	default:
		if e.Op != "" {
			return e.Op + " failed: " + e.cause()
		}
		return "network failure: " + e.cause()
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.Err
}

func (e *Error) cause() string {
	if e.Detail != "" {
		return e.Detail
	}
	if e.Err != nil {
		return e.Err.Error()
	}

	return "unknown error"
}

// Unreachable reports a failed liveness probe. status is zero for transport errors.
func Unreachable(status int, err error) error {
	return &Error{Kind: KindBackendUnreachable, Op: "probe", Status: status, Err: err}
}

// SessionFailed reports a non-success session creation response.
func SessionFailed(status int, body string) error {
	return &Error{Kind: KindSessionCreationFailed, Op: "create session", Status: status, Body: body}
}

// MalformedSession reports a session creation response without a usable identifier.
func MalformedSession(detail string) error {
	return &Error{Kind: KindSessionCreationFailed, Op: "create session", Detail: "malformed response: " + detail}
}

// SendFailed reports a non-success message exchange response.
func SendFailed(status int, body string) error {
	return &Error{Kind: KindSendHTTPError, Op: "send", Status: status, Body: body}
}

// EmptyReply reports a success response that carried no reply text.
func EmptyReply() error {
	return &Error{Kind: KindEmptyReply, Op: "send"}
}

// UnrecognizedReply reports a success response of an unknown shape.
func UnrecognizedReply(detail string) error {
	return &Error{Kind: KindUnrecognizedReplyShape, Op: "send", Detail: detail}
}

// NetworkFailure reports a request that produced no response at all.
func NetworkFailure(op string, err error) error {
	return &Error{Kind: KindNetworkFailure, Op: op, Err: err}
}

// KindOf returns the category for an error. Errors that are not *Error are
// treated as network failures.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}

	var categorized *Error
	if errors.As(err, &categorized) {
		return categorized.Kind
	}

	return KindNetworkFailure
}

// StatusOf returns the backend HTTP status carried by err, or zero.
func StatusOf(err error) int {
	var categorized *Error
	if errors.As(err, &categorized) {
		return categorized.Status
	}

	return 0
}
