package api

import (
	"errors"
	"fmt"
)

// Kind classifies a failed request by where it failed.
type Kind int

const (
	// KindValidation is raised before any request is sent.
	KindValidation Kind = iota + 1
	// KindTransport means the request never produced a response.
	KindTransport
	// KindProtocol means the response was not the JSON the client expected.
	KindProtocol
	// KindApplication means the server answered with an explicit error.
	KindApplication
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindApplication:
		return "application"
	default:
		return "unknown"
	}
}

const nonJSONMessage = "Server returned non-JSON response. Check server logs."

// Operation names, also used as prefixes for transport failures.
const (
	OpPrime    = "prime"
	OpUpload   = "upload"
	OpSave     = "save"
	OpSuggest  = "suggest"
	OpStart    = "start"
	OpStatus   = "status"
	OpPage     = "page"
	OpValidate = "validate"
)

var transportPrefix = map[string]string{
	OpPrime:   "Error contacting server",
	OpUpload:  "Error uploading file",
	OpSave:    "Error saving prompt",
	OpSuggest: "Error getting suggestion",
	OpStart:   "Error starting generation",
	OpStatus:  "Error checking status",
	OpPage:    "Error loading page",
}

// Error is the single error type returned by Client methods.
type Error struct {
	Kind    Kind
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Op + " failed"
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf reports the Kind of an api error anywhere in err's chain, or 0.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return 0
}

func validationError(op, message string, cause error) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: message, Err: cause}
}

func transportError(op string, cause error) *Error {
	prefix := transportPrefix[op]
	if prefix == "" {
		prefix = "Request failed"
	}
	return &Error{Kind: KindTransport, Op: op, Message: prefix + ": " + cause.Error(), Err: cause}
}

func protocolError(op string, status int, message string) *Error {
	if message == "" {
		message = nonJSONMessage
	}
	return &Error{Kind: KindProtocol, Op: op, Status: status, Message: message}
}

func applicationError(op string, status int, message string) *Error {
	if message == "" {
		message = fmt.Sprintf("HTTP %d", status)
	}
	return &Error{Kind: KindApplication, Op: op, Status: status, Message: message}
}
