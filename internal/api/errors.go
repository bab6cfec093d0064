package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Kind classifies API failures
type Kind string

const (
	KindAuthentication Kind = "authentication"
	KindValidation     Kind = "validation"
	KindNetwork        Kind = "network"
	KindServer         Kind = "server"
)

// Error codes carried by Error.Code
const (
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeSessionInvalid     = "SESSION_INVALID"
	CodeRoleMissing        = "ROLE_MISSING"
	CodeEmailTaken         = "EMAIL_TAKEN"
	CodeUsernameTaken      = "USERNAME_TAKEN"
	CodeInvalidInput       = "INVALID_INPUT"
)

// ErrNotAuthenticated is returned without any I/O when an authenticated call
// is attempted while no credential is held.
var ErrNotAuthenticated = &Error{Kind: KindAuthentication, Code: CodeSessionInvalid, Message: "not logged in"}

// Error is a classified API failure
type Error struct {
	Kind    Kind
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind) + " error"
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is an *Error of the given kind
func IsKind(err error, kind Kind) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

// HasCode reports whether err is an *Error carrying code
func HasCode(err error, code string) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// errorBody mirrors the backend's ErrorResponse; plain-text bodies are also accepted.
type errorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"details"`
}

func parseErrorBody(body []byte) (code, message string) {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return "", ""
	}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return "", text
	}
	message = eb.Message
	if message == "" {
		message = eb.Error
	}
	if len(eb.Details) > 0 {
		parts := make([]string, 0, len(eb.Details))
		for _, d := range eb.Details {
			parts = append(parts, d.Field+": "+d.Message)
		}
		message = strings.TrimSpace(message + " (" + strings.Join(parts, "; ") + ")")
	}
	return eb.Code, message
}

// classifyRegistration maps a failed register response onto the taxonomy.
func classifyRegistration(status int, body []byte) *Error {
	code, message := parseErrorBody(body)
	lower := strings.ToLower(code + " " + message)
	e := &Error{Kind: KindValidation, Status: status, Code: CodeInvalidInput, Message: message}
	switch {
	case strings.Contains(lower, "email") && (strings.Contains(lower, "taken") || strings.Contains(lower, "exist")):
		e.Code = CodeEmailTaken
	case strings.Contains(lower, "username") && (strings.Contains(lower, "taken") || strings.Contains(lower, "exist")):
		e.Code = CodeUsernameTaken
	case status >= 500:
		e.Kind = KindServer
		e.Code = code
	}
	if e.Message == "" {
		e.Message = "registration rejected"
	}
	return e
}
