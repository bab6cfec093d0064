package models

import (
	"net/mail"
	"strings"
	"unicode/utf8"
)

// Role is an account's authorization level
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// ParseRole normalizes a role string; ROLE_ prefixes are accepted.
func ParseRole(raw string) (Role, bool) {
	v := strings.ToUpper(strings.TrimSpace(raw))
	v = strings.TrimPrefix(v, "ROLE_")
	switch Role(v) {
	case RoleUser, RoleAdmin:
		return Role(v), true
	}
	return "", false
}

// User is an account as reported by the backend
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
}

// IsAdmin reports whether the user may run administrative commands
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Registration is the payload for creating an account
type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate applies the backend's field constraints before a request is sent
func (r Registration) Validate() error {
	name := strings.TrimSpace(r.Username)
	if n := utf8.RuneCountInString(name); n < 2 || n > 50 {
		return &ValidationError{Field: "username", Message: "must be between 2 and 50 characters"}
	}
	if err := ValidateEmail(r.Email); err != nil {
		return err
	}
	if n := utf8.RuneCountInString(r.Password); n < 6 || n > 100 {
		return &ValidationError{Field: "password", Message: "must be between 6 and 100 characters"}
	}
	return nil
}

// ValidateEmail checks that s is a bare address
func ValidateEmail(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return &ValidationError{Field: "email", Message: "is required"}
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return &ValidationError{Field: "email", Message: "invalid email format"}
	}
	return nil
}

// ValidationError represents an invalid field value
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
