package utils

import (
	"strings"
	"unicode"
)

const (
	// MinPasswordLength is the shortest password accepted at sign-up
	MinPasswordLength = 8
	// PasswordSpecialChars are the characters that satisfy the special-character rule
	PasswordSpecialChars = `!@#$%^&*(),.?":{}|<>`
)

// PasswordError lists every rule a password failed
type PasswordError struct {
	Code     string
	Message  string
	Failures []string
}

func (e *PasswordError) Error() string {
	return e.Message
}

type passwordChecks struct {
	length, upper, lower, digit, special bool
}

func checkPassword(password string) passwordChecks {
	c := passwordChecks{length: len([]rune(password)) >= MinPasswordLength}
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			c.upper = true
		case unicode.IsLower(r):
			c.lower = true
		case unicode.IsDigit(r):
			c.digit = true
		}
		if strings.ContainsRune(PasswordSpecialChars, r) {
			c.special = true
		}
	}
	return c
}

// ValidatePassword checks a new password against the sign-up rules
func ValidatePassword(password string) error {
	c := checkPassword(password)

	var failures []string
	if !c.length {
		failures = append(failures, "must be at least 8 characters")
	}
	if !c.upper {
		failures = append(failures, "must contain an uppercase letter")
	}
	if !c.lower {
		failures = append(failures, "must contain a lowercase letter")
	}
	if !c.digit {
		failures = append(failures, "must contain a number")
	}
	if !c.special {
		failures = append(failures, "must contain a special character")
	}

	if len(failures) > 0 {
		return &PasswordError{
			Code:     "WEAK_PASSWORD",
			Message:  "Password " + strings.Join(failures, ", "),
			Failures: failures,
		}
	}
	return nil
}

// PasswordStrength scores a password from 0 to 5, one point per satisfied rule
func PasswordStrength(password string) int {
	if password == "" {
		return 0
	}
	c := checkPassword(password)
	score := 0
	for _, ok := range []bool{c.length, c.upper, c.lower, c.digit, c.special} {
		if ok {
			score++
		}
	}
	return score
}
