package password

import (
	"errors"
	"unicode/utf16"
)

// ErrPolicy is returned by [Policy.Check] for passwords that fail composition
// rules.
var ErrPolicy = errors.New("password does not satisfy policy")

// Policy describes the composition rules registration passwords must meet.
// Lengths count UTF-16 code units, so a character outside the Basic
// Multilingual Plane (most emoji) counts as two. Clients validating the same
// rule in JavaScript agree with the server on every input.
type Policy struct {
	MinLength int
	MaxLength int
}

// DefaultPolicy requires 8 to 30 characters.
func DefaultPolicy() Policy {
	return Policy{MinLength: 8, MaxLength: 30}
}

// Check returns [ErrPolicy] unless password has a length within bounds and at
// least one digit, one lower-case letter, one upper-case letter and one
// character that is neither an ASCII letter, a digit nor an underscore.
// Underscores are rejected outright.
func (p Policy) Check(password string) error {
	var n int
	var digit, lower, upper, symbol bool
	for _, r := range password {
		n += utf16.RuneLen(r)
		switch {
		case r >= '0' && r <= '9':
			digit = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r == '_':
			return ErrPolicy
		default:
			symbol = true
		}
	}
	if n < p.MinLength || n > p.MaxLength {
		return ErrPolicy
	}
	if !digit || !lower || !upper || !symbol {
		return ErrPolicy
	}
	return nil
}
