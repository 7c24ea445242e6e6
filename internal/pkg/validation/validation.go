package validation

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Full names: letters in any script, spaces, hyphens, apostrophes.
var fullNameRe = regexp.MustCompile(`^[\p{L}\s\-']+$`)

func IsValidEmail(email string) bool {
	return emailRe.MatchString(email)
}

// IsValidPassword requires at least 8 characters with a letter, a digit and a
// symbol.
func IsValidPassword(password string) bool {
	if len(password) < 8 {
		return false
	}
	hasLetter, hasDigit, hasSpecial := false, false, false
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}
	return hasLetter && hasDigit && hasSpecial
}

func IsValidFullName(fullName string) bool {
	return strings.TrimSpace(fullName) != "" && fullNameRe.MatchString(fullName)
}

// NormalizeFullName collapses whitespace and title-cases each word
// ("  maría   JOSÉ " -> "María José").
func NormalizeFullName(fullName string) string {
	return cases.Title(language.Spanish).String(strings.Join(strings.Fields(fullName), " "))
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
