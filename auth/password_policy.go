package auth

import (
	"unicode"
	"unicode/utf8"
)

const minPasswordLength = 8

// ValidatePasswordStrength checks password against the console's policy:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
// - Contains at least one special character
//
// Every rule is evaluated so that the caller can show all failures at once.
func ValidatePasswordStrength(password string) error {
	var failures []string
	if utf8.RuneCountInString(password) < minPasswordLength {
		failures = append(failures, "password must be at least 8 characters long")
	}

	var (
		hasUpper   bool
		hasLower   bool
		hasNumber  bool
		hasSpecial bool
	)

	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}

	if !hasUpper {
		failures = append(failures, "password must contain at least one uppercase letter")
	}
	if !hasLower {
		failures = append(failures, "password must contain at least one lowercase letter")
	}
	if !hasNumber {
		failures = append(failures, "password must contain at least one number")
	}
	if !hasSpecial {
		failures = append(failures, "password must contain at least one special character")
	}

	if len(failures) > 0 {
		return &PasswordPolicyViolation{Failures: failures}
	}
	return nil
}

// ValidatePasswordChange applies the strength policy and checks that the
// confirmation field matches exactly.
func ValidatePasswordChange(password, confirmation string) error {
	err := ValidatePasswordStrength(password)
	if password == confirmation {
		return err
	}

	violation, ok := err.(*PasswordPolicyViolation)
	if !ok {
		violation = &PasswordPolicyViolation{}
	}
	violation.Mismatch = true
	violation.Failures = append(violation.Failures, "passwords do not match")
	return violation
}
