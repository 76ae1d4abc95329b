package users

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	autherrors "github.com/jrsteele09/go-token-authority/internal/errors"
	"golang.org/x/crypto/bcrypt"
)

type User struct {
	ID           string    `json:"id,omitempty"`          // Unique identifier for the user
	Email        string    `json:"email,omitempty"`       // User's email address, also the principal name
	Username     string    `json:"username,omitempty"`    // Display username
	PasswordHash string    `json:"-"`                     // Hashed version of the user's password - never serialize
	FirstName    string    `json:"first_name,omitempty"`  // First name of the user
	LastName     string    `json:"last_name,omitempty"`   // Last name of the user
	DateJoined   time.Time `json:"date_joined,omitempty"` // Date and time when the user registered
	LastLogin    time.Time `json:"last_login,omitempty"`  // Last time the user logged in

	Verified bool `json:"verified,omitempty"` // Verified, has the user activated their account
	Blocked  bool `json:"blocked,omitempty"`  // Blocked, has the user been blocked from logging in
}

// FullName joins the first and last name, skipping whichever is empty.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// NormalizeEmail lower-cases and trims an email so lookups are case insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("%w: must be at least 8 characters long", autherrors.ErrPasswordPolicy)
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("%w: must contain at least one uppercase letter", autherrors.ErrPasswordPolicy)
	}
	if !hasLower {
		return fmt.Errorf("%w: must contain at least one lowercase letter", autherrors.ErrPasswordPolicy)
	}
	if !hasNumber {
		return fmt.Errorf("%w: must contain at least one number", autherrors.ErrPasswordPolicy)
	}

	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
