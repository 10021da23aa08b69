package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLength = 8
	// bcrypt only reads the first 72 bytes.
	MaxPasswordBytes = 72
)

var (
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	ErrPasswordTooLong  = errors.New("password must be at most 72 bytes")
	ErrPasswordNoUpper  = errors.New("password must contain an uppercase letter")
	ErrPasswordNoDigit  = errors.New("password must contain a digit")
)

// ValidatePassword checks the password policy and names the first rule that
// fails.
func ValidatePassword(pw string) error {
	if len([]rune(pw)) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(pw) > MaxPasswordBytes {
		return ErrPasswordTooLong
	}
	var upper, digit bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper {
		return ErrPasswordNoUpper
	}
	if !digit {
		return ErrPasswordNoDigit
	}
	return nil
}

func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func VerifyPassword(encoded, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(pw)) == nil
}

var dummyHash = sync.OnceValue(func() []byte {
	b, err := bcrypt.GenerateFromPassword([]byte("no-such-account-Passw0rd"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return b
})

// VerifyUnknownUser does the same bcrypt work as VerifyPassword for a login
// whose account does not exist, so both paths take equally long. It always
// reports false.
func VerifyUnknownUser(pw string) bool {
	_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(pw))
	return false
}

// NewResetToken returns a random hex token and the hash stored in its place.
func NewResetToken() (raw string, hash string, err error) {
	buf := make([]byte, 32)
	if _, err = rand.Read(buf); err != nil {
		return "", "", err
	}
	raw = hex.EncodeToString(buf)
	return raw, HashToken(raw), nil
}

func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
