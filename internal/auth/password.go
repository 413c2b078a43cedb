package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

const (
	// FamilyCodeAlphabet omits characters that are easy to confuse (0/O, 1/I).
	FamilyCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	FamilyCodeLength   = 6
	MinPasswordLength  = 6
)

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// GenerateFamilyCode returns a random family code.
func GenerateFamilyCode() (string, error) {
	b := make([]byte, FamilyCodeLength)
	max := big.NewInt(int64(len(FamilyCodeAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate family code: %w", err)
		}
		b[i] = FamilyCodeAlphabet[n.Int64()]
	}
	return string(b), nil
}

// ValidFamilyCode reports whether code has the right length and alphabet.
func ValidFamilyCode(code string) bool {
	if len(code) != FamilyCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		ok := false
		for j := 0; j < len(FamilyCodeAlphabet); j++ {
			if code[i] == FamilyCodeAlphabet[j] {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}
