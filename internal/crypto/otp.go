package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"math/big"
)

// OTPDigits is the length of generated one-time codes.
const OTPDigits = 4

// GenerateOTP returns a uniformly random zero-padded numeric code of OTPDigits digits.
func GenerateOTP() (string, error) {
	limit := big.NewInt(1)
	for i := 0; i < OTPDigits; i++ {
		limit.Mul(limit, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", OTPDigits, n.Int64()), nil
}

// HashOTP binds code to salt (the challenge id) so stored hashes are not reusable across challenges.
func HashOTP(salt []byte, code string) []byte {
	h := sha256.New()
	h.Write(salt)
	h.Write([]byte{0})
	h.Write([]byte(code))
	return h.Sum(nil)
}

// VerifyOTP compares code against a hash produced by HashOTP in constant time.
func VerifyOTP(salt []byte, code string, expected []byte) bool {
	return subtle.ConstantTimeCompare(HashOTP(salt, code), expected) == 1
}
