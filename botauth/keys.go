package botauth

import (
	"crypto/rand"
	"encoding/base64"
	"io"
	"math/big"
	"net/http"

	"github.com/Anyuluo996/BotShepherd/errors"
)

const apiKeyAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// MinAPIKeyLength is the shortest key GenerateAPIKey will mint and
// ValidateAPIKey will accept.
const MinAPIKeyLength = 16

// GenerateAPIKey mints an alphanumeric API key of the given length
// (default 32 when length is 0). Selection is uniform over the alphabet.
func GenerateAPIKey(length int) (string, error) {
	if length == 0 {
		length = 32
	}
	if length < MinAPIKeyLength {
		return "", errors.New(errors.ErrCodeInvalidInput,
			"API key length must be at least 16 characters", http.StatusBadRequest)
	}
	max := big.NewInt(int64(len(apiKeyAlphabet)))
	key := make([]byte, length)
	for i := range key {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		key[i] = apiKeyAlphabet[n.Int64()]
	}
	return string(key), nil
}

// ValidateAPIKey checks that a key is long enough and purely
// alphanumeric.
func ValidateAPIKey(key string) bool {
	if len(key) < MinAPIKeyLength {
		return false
	}
	for _, c := range key {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}

// GenerateSecureToken returns a URL-safe token built from n random bytes
// (default 32 when n is 0).
func GenerateSecureToken(n int) (string, error) {
	if n == 0 {
		n = 32
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
