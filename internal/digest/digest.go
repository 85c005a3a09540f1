package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

var (
	ErrFloatNotAllowed = errors.New("float values are not allowed")
	ErrUnsupportedType = errors.New("unsupported type for canonicalization")
	ErrKeyCollision    = errors.New("normalized map key collision")
)

const Prefix = "sha256:"

// Hex returns the SHA-256 digest as lowercase hex.
func Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// WithPrefix returns the SHA-256 digest with the "sha256:" prefix.
func WithPrefix(data []byte) string {
	return Prefix + Hex(data)
}

// Of canonicalizes v and returns its prefixed digest.
func Of(v any) (string, error) {
	canonical, err := Canonicalize(v)
	if err != nil {
		return "", err
	}
	return WithPrefix(canonical), nil
}
