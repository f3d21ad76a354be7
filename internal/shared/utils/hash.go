package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// HashAlgorithm represents the hashing algorithm to use
type HashAlgorithm string

const (
	BLAKE2b HashAlgorithm = "blake2b"
	SHA256  HashAlgorithm = "sha256"
)

// Hasher computes content checksums in "<algorithm>:<hex>" form
type Hasher struct {
	algorithm HashAlgorithm
}

// NewHasher creates a new hasher with the specified algorithm
func NewHasher(algorithm HashAlgorithm) *Hasher {
	return &Hasher{algorithm: algorithm}
}

// DefaultHasher returns a blake2b-256 hasher
func DefaultHasher() *Hasher {
	return NewHasher(BLAKE2b)
}

// Checksum returns the tagged digest of data
func (h *Hasher) Checksum(data []byte) string {
	switch h.algorithm {
	case SHA256:
		sum := sha256.Sum256(data)
		return string(SHA256) + ":" + hex.EncodeToString(sum[:])
	default:
		sum := blake2b.Sum256(data)
		return string(BLAKE2b) + ":" + hex.EncodeToString(sum[:])
	}
}

// Verify reports whether data matches a checksum produced by Checksum.
// An empty checksum always verifies; records written before checksums
// existed have none.
func Verify(checksum string, data []byte) bool {
	if checksum == "" {
		return true
	}
	algo, _, ok := strings.Cut(checksum, ":")
	if !ok {
		return false
	}
	return NewHasher(HashAlgorithm(algo)).Checksum(data) == checksum
}
