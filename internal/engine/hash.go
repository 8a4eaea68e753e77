package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Hasher derives the cache key of raw image bytes.
type Hasher func(data []byte) string

// XXHash is the default content key: fast, and collision resistant enough
// for de-duplication within a process.
func XXHash(data []byte) string {
	return "xxh64:" + strconv.FormatUint(xxhash.Sum64(data), 16)
}

// SHA256Hash keys content by its SHA-256 digest.
func SHA256Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// HasherByName resolves a configured hasher name; unknown names fall back
// to XXHash.
func HasherByName(name string) Hasher {
	if name == "sha256" {
		return SHA256Hash
	}
	return XXHash
}
