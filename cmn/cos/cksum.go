// Package cos ("common small stuff") holds the content-hashing primitives
// shared across the pipeline: SHA-256 over raw bytes for storage identity,
// and the canonical-JSON fingerprint used by C1 for semantic identity.
package cos

import (
	"crypto/sha256"
	"encoding/hex"
	"io"

	"github.com/OneOfOne/xxhash"
)

// SHA256Hex returns the lowercase hex SHA-256 digest of b, the "content_hash"
// used throughout the Page/SyncRecord/WorkItem model.
func SHA256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// SHA256Reader streams r through SHA-256 without buffering the whole input,
// returning the same lowercase hex form as SHA256Hex.
func SHA256Reader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// QuickHash64 is a fast, non-cryptographic 64-bit xxhash of b. It is not a
// content identity; SHA256Hex is.
func QuickHash64(b []byte) uint64 {
	h := xxhash.New64()
	_, _ = h.Write(b)
	return h.Sum64()
}
