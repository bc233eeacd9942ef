// Package digest computes content digests used as deduplication keys.
package digest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// Size is the length of a digest in hex characters.
const Size = sha256.Size * 2

// Opener returns a fresh reader over the same content on every call.
type Opener func() (io.ReadCloser, error)

// Sum returns the lowercase hex SHA-256 of the content behind open. A new
// reader is opened per call, so hashing the same source repeatedly is safe.
func Sum(open Opener) (string, error) {
	rc, err := open()
	if err != nil {
		return "", fmt.Errorf("digest: open: %w", err)
	}
	defer rc.Close()
	h := sha256.New()
	if _, err := io.Copy(h, rc); err != nil {
		return "", fmt.Errorf("digest: read: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SumBytes hashes in-memory content.
func SumBytes(b []byte) string {
	s := sha256.Sum256(b)
	return hex.EncodeToString(s[:])
}

// BytesOpener returns an Opener over a private copy of b.
func BytesOpener(b []byte) Opener {
	data := bytes.Clone(b)
	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
}

// Valid reports whether s looks like a digest produced by Sum.
func Valid(s string) bool {
	if len(s) != Size {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}
