package validate

import (
	"crypto/md5" //nolint:gosec // wire compatibility, not a security property; see spec's digest algorithm note
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

const readBufferSize = 256 * 1024

// Digest streams filePath and returns the hex-encoded MD5 of its content.
// MD5 is required, not chosen: it exists solely for wire compatibility with
// clients that compute the same digest over the same bytes.
func Digest(filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("validate: open %s: %w", filePath, err)
	}
	defer f.Close()

	h := md5.New() //nolint:gosec
	buf := make([]byte, readBufferSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("validate: digest %s: %w", filePath, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify computes the digest of filePath and compares it to expectedHex
// under case-insensitive comparison.
func Verify(filePath, expectedHex string) (bool, error) {
	actual, err := Digest(filePath)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(actual, expectedHex), nil
}
