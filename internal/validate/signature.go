// Package validate implements the Content Validator and Digest Verifier:
// confirming a staged file's byte prefix matches its declared media type,
// and confirming its content digest matches the value the client declared.
package validate

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Outcome is the result of a Validate call.
type Outcome int

const (
	Ok Outcome = iota
	Mismatch
	UndetectedType
)

func (o Outcome) String() string {
	switch o {
	case Ok:
		return "ok"
	case Mismatch:
		return "mismatch"
	default:
		return "undetected_type"
	}
}

// signature is one (mediaType, byteOffset, signatureHex) entry.
type signature struct {
	mediaType string
	offset    int
	hex       string
}

// signatureTable is fixed, per the content validator's minimum required
// entries. Entries are matched case-insensitively against the hex prefix
// of a file, after shifting by offset bytes.
var signatureTable = []signature{
	{"image/jpeg", 0, "FFD8FF"},
	{"image/png", 0, "89504E47"},
	{"image/gif", 0, "4749463837 61"},
	{"image/gif", 0, "4749463839 61"},
	{"image/webp", 8, "57454250"},
	{"video/mp4", 4, "6674797069736F6D"},
	{"video/mp4", 4, "66747970"},
	{"video/quicktime", 4, "6674797071742020"},
	{"video/quicktime", 4, "6D6F6F76"},
	{"video/x-msvideo", 0, "52494646"},
	{"video/x-msvideo", 8, "415649204C495354"},
	{"video/mpeg", 0, "000001BA"},
	{"video/mpeg", 0, "000001B3"},
}

func init() {
	for i := range signatureTable {
		signatureTable[i].hex = strings.ReplaceAll(signatureTable[i].hex, " ", "")
	}
}

// AllowedExtensions follows the signature table: the permitted lower-cased
// filename extensions for each declared media type.
var AllowedExtensions = map[string]map[string]bool{
	"image/jpeg":      set("jpg", "jpeg", "jpe"),
	"image/png":       set("png"),
	"image/gif":       set("gif"),
	"image/webp":      set("webp"),
	"video/mp4":       set("mp4", "m4v"),
	"video/quicktime": set("mov", "qt"),
	"video/x-msvideo": set("avi"),
	"video/mpeg":      set("mpg", "mpeg"),
}

func set(items ...string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, it := range items {
		m[it] = true
	}
	return m
}

// category returns the substring of a media type before '/'.
func category(mediaType string) string {
	i := strings.IndexByte(mediaType, '/')
	if i < 0 {
		return mediaType
	}
	return mediaType[:i]
}

const prefixReadLen = 32

// Validate reads the first 32 bytes of filePath and checks them against the
// signature table. It returns Ok if some entry for declaredMediaType
// matches, or if some entry for any media type in the same top-level
// category matches; Mismatch if a different category matched; otherwise
// UndetectedType.
func Validate(filePath, declaredMediaType string) (Outcome, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return UndetectedType, fmt.Errorf("validate: open %s: %w", filePath, err)
	}
	defer f.Close()

	buf := make([]byte, prefixReadLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return UndetectedType, fmt.Errorf("validate: read %s: %w", filePath, err)
	}
	prefix := hex.EncodeToString(buf[:n])

	declaredCategory := category(declaredMediaType)
	matchedOtherCategory := false

	for _, sig := range signatureTable {
		if sigMatches(prefix, sig) {
			if sig.mediaType == declaredMediaType {
				return Ok, nil
			}
			if category(sig.mediaType) == declaredCategory {
				return Ok, nil
			}
			matchedOtherCategory = true
		}
	}

	if matchedOtherCategory {
		return Mismatch, nil
	}
	return UndetectedType, nil
}

func sigMatches(prefixHex string, sig signature) bool {
	start := sig.offset * 2
	end := start + len(sig.hex)
	if end > len(prefixHex) {
		return false
	}
	return strings.EqualFold(prefixHex[start:end], sig.hex)
}
