package validate

import (
	"fmt"
	"strings"
)

// Metadata is the subset of Initiate's declared attributes the metadata
// validator inspects.
type Metadata struct {
	Filename  string
	MediaType string
	Size      int64
}

// MetadataConfig carries the configured limits the metadata validator
// enforces.
type MetadataConfig struct {
	MaxFileSize  int64
	AllowedTypes []string
}

// ValidateMetadata enforces: size in (0, maxFileSize]; declared media type
// in the allow-list; extension a member of the per-type allowed-extension
// set. It returns the full list of human-readable errors found, not just
// the first.
func ValidateMetadata(m Metadata, cfg MetadataConfig) []string {
	var errs []string

	if m.Size <= 0 {
		errs = append(errs, "fileSize must be greater than zero")
	} else if m.Size > cfg.MaxFileSize {
		errs = append(errs, fmt.Sprintf("fileSize %d exceeds the maximum of %d bytes", m.Size, cfg.MaxFileSize))
	}

	allowed := false
	for _, t := range cfg.AllowedTypes {
		if t == m.MediaType {
			allowed = true
			break
		}
	}
	if !allowed {
		errs = append(errs, fmt.Sprintf("mimeType %q is not an allowed media type", m.MediaType))
	}

	ext := extensionOf(m.Filename)
	extSet, known := AllowedExtensions[m.MediaType]
	if allowed && known && !extSet[ext] {
		errs = append(errs, fmt.Sprintf("file extension %q is not valid for mimeType %q", ext, m.MediaType))
	}

	return errs
}

func extensionOf(filename string) string {
	i := strings.LastIndexByte(filename, '.')
	if i < 0 || i == len(filename)-1 {
		return ""
	}
	return strings.ToLower(filename[i+1:])
}
