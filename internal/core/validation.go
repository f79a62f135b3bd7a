// internal/core/validation.go
package core

import (
	"regexp"
	"strings"
)

// Regular expression for valid uploaded filenames (path-safe characters only)
var filenameValidationRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// Allowed source file type tags (lowercase keys and values)
var AllowedFileTypes = map[string]string{
	"js":  "js",
	"jsx": "jsx",
	"ts":  "ts",
	"tsx": "tsx",
}

// IsValidFilename checks that an uploaded filename is a plain name with no
// path separators or traversal segments.
func IsValidFilename(name string) bool {
	return filenameValidationRegex.MatchString(name) && len(name) > 0 && len(name) <= 255 &&
		name != "." && name != ".." && !strings.HasPrefix(name, ".")
}

// NormalizeAndValidateFileType checks that a string is an allowed source file
// type tag, returning the normalized lowercase version.
func NormalizeAndValidateFileType(fileType string) (string, bool) {
	lowerType := strings.ToLower(fileType)
	normalized, ok := AllowedFileTypes[lowerType]
	return normalized, ok
}

// IsValidLogicalPath checks an uploaded file's logical path: relative,
// slash-separated, no traversal.
func IsValidLogicalPath(path string) bool {
	if path == "" {
		return true // path is optional; defaults to the bare filename
	}
	if len(path) > 1024 || strings.HasPrefix(path, "/") || strings.Contains(path, "\\") {
		return false
	}
	for _, segment := range strings.Split(path, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return false
		}
	}
	return true
}
