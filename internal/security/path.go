package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

var (
	ErrPathTraversal = fmt.Errorf("path traversal detected")
	ErrReservedName  = fmt.Errorf("reserved filename not allowed")

	windowsReservedNames = map[string]bool{
		"con": true, "prn": true, "aux": true, "nul": true,
		"com1": true, "com2": true, "com3": true, "com4": true,
		"com5": true, "com6": true, "com7": true, "com8": true, "com9": true,
		"lpt1": true, "lpt2": true, "lpt3": true, "lpt4": true,
		"lpt5": true, "lpt6": true, "lpt7": true, "lpt8": true, "lpt9": true,
	}
)

// ValidateLocalPath rejects caller-supplied file paths that escape upward.
// Absolute paths are allowed (tool callers pass absolute paths to their own
// files); ".." segments are not.
func ValidateLocalPath(path string) error {
	if strings.Contains(path, "..") {
		return ErrPathTraversal
	}

	base := filepath.Base(filepath.Clean(path))
	nameWithoutExt := strings.TrimSuffix(strings.ToLower(base), filepath.Ext(base))
	if windowsReservedNames[nameWithoutExt] {
		return ErrReservedName
	}

	return nil
}

// SanitizeDescriptor turns a free-text descriptor (usually a prompt
// fragment) into a safe filename component.
func SanitizeDescriptor(name string) string {
	replacer := strings.NewReplacer(
		"/", "-", "\\", "-", ":", "-",
		"*", "", "?", "", "\"", "",
		"<", "", ">", "", "|", "", "\x00", "",
		" ", "_",
	)
	sanitized := replacer.Replace(strings.TrimSpace(name))
	sanitized = strings.TrimLeft(sanitized, ".-")
	sanitized = strings.TrimRight(sanitized, ". ")

	const maxLen = 60
	if len(sanitized) > maxLen {
		sanitized = sanitized[:maxLen]
	}

	nameWithoutExt := strings.TrimSuffix(strings.ToLower(sanitized), filepath.Ext(sanitized))
	if windowsReservedNames[nameWithoutExt] {
		sanitized = sanitized + "_"
	}

	if sanitized == "" {
		sanitized = "image"
	}

	return sanitized
}
