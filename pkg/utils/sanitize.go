package utils

import (
	"regexp"
	"strings"
)

// --- Filename Sanitization ---
var invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F\s]`) // Invalid in filenames, plus whitespace
var consecutiveUnderscores = regexp.MustCompile(`_+`)                    // Runs of underscores collapse to one
const maxFilenameLength = 100                                            // Byte cap for the term part of a filename

// SanitizeFilename turns a search term into a safe filename component
func SanitizeFilename(name string) string {
	sanitized := invalidFilenameChars.ReplaceAllString(name, "_")       // "usb hub/3.0" -> "usb_hub_3.0"
	sanitized = consecutiveUnderscores.ReplaceAllString(sanitized, "_") // Collapse repeats
	sanitized = strings.Trim(sanitized, "_ ")                           // No leading/trailing separators

	if len(sanitized) > maxFilenameLength {
		// Byte truncation may split a rune; the result is still a valid path component
		sanitized = sanitized[:maxFilenameLength]
		sanitized = strings.Trim(sanitized, "_ ") // Truncation can expose a trailing underscore
	}

	if sanitized == "" { // Term was only separators or symbols
		sanitized = "untitled"
	}
	return sanitized
}
