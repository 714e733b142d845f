package middleware

import (
	"fmt"
	"regexp"
	"strings"
)

// Input validation and sanitization utilities

var documentIDPattern = regexp.MustCompile(`^[a-f0-9]{8}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{12}$`)

// ValidateDocumentID validates document ID format
func ValidateDocumentID(id string) error {
	if id == "" {
		return fmt.Errorf("document ID cannot be empty")
	}

	if !documentIDPattern.MatchString(strings.ToLower(id)) {
		return fmt.Errorf("invalid document ID format")
	}

	return nil
}

// ValidateKeywords validates a caller-supplied keyword list
func ValidateKeywords(keywords []string) error {
	if len(keywords) > 50 {
		return fmt.Errorf("too many keywords (max 50)")
	}

	for _, kw := range keywords {
		if len(kw) > 128 {
			return fmt.Errorf("keyword too long (max 128 chars)")
		}
		dangerous := []string{"\x00", "\n", "\r"}
		for _, d := range dangerous {
			if strings.Contains(kw, d) {
				return fmt.Errorf("invalid characters in keyword")
			}
		}
	}

	return nil
}

// ValidateMimeType validates upload content types
func ValidateMimeType(mimeType string) error {
	if mimeType == "" {
		return fmt.Errorf("content type cannot be empty")
	}

	mt := strings.ToLower(mimeType)
	if strings.HasPrefix(mt, "text/") {
		return nil
	}

	allowed := map[string]bool{
		"application/pdf":    true,
		"application/msword": true,
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
		"application/json": true,
	}

	if !allowed[mt] {
		return fmt.Errorf("unsupported content type: %s", mimeType)
	}
	return nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Remove control characters
	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}

// ValidatePage validates pagination page number
func ValidatePage(page int) int {
	if page <= 0 {
		return 1
	}
	return page
}

// ValidatePageSize validates pagination page size
func ValidatePageSize(size int) int {
	if size <= 0 {
		return 20 // default
	}
	if size > 100 {
		return 100 // max limit
	}
	return size
}
