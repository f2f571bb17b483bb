package validators

import "strings"

// SanitizeString trims and collapses internal whitespace, then cuts to maxLen
// runes. maxLen <= 0 means no limit.
func SanitizeString(input string, maxLen int) string {
	cleaned := strings.Join(strings.Fields(input), " ")
	if maxLen <= 0 {
		return cleaned
	}
	runes := []rune(cleaned)
	if len(runes) > maxLen {
		return string(runes[:maxLen])
	}
	return cleaned
}

// OptionalString sanitizes v and maps blank values to nil.
func OptionalString(v *string, maxLen int) *string {
	if v == nil {
		return nil
	}
	cleaned := SanitizeString(*v, maxLen)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}
