package automation

import (
	"regexp"
	"strings"

	"crm-messaging/internal/domain/automation"
	"crm-messaging/internal/domain/record"
)

var tokenPattern = regexp.MustCompile(`##[A-Za-z0-9_]+##`)

// Render replaces every occurrence of each mapped token with the string form of the mapped field.
// Missing and null fields render as "". Text without tokens is returned unchanged.
func Render(template string, mappings []automation.VariableMapping, data map[string]any) string {
	if template == "" || len(mappings) == 0 {
		return template
	}
	pairs := make([]string, 0, len(mappings)*2)
	for _, m := range mappings {
		if m.Token == "" {
			continue
		}
		pairs = append(pairs, m.Token, record.FormatValue(data[m.Field]))
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// ExtractTokens returns the distinct ##NAME## tokens in content in first-seen order.
func ExtractTokens(content string) []string {
	matches := tokenPattern.FindAllString(content, -1)
	seen := make(map[string]struct{}, len(matches))
	tokens := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		tokens = append(tokens, m)
	}
	return tokens
}

// UnmappedTokens lists tokens used in the given texts that have no mapping.
func UnmappedTokens(mappings []automation.VariableMapping, texts ...string) []string {
	mapped := make(map[string]struct{}, len(mappings))
	for _, m := range mappings {
		mapped[m.Token] = struct{}{}
	}
	var missing []string
	seen := map[string]struct{}{}
	for _, text := range texts {
		for _, tok := range ExtractTokens(text) {
			if _, ok := mapped[tok]; ok {
				continue
			}
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			missing = append(missing, tok)
		}
	}
	return missing
}
