package services

import "regexp"

var mentionPattern = regexp.MustCompile(`@(\w+)`)

// DetectMentions returns the names of every @name token in text, left to
// right. Repeated mentions are kept; callers that target users dedupe.
func DetectMentions(text string) []string {
	matches := mentionPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names
}
