package translation

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// languageName returns the English display name of a BCP-47 tag, falling back
// to the raw tag when it cannot be parsed or has no name.
func languageName(tag string) string {
	trimmed := strings.TrimSpace(tag)
	if trimmed == "" {
		return "English"
	}
	parsed, err := language.Parse(trimmed)
	if err != nil {
		return trimmed
	}
	name := display.English.Tags().Name(parsed)
	if name == "" {
		return trimmed
	}
	return name
}

func normalizeLangTag(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	parsed, err := language.Parse(strings.ReplaceAll(trimmed, "_", "-"))
	if err != nil {
		return trimmed
	}
	return parsed.String()
}
