package language

import (
	"path"
	"strings"

	"golang.org/x/text/language"
)

// NormalizeTag normalizes a language tag to lowercase and "-" separators.
// Returns an empty string when the value is blank or contains invalid characters.
func NormalizeTag(raw string) string {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return ""
	}

	trimmed = strings.ReplaceAll(trimmed, "_", "-")
	parts := strings.Split(trimmed, "-")
	normalized := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !isAlphaLower(part) {
			return ""
		}
		normalized = append(normalized, part)
	}

	if len(normalized) == 0 {
		return ""
	}
	return strings.Join(normalized, "-")
}

// NormalizeCode returns the primary language subtag (for example, "en" from "en-US").
func NormalizeCode(raw string) string {
	tag := NormalizeTag(raw)
	if tag == "" {
		return ""
	}
	if dash := strings.IndexByte(tag, '-'); dash >= 0 {
		return tag[:dash]
	}
	return tag
}

// Canonical returns the BCP 47 form of raw ("en-US", "zh-Hans"), or "" when
// raw is not a well-formed tag.
func Canonical(raw string) string {
	normalized := NormalizeTag(raw)
	if normalized == "" {
		return ""
	}
	tag, err := language.Parse(normalized)
	if err != nil {
		return ""
	}
	if tag == language.Und {
		return ""
	}
	return tag.String()
}

// SameTag reports whether two tags refer to the same language after normalization.
func SameTag(a, b string) bool {
	left := NormalizeTag(a)
	return left != "" && left == NormalizeTag(b)
}

// FromPath splits an uploaded file path into a namespace and a language tag.
// The namespace is the directory ("homepage/en.json" -> "homepage"); the tag is
// the base name or its last dot-separated segment ("messages.de.json" -> "de").
func FromPath(filePath string) (namespace, tag string) {
	cleaned := path.Clean(strings.ReplaceAll(strings.TrimSpace(filePath), "\\", "/"))
	dir, file := path.Split(cleaned)
	namespace = strings.Trim(dir, "/")
	if namespace == "." {
		namespace = ""
	}

	base := strings.TrimSuffix(file, path.Ext(file))
	if canonical := pathTag(base); canonical != "" {
		return namespace, canonical
	}
	if dot := strings.LastIndexByte(base, '.'); dot >= 0 {
		if canonical := pathTag(base[dot+1:]); canonical != "" {
			return namespace, canonical
		}
	}
	return namespace, ""
}

// pathTag accepts a file name segment as a language only when it is a
// two-letter code or carries a script or region subtag. Three-letter codes
// collide with ordinary names such as "app" or "api".
func pathTag(segment string) string {
	canonical := Canonical(segment)
	if canonical == "" {
		return ""
	}
	code := NormalizeCode(segment)
	if len(code) == 2 || code != NormalizeTag(segment) {
		return canonical
	}
	return ""
}

func isAlphaLower(value string) bool {
	for _, r := range value {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
