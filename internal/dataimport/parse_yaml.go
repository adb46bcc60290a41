package dataimport

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"horse.fit/polyglot/internal/language"
)

// parseYAML flattens a nested YAML mapping into dotted keys. A single root key
// that is a language tag wrapping a mapping ("en:") declares the language.
func parseYAML(content []byte) (*ParsedFile, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("%w: parse YAML: %v", ErrValidation, err)
	}

	parsed := &ParsedFile{}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return parsed, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: YAML root must be a mapping", ErrValidation)
	}

	if len(root.Content) == 2 {
		keyNode, valNode := root.Content[0], root.Content[1]
		if keyNode.Kind == yaml.ScalarNode && valNode.Kind == yaml.MappingNode {
			if tag := language.Canonical(keyNode.Value); tag != "" {
				parsed.Language = tag
				collectYAML(valNode, "", parsed)
				return parsed, nil
			}
		}
	}

	collectYAML(root, "", parsed)
	return parsed, nil
}

func collectYAML(node *yaml.Node, prefix string, parsed *ParsedFile) {
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode := node.Content[i]
		valNode := node.Content[i+1]
		key := joinKey(prefix, keyNode.Value)

		if valNode.Kind == yaml.AliasNode && valNode.Alias != nil {
			valNode = valNode.Alias
		}

		switch valNode.Kind {
		case yaml.MappingNode:
			if keyNode.Value == "" {
				parsed.Issues = append(parsed.Issues, newIssue(IssueKeyIsEmpty, "path", prefix))
				continue
			}
			collectYAML(valNode, key, parsed)
		case yaml.ScalarNode:
			switch valNode.ShortTag() {
			case "!!bool", "!!int", "!!float", "!!null":
				parsed.Issues = append(parsed.Issues, newIssue(IssueValueIsNotString, "key", key, "value", valNode.Value))
				continue
			}
			entry := ParsedEntry{Key: key, Text: valNode.Value}
			if keyNode.Value == "" {
				entry.Key = ""
			}
			if comment := yamlComment(keyNode, valNode); comment != "" {
				entry.Comments = []string{comment}
			}
			parsed.addEntry(entry)
		default:
			parsed.Issues = append(parsed.Issues, newIssue(IssueValueIsNotString, "key", key, "type", "sequence"))
		}
	}
}

// yamlComment returns the comment attached to a key, without the leading '#'.
func yamlComment(keyNode, valNode *yaml.Node) string {
	for _, raw := range []string{keyNode.HeadComment, valNode.LineComment, keyNode.LineComment} {
		if text := trimYAMLComment(raw); text != "" {
			return text
		}
	}
	return ""
}

func trimYAMLComment(raw string) string {
	lines := make([]string, 0, 2)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
