package dataimport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"horse.fit/polyglot/internal/schema"
)

// parseJSON flattens a flat or nested JSON object into dotted keys, keeping
// document order.
func parseJSON(content []byte) (*ParsedFile, error) {
	if _, err := schema.ValidateTranslationJSON(content); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	decoder := json.NewDecoder(bytes.NewReader(bytes.TrimPrefix(content, []byte{0xEF, 0xBB, 0xBF})))
	decoder.UseNumber()

	parsed := &ParsedFile{}
	if _, err := decoder.Token(); err != nil {
		return nil, fmt.Errorf("%w: read JSON object: %v", ErrValidation, err)
	}
	if err := walkJSONObject(decoder, "", parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return parsed, nil
}

// walkJSONObject consumes object members up to and including the closing brace.
func walkJSONObject(decoder *json.Decoder, prefix string, parsed *ParsedFile) error {
	for decoder.More() {
		token, err := decoder.Token()
		if err != nil {
			return err
		}
		name, ok := token.(string)
		if !ok {
			return fmt.Errorf("unexpected object key %v", token)
		}
		key := joinKey(prefix, name)

		value, err := decoder.Token()
		if err != nil {
			return err
		}
		switch v := value.(type) {
		case json.Delim:
			switch v {
			case '{':
				if name == "" {
					parsed.Issues = append(parsed.Issues, newIssue(IssueKeyIsEmpty, "path", prefix))
					if err := skipJSONValue(decoder); err != nil {
						return err
					}
					continue
				}
				if err := walkJSONObject(decoder, key, parsed); err != nil {
					return err
				}
			case '[':
				if err := skipJSONValue(decoder); err != nil {
					return err
				}
				parsed.Issues = append(parsed.Issues, newIssue(IssueValueIsNotString, "key", key, "type", "array"))
			}
		case string:
			if name == "" {
				parsed.addEntry(ParsedEntry{Key: "", Text: v})
				continue
			}
			parsed.addEntry(ParsedEntry{Key: key, Text: v})
		case nil:
			parsed.Issues = append(parsed.Issues, newIssue(IssueValueIsNotString, "key", key, "type", "null"))
		case json.Number:
			parsed.Issues = append(parsed.Issues, newIssue(IssueValueIsNotString, "key", key, "value", v.String()))
		case bool:
			parsed.Issues = append(parsed.Issues, newIssue(IssueValueIsNotString, "key", key, "value", fmt.Sprint(v)))
		}
	}
	_, err := decoder.Token()
	return err
}

// skipJSONValue consumes the remainder of an array or object whose opening
// delimiter was already read.
func skipJSONValue(decoder *json.Decoder) error {
	depth := 1
	for depth > 0 {
		token, err := decoder.Token()
		if err == io.EOF {
			return io.ErrUnexpectedEOF
		}
		if err != nil {
			return err
		}
		if delim, ok := token.(json.Delim); ok {
			switch delim {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
	}
	return nil
}
