package dataimport

import (
	"fmt"
	"path"
	"strings"
)

const (
	FormatJSON = "JSON"
	FormatYAML = "YAML"
	FormatPO   = "PO"
)

const (
	IssueKeyIsEmpty                      = "KEY_IS_EMPTY"
	IssueValueIsNotString                = "VALUE_IS_NOT_STRING"
	IssueMultipleValuesForKeyAndLanguage = "MULTIPLE_VALUES_FOR_KEY_AND_LANGUAGE"
	IssueInvalidFile                     = "INVALID_FILE"
	IssueImportFailed                    = "IMPORT_FAILED"
)

// UploadedFile is one file handed to AddFiles. Name may carry directories,
// which become the namespace.
type UploadedFile struct {
	Name    string
	Content []byte
}

// ParsedFile is the format-independent result of parsing one upload.
type ParsedFile struct {
	Format string
	// Language is the tag declared inside the file (PO header, YAML root key).
	Language string
	Entries  []ParsedEntry
	Issues   []Issue
}

// ParsedEntry is one key value in document order.
type ParsedEntry struct {
	Key        string
	Text       string
	Comments   []string
	References []CodeReference
}

type CodeReference struct {
	Path string
	Line *int
}

// Issue is a non-fatal problem found while parsing.
type Issue struct {
	Type   string            `json:"type"`
	Params map[string]string `json:"params,omitempty"`
}

func newIssue(issueType string, params ...string) Issue {
	issue := Issue{Type: issueType}
	if len(params) > 1 {
		issue.Params = make(map[string]string, len(params)/2)
		for i := 0; i+1 < len(params); i += 2 {
			issue.Params[params[i]] = params[i+1]
		}
	}
	return issue
}

// DetectFormat maps a file name to a supported format.
func DetectFormat(name string) (string, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".po", ".pot":
		return FormatPO, nil
	default:
		return "", fmt.Errorf("%w: unsupported file type %q", ErrValidation, name)
	}
}

// ParseFile parses content according to the format implied by name.
func ParseFile(name string, content []byte) (*ParsedFile, error) {
	format, err := DetectFormat(name)
	if err != nil {
		return nil, err
	}

	var parsed *ParsedFile
	switch format {
	case FormatJSON:
		parsed, err = parseJSON(content)
	case FormatYAML:
		parsed, err = parseYAML(content)
	case FormatPO:
		parsed, err = parsePO(content)
	}
	if err != nil {
		return nil, err
	}
	parsed.Format = format
	return parsed, nil
}

// addEntry appends a key value, recording empty keys as issues.
func (f *ParsedFile) addEntry(entry ParsedEntry) {
	if strings.TrimSpace(entry.Key) == "" {
		f.Issues = append(f.Issues, newIssue(IssueKeyIsEmpty, "value", entry.Text))
		return
	}
	f.Entries = append(f.Entries, entry)
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
