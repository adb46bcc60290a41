package dataimport

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/leonelquinteros/gotext"

	"horse.fit/polyglot/internal/language"
)

// parsePO reads a gettext catalogue. Message values come from gotext; entry
// order and extracted comments ("#.") come from a line scan because the
// catalogue keeps neither.
func parsePO(content []byte) (*ParsedFile, error) {
	po := gotext.NewPo()
	po.Parse(content)
	domain := po.GetDomain()
	if domain == nil {
		return nil, fmt.Errorf("%w: PO catalogue could not be parsed", ErrValidation)
	}
	translations := domain.GetTranslations()

	parsed := &ParsedFile{Language: language.Canonical(domain.Language)}
	for _, meta := range scanPOEntries(content) {
		tr, ok := translations[meta.msgid]
		if !ok {
			continue
		}
		text := ""
		if tr.Trs != nil {
			text = tr.Trs[0]
		}
		if text == "" {
			// Untranslated entries carry no value for any language.
			continue
		}

		entry := ParsedEntry{Key: meta.msgid, Text: text, Comments: meta.comments}
		refs := meta.references
		if len(refs) == 0 {
			refs = tr.Refs
		}
		for _, ref := range refs {
			entry.References = append(entry.References, parseCodeReference(ref))
		}
		parsed.addEntry(entry)
	}
	return parsed, nil
}

type poEntryMeta struct {
	msgid      string
	comments   []string
	references []string
}

// scanPOEntries lists msgids in file order with their extracted comments and
// references. Entries with msgctxt and obsolete entries are skipped.
func scanPOEntries(content []byte) []poEntryMeta {
	var (
		out        []poEntryMeta
		comments   []string
		references []string
		hasContext bool
		seen       = make(map[string]struct{})
	)
	reset := func() {
		comments, references, hasContext = nil, nil, false
	}

	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			reset()
		case strings.HasPrefix(line, "#~"):
			reset()
		case strings.HasPrefix(line, "#."):
			if text := strings.TrimSpace(line[2:]); text != "" {
				comments = append(comments, text)
			}
		case strings.HasPrefix(line, "#:"):
			references = append(references, strings.Fields(line[2:])...)
		case strings.HasPrefix(line, "msgctxt"):
			hasContext = true
		case strings.HasPrefix(line, "msgid ") && !strings.HasPrefix(line, "msgid_plural"):
			msgid := readPOString(line[len("msgid "):], scanner)
			if msgid != "" && !hasContext {
				if _, dup := seen[msgid]; !dup {
					seen[msgid] = struct{}{}
					out = append(out, poEntryMeta{msgid: msgid, comments: comments, references: references})
				}
			}
			reset()
		}
	}
	return out
}

// readPOString decodes a quoted msgid. An empty first segment starts a
// multi-line value; its continuation lines are consumed along with the line
// that ends it.
func readPOString(first string, scanner *bufio.Scanner) string {
	value := unquotePO(first)
	if value != "" {
		return value
	}
	var b strings.Builder
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, `"`) {
			break
		}
		b.WriteString(unquotePO(line))
	}
	return b.String()
}

func unquotePO(raw string) string {
	raw = strings.TrimSpace(raw)
	if unquoted, err := strconv.Unquote(raw); err == nil {
		return unquoted
	}
	return strings.Trim(raw, `"`)
}

// parseCodeReference splits "src/app.go:42" into path and line.
func parseCodeReference(raw string) CodeReference {
	ref := CodeReference{Path: raw}
	if colon := strings.LastIndexByte(raw, ':'); colon > 0 {
		if line, err := strconv.Atoi(raw[colon+1:]); err == nil {
			ref.Path = raw[:colon]
			ref.Line = &line
		}
	}
	return ref
}
