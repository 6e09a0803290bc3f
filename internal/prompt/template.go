package prompt

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrEmptyTemplate = errors.New("Please write a prompt first.")
	ErrNoFields      = errors.New("No fields available. Please upload a file first.")
)

var rePlaceholder = regexp.MustCompile(`\{\{([^{}]+)\}\}`)

// Placeholder renders the token for a data field.
func Placeholder(field string) string {
	return "{{" + field + "}}"
}

// InsertField puts the field's placeholder at the cursor, replacing the
// selection [selStart, selEnd). Offsets are in runes and are clamped to the
// text. The returned cursor sits right after the inserted token.
func InsertField(text string, selStart, selEnd int, field string) (string, int) {
	r := []rune(text)
	start := clamp(selStart, 0, len(r))
	end := clamp(selEnd, 0, len(r))
	if end < start {
		start, end = end, start
	}
	token := []rune(Placeholder(field))

	out := make([]rune, 0, len(r)-(end-start)+len(token))
	out = append(out, r[:start]...)
	out = append(out, token...)
	out = append(out, r[end:]...)
	return string(out), start + len(token)
}

// Placeholders lists the field names referenced by a template, in order of
// first appearance.
func Placeholders(template string) []string {
	matches := rePlaceholder.FindAllStringSubmatch(template, -1)
	out := make([]string, 0, len(matches))
	seen := make(map[string]bool, len(matches))
	for _, m := range matches {
		name := m[1]
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// UnknownPlaceholders lists referenced names that are not in fields. Free
// editing can produce these; they are reported, never rejected.
func UnknownPlaceholders(template string, fields []string) []string {
	known := make(map[string]bool, len(fields))
	for _, f := range fields {
		known[f] = true
	}
	var out []string
	for _, name := range Placeholders(template) {
		if !known[name] {
			out = append(out, name)
		}
	}
	return out
}

// DefaultTemplate seeds an empty editor with every field.
func DefaultTemplate(fields []string) string {
	if len(fields) == 0 {
		return ""
	}
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		tokens = append(tokens, Placeholder(f))
	}
	return "Create a video about " + strings.Join(tokens, ", ")
}

// Fill substitutes row values into the template. Unknown tokens are left as-is.
func Fill(template string, row map[string]any) string {
	return rePlaceholder.ReplaceAllStringFunc(template, func(tok string) string {
		name := tok[2 : len(tok)-2]
		v, ok := row[name]
		if !ok || v == nil {
			return tok
		}
		return fmt.Sprint(v)
	})
}

// ValidateSuggestion enforces the client-side preconditions of a suggestion
// request.
func ValidateSuggestion(template string, fields []string) error {
	if strings.TrimSpace(template) == "" {
		return ErrEmptyTemplate
	}
	if len(fields) == 0 {
		return ErrNoFields
	}
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
