package utils

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	fencedJSONBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.+?)\\s*```")
	trailingComma   = regexp.MustCompile(`,\s*([}\]])`)
	bareObjectKey   = regexp.MustCompile(`([{,]\s*)([A-Za-z_]\w*)(\s*:)`)
	controlChars    = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F]`)
)

// ParseAIJSON decodes JSON produced by a model into target. Models do not
// always emit clean JSON, so the input is tried in order as:
// raw text, the body of a ``` fence, the first balanced object in the text,
// and finally a repaired version (trailing commas, bare keys, single quotes).
func ParseAIJSON(input string, target any) error {
	input = strings.TrimSpace(strings.TrimPrefix(input, "\ufeff"))
	if input == "" {
		return fmt.Errorf("empty input")
	}

	candidates := []string{input}
	if m := fencedJSONBlock.FindStringSubmatch(input); len(m) > 1 {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	if obj := firstJSONValue(input); obj != "" {
		candidates = append(candidates, obj)
	}

	for _, c := range candidates {
		if err := json.Unmarshal([]byte(c), target); err == nil {
			return nil
		}
	}

	for _, c := range candidates {
		if err := json.Unmarshal([]byte(repairJSON(c)), target); err == nil {
			return nil
		}
	}

	return fmt.Errorf("failed to parse JSON from input: %s", TruncateRunes(input, 100))
}

// ParseToolArguments decodes a function-call argument string into a map.
// Empty input yields an empty map: some providers send "" for no arguments.
func ParseToolArguments(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := ParseAIJSON(raw, &args); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// firstJSONValue returns the first balanced {...} or [...] in s
func firstJSONValue(s string) string {
	if i := strings.IndexAny(s, "{["); i >= 0 {
		open := rune(s[i])
		close := '}'
		if open == '[' {
			close = ']'
		}
		return balanced(s[i:], open, close)
	}
	return ""
}

// balanced scans from the opening delimiter at s[0] and returns the span up
// to its matching close, skipping delimiters inside string literals.
func balanced(s string, open, close rune) string {
	depth := 0
	inString := false
	escaped := false

	for i, ch := range s {
		switch {
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == open:
			depth++
		case ch == close:
			depth--
			if depth == 0 {
				return s[:i+len(string(ch))]
			}
		}
	}
	return ""
}

func repairJSON(s string) string {
	s = trailingComma.ReplaceAllString(s, "$1")
	s = bareObjectKey.ReplaceAllString(s, `$1"$2"$3`)
	s = singleToDoubleQuotes(s)
	return controlChars.ReplaceAllString(s, "")
}

// singleToDoubleQuotes swaps single-quoted string delimiters for double
// quotes. Apostrophes inside double-quoted strings are left alone.
func singleToDoubleQuotes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inDouble := false
	inSingle := false
	escaped := false

	for _, ch := range s {
		switch {
		case escaped:
			escaped = false
		case ch == '\\':
			escaped = true
		case ch == '"' && !inSingle:
			inDouble = !inDouble
		case ch == '"' && inSingle:
			b.WriteString(`\"`)
			continue
		case ch == '\'' && !inDouble:
			inSingle = !inSingle
			b.WriteRune('"')
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}
