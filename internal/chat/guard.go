package chat

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// LeakDetector reports replies that expose tool-invocation syntax to the user
type LeakDetector interface {
	Leaks(text string) bool
}

// DefaultLeakPatterns are the fragments a model tends to emit when it writes
// a function call as text instead of making one.
var DefaultLeakPatterns = []string{
	"search_places(",
	"print(",
	"default_api",
	"```python",
	"```tool_code",
	"tool_code",
}

// PatternDetector matches replies case-insensitively against fixed fragments.
// A fragment starting with a word character only matches at a word start,
// so "print(" does not fire on "blueprint(".
type PatternDetector struct {
	patterns []*regexp.Regexp
}

// NewPatternDetector builds a detector from the defaults plus extra fragments
func NewPatternDetector(extra ...string) *PatternDetector {
	d := &PatternDetector{}
	for _, p := range append(append([]string(nil), DefaultLeakPatterns...), extra...) {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		expr := "(?i)" + regexp.QuoteMeta(p)
		if r, _ := utf8.DecodeRuneInString(p); isWordRune(r) {
			expr = `(?i)(?:^|[^\p{L}\p{N}_])` + regexp.QuoteMeta(p)
		}
		d.patterns = append(d.patterns, regexp.MustCompile(expr))
	}
	return d
}

// Leaks implements LeakDetector
func (d *PatternDetector) Leaks(text string) bool {
	for _, re := range d.patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
