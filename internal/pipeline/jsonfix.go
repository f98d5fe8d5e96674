package pipeline

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/zakupai/supplier-search/internal/resilience"
)

var (
	codeFenceRe     = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
)

// decodeModelJSON parses JSON out of free-form model output. Models wrap
// answers in code fences, add prose around the payload, leave trailing commas
// or use single quotes; each defect is repaired in turn before giving up.
func decodeModelJSON(raw string, v any) error {
	text := strings.TrimSpace(raw)
	if m := codeFenceRe.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}
	text = extractJSONSpan(text)

	if err := json.Unmarshal([]byte(text), v); err == nil {
		return nil
	}

	repaired := trailingCommaRe.ReplaceAllString(text, "$1")
	if err := json.Unmarshal([]byte(repaired), v); err == nil {
		return nil
	}

	repaired = normalizeQuotes(repaired)
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return resilience.NewMalformedResponseError(err, raw)
	}
	return nil
}

// extractJSONSpan cuts the text down to the first balanced {...} or [...]
// span, dropping any prose before or after it.
func extractJSONSpan(text string) string {
	start := -1
	var open, close rune
	for i, r := range text {
		if r == '{' || r == '[' {
			start = i
			open = r
			if r == '{' {
				close = '}'
			} else {
				close = ']'
			}
			break
		}
	}
	if start == -1 {
		return text
	}

	depth := 0
	for i := start; i < len(text); i++ {
		switch rune(text[i]) {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	// Unbalanced span: keep from the opening bracket and let the parser report.
	return text[start:]
}

// normalizeQuotes converts single-quoted keys and values to double quotes,
// line by line, skipping quotes that appear inside proper strings.
func normalizeQuotes(text string) string {
	lines := strings.Split(text, "\n")
	for li, line := range lines {
		chars := []byte(line)
		inString := false
		for i := range chars {
			switch chars[i] {
			case '"':
				if i == 0 || chars[i-1] != '\\' {
					inString = !inString
				}
			case '\'':
				if inString {
					continue
				}
				var prev, next byte = ' ', ' '
				if i > 0 {
					prev = chars[i-1]
				}
				if i < len(chars)-1 {
					next = chars[i+1]
				}
				if isQuoteBoundary(prev) || isQuoteBoundary(next) {
					chars[i] = '"'
				}
			}
		}
		lines[li] = string(chars)
	}
	return strings.Join(lines, "\n")
}

func isQuoteBoundary(c byte) bool {
	switch c {
	case ' ', '\t', '{', '[', ',', ':', '}', ']':
		return true
	}
	return false
}
