// Package contact provides pure text utilities for contact extraction:
// email/phone pattern matching, phone normalization, aggregator-domain
// filtering, fuzzy label matching, and HTML-to-text conversion. No I/O.
package contact

import (
	"regexp"
	"strings"
)

var (
	emailRe  = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	phoneRe  = regexp.MustCompile(`\+?\d[\d\s\-().]{8,}\d`)
	mailtoRe = regexp.MustCompile(`(?i)href\s*=\s*["']mailto:([^"'?#]+)`)
)

// ExtractEmails returns email addresses found in text, lower-cased and
// deduplicated, in order of first appearance.
func ExtractEmails(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range emailRe.FindAllString(text, -1) {
		e := strings.ToLower(m)
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}

// ExtractEmailsFromHTML scans both the visible text and mailto: hrefs, so
// addresses present only in link targets are still captured.
func ExtractEmailsFromHTML(html string) []string {
	var parts []string
	for _, m := range mailtoRe.FindAllStringSubmatch(html, -1) {
		parts = append(parts, strings.TrimSpace(m[1]))
	}
	combined := HTMLToText(html) + " " + strings.Join(parts, " ")
	return ExtractEmails(combined)
}

// ExtractPhones returns normalized phone numbers found in text, deduplicated,
// in order of first appearance.
func ExtractPhones(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range phoneRe.FindAllString(text, -1) {
		p, ok := NormalizePhone(m)
		if !ok {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

var nonPhoneRe = regexp.MustCompile(`[^0-9+]`)

// NormalizePhone strips everything but digits and a leading plus sign and
// rejects candidates whose digit count falls outside [10,15].
func NormalizePhone(raw string) (string, bool) {
	cleaned := nonPhoneRe.ReplaceAllString(raw, "")
	cleaned = strings.ReplaceAll(cleaned, "++", "+")
	digits := 0
	for _, c := range cleaned {
		if c >= '0' && c <= '9' {
			digits++
		}
	}
	if digits < 10 || digits > 15 {
		return "", false
	}
	return cleaned, true
}

var (
	blockTagRes = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`),
		regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`),
		regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`),
	}
	tagRe   = regexp.MustCompile(`<[^>]+>`)
	spaceRe = regexp.MustCompile(`[ \t]+`)
	nlRe    = regexp.MustCompile(`\n{3,}`)
)

// HTMLToText strips scripts/styles and tags, decodes common entities, and
// collapses whitespace. The result is plaintext suitable for LLM validation.
func HTMLToText(html string) string {
	for _, re := range blockTagRes {
		html = re.ReplaceAllString(html, "")
	}

	html = tagRe.ReplaceAllString(html, " ")

	r := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	)
	html = r.Replace(html)

	html = spaceRe.ReplaceAllString(html, " ")
	html = nlRe.ReplaceAllString(html, "\n\n")

	return strings.TrimSpace(html)
}

// TruncateRunes bounds s to at most n runes. Truncation is rune-based because
// the pipeline handles Cyrillic text throughout.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
