// Package browser implements a lightweight page-visiting session over plain
// HTTP. It keeps the current page so callers can list its links and follow
// them the way a human would click through a supplier site.
package browser

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
	"golang.org/x/text/encoding/charmap"

	"github.com/zakupai/supplier-search/internal/resilience"
)

const (
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) supplier-search/1.0"
	maxPageBytes     = 4 * 1024 * 1024
)

// Link is an anchor on the current page with its resolved target.
type Link struct {
	Text string
	URL  string
}

// Session navigates pages and exposes the current document.
type Session interface {
	Navigate(ctx context.Context, rawURL string) error
	CurrentHTML() string
	CurrentURL() string
	FindLinks() []Link
	Click(ctx context.Context, link Link) error
	Close() error
}

// Option configures a session.
type Option func(*httpSession)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *httpSession) {
		s.http = hc
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(s *httpSession) {
		s.userAgent = ua
	}
}

type httpSession struct {
	http      *http.Client
	userAgent string

	current *url.URL
	page    string
	links   []Link
}

// NewSession creates an HTTP-backed browsing session.
func NewSession(opts ...Option) Session {
	s := &httpSession{
		userAgent: defaultUserAgent,
		http: &http.Client{
			Timeout: 20 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     60 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *httpSession) Navigate(ctx context.Context, rawURL string) error {
	target, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return resilience.NewNavigationError(rawURL, eris.Wrap(err, "browser: parse url"))
	}
	if target.Scheme == "" {
		target.Scheme = "https"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return resilience.NewNavigationError(rawURL, eris.Wrap(err, "browser: create request"))
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "ru-RU,ru;q=0.9,en;q=0.5")

	resp, err := s.http.Do(req)
	if err != nil {
		return resilience.NewNavigationError(rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return resilience.NewNavigationError(rawURL, eris.Errorf("browser: status %d", resp.StatusCode))
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return resilience.NewNavigationError(rawURL, eris.Wrap(err, "browser: read body"))
	}

	page := decodePage(raw, resp.Header.Get("Content-Type"))

	// Redirects move the session's base for relative links.
	final := resp.Request.URL
	s.current = final
	s.page = page
	s.links = parseLinks(page, final)
	return nil
}

func (s *httpSession) CurrentHTML() string {
	return s.page
}

func (s *httpSession) CurrentURL() string {
	if s.current == nil {
		return ""
	}
	return s.current.String()
}

func (s *httpSession) FindLinks() []Link {
	return s.links
}

func (s *httpSession) Click(ctx context.Context, link Link) error {
	return s.Navigate(ctx, link.URL)
}

func (s *httpSession) Close() error {
	s.http.CloseIdleConnections()
	s.current = nil
	s.page = ""
	s.links = nil
	return nil
}

// decodePage converts legacy windows-1251 pages, still common on Russian
// supplier sites, to UTF-8.
func decodePage(raw []byte, contentType string) string {
	if !isWindows1251(raw, contentType) {
		return string(raw)
	}
	decoded, err := charmap.Windows1251.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}

func isWindows1251(raw []byte, contentType string) bool {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "windows-1251") || strings.Contains(ct, "cp1251") {
		return true
	}
	head := strings.ToLower(string(raw[:min(len(raw), 2048)]))
	return strings.Contains(head, "charset=windows-1251") || strings.Contains(head, "charset=\"windows-1251\"")
}

// parseLinks collects anchors with visible text, resolving relative hrefs
// against the page URL. Fragments, mailto and javascript links are skipped.
func parseLinks(page string, base *url.URL) []Link {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil
	}

	var links []Link
	seen := make(map[string]bool)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if l, ok := resolveAnchor(n, base); ok {
				key := l.Text + "|" + l.URL
				if !seen[key] {
					seen[key] = true
					links = append(links, l)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return links
}

func resolveAnchor(n *html.Node, base *url.URL) (Link, bool) {
	var href string
	for _, a := range n.Attr {
		if a.Key == "href" {
			href = strings.TrimSpace(a.Val)
			break
		}
	}
	if href == "" || strings.HasPrefix(href, "#") {
		return Link{}, false
	}
	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "tel:") || strings.HasPrefix(lower, "javascript:") {
		return Link{}, false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return Link{}, false
	}
	resolved := ref
	if base != nil {
		resolved = base.ResolveReference(ref)
	}
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return Link{}, false
	}

	text := strings.Join(strings.Fields(anchorText(n)), " ")
	if text == "" {
		return Link{}, false
	}

	return Link{Text: text, URL: resolved.String()}, true
}

func anchorText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
