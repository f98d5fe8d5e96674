// Package yandex provides a client for the Yandex Cloud Web Search API.
// Responses arrive as base64-encoded SERP HTML; the client decodes and parses
// them into plain results.
package yandex

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
)

const (
	defaultBaseURL   = "https://searchapi.api.cloud.yandex.net"
	defaultUserAgent = "supplier-search/1.0"
)

// Client performs web searches against the Yandex Search API.
type Client interface {
	Search(ctx context.Context, query string) ([]Result, error)
}

// Result is one parsed SERP entry.
type Result struct {
	Title   string
	URL     string
	Snippet string
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithGroupsOnPage sets how many result groups to request per page.
func WithGroupsOnPage(n int) Option {
	return func(c *httpClient) {
		c.groupsOnPage = n
	}
}

type httpClient struct {
	apiKey       string
	folderID     string
	baseURL      string
	groupsOnPage int
	http         *http.Client
}

// NewClient creates a Yandex Search API client.
func NewClient(apiKey, folderID string, opts ...Option) Client {
	c := &httpClient{
		apiKey:       apiKey,
		folderID:     folderID,
		baseURL:      defaultBaseURL,
		groupsOnPage: 20,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// searchRequest mirrors the v2 web search body.
type searchRequest struct {
	Query          searchQuery `json:"query"`
	SortSpec       sortSpec    `json:"sortSpec"`
	GroupSpec      groupSpec   `json:"groupSpec"`
	MaxPassages    int         `json:"maxPassages"`
	L10N           string      `json:"l10N"`
	FolderID       string      `json:"folderId"`
	ResponseFormat string      `json:"responseFormat"`
	UserAgent      string      `json:"userAgent"`
}

type searchQuery struct {
	SearchType  string `json:"searchType"`
	QueryText   string `json:"queryText"`
	FamilyMode  string `json:"familyMode"`
	Page        int    `json:"page"`
	FixTypoMode string `json:"fixTypoMode"`
}

type sortSpec struct {
	SortMode  string `json:"sortMode"`
	SortOrder string `json:"sortOrder"`
}

type groupSpec struct {
	GroupMode    string `json:"groupMode"`
	GroupsOnPage int    `json:"groupsOnPage"`
	DocsInGroup  int    `json:"docsInGroup"`
}

type searchResponse struct {
	RawData string `json:"rawData"`
}

func (c *httpClient) Search(ctx context.Context, query string) ([]Result, error) {
	body := searchRequest{
		Query: searchQuery{
			SearchType:  "SEARCH_TYPE_RU",
			QueryText:   query,
			FamilyMode:  "FAMILY_MODE_NONE",
			Page:        0,
			FixTypoMode: "FIX_TYPO_MODE_OFF",
		},
		SortSpec: sortSpec{
			SortMode:  "SORT_MODE_BY_RELEVANCE",
			SortOrder: "SORT_ORDER_DESC",
		},
		GroupSpec: groupSpec{
			GroupMode:    "GROUP_MODE_FLAT",
			GroupsOnPage: c.groupsOnPage,
			DocsInGroup:  1,
		},
		MaxPassages:    3,
		L10N:           "LOCALIZATION_RU",
		FolderID:       c.folderID,
		ResponseFormat: "FORMAT_HTML",
		UserAgent:      defaultUserAgent,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, eris.Wrap(err, "yandex: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/web/search", bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "yandex: create request")
	}
	req.Header.Set("Authorization", "Api-Key "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "yandex: search request")
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8*1024*1024))
	if err != nil {
		return nil, eris.Wrap(err, "yandex: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("yandex: search status %d", resp.StatusCode)
	}

	var sr searchResponse
	if err := json.Unmarshal(raw, &sr); err != nil {
		return nil, eris.Wrap(err, "yandex: decode response")
	}
	if sr.RawData == "" {
		return nil, eris.New("yandex: response missing rawData")
	}

	serpHTML, err := base64.StdEncoding.DecodeString(sr.RawData)
	if err != nil {
		return nil, eris.Wrap(err, "yandex: decode rawData")
	}

	return ParseSERP(serpHTML)
}

// ParseSERP extracts results from Yandex SERP HTML. Each result lives in an
// <li class="serp-item"> with the main <a class="Link"> and passage text in
// <div class="TextContainer"> nodes.
func ParseSERP(serpHTML []byte) ([]Result, error) {
	doc, err := html.Parse(bytes.NewReader(serpHTML))
	if err != nil {
		return nil, eris.Wrap(err, "yandex: parse serp html")
	}

	var results []Result
	for _, item := range findAll(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "li" && hasClass(n, "serp-item")
	}) {
		links := findAll(item, func(n *html.Node) bool {
			return n.Type == html.ElementNode && n.Data == "a" && hasClass(n, "Link")
		})
		if len(links) == 0 {
			continue
		}

		main := links[0]
		title := strings.TrimSpace(nodeText(main))
		// Image blocks masquerade as serp items.
		if title == "Картинки" {
			continue
		}

		href := attr(main, "href")
		site := siteRoot(href)
		if site == "" {
			continue
		}

		var passages []string
		for _, p := range findAll(item, func(n *html.Node) bool {
			return n.Type == html.ElementNode && n.Data == "div" && hasClass(n, "TextContainer")
		}) {
			if t := strings.TrimSpace(nodeText(p)); t != "" {
				passages = append(passages, t)
			}
		}

		results = append(results, Result{
			Title:   title,
			URL:     site,
			Snippet: strings.Join(passages, "\n"),
		})
	}

	return results, nil
}

// siteRoot reduces a result URL to scheme://host/ so duplicate deep links from
// the same site collapse to one candidate.
func siteRoot(href string) string {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil || u.Host == "" {
		return ""
	}
	scheme := u.Scheme
	if scheme == "" {
		scheme = "https"
	}
	return scheme + "://" + u.Host + "/"
}

func findAll(root *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if match(n) {
			out = append(out, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func hasClass(n *html.Node, class string) bool {
	for _, f := range strings.Fields(attr(n, "class")) {
		if f == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
