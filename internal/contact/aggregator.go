package contact

import (
	"net/url"
	"strings"
)

// IsAggregator reports whether the URL's hostname contains any of the given
// marketplace/aggregator keywords. Keyword-substring matching on the hostname
// is deliberately blunt; the list is registry-driven so it can be tuned.
func IsAggregator(rawURL string, keywords []string) bool {
	host := hostnameOf(rawURL)
	if host == "" {
		return false
	}
	for _, kw := range keywords {
		if kw != "" && strings.Contains(host, kw) {
			return true
		}
	}
	return false
}

func hostnameOf(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	host := u.Hostname()
	if host == "" && u.Opaque == "" && !strings.Contains(rawURL, "://") {
		// Bare domains like "amazon.com/x" parse with an empty host.
		if u2, err2 := url.Parse("https://" + rawURL); err2 == nil {
			host = u2.Hostname()
		}
	}
	return strings.ToLower(host)
}
