// Package frontier extracts and canonicalizes forum links and manages the
// bounded-depth crawl queue built on top of the store.
package frontier

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
)

const (
	primaryDomain = "reddit.com"
	shortDomain   = "redd.it"
	canonicalHost = "www.reddit.com"
	httpsPrefix   = "https://"
	httpPrefix    = "http://"
	commentsPath  = "/comments/"
	trailingTrim  = ".,;!"
)

var (
	urlPattern       = regexp.MustCompile(`(?i)https?://[^\s)>\]]+`)
	legacyHost       = regexp.MustCompile(`(?i)old\.reddit\.com`)
	commentsIDRegexp = regexp.MustCompile(`(?i)/comments/([a-z0-9]{5,8})`)
	shortIDRegexp    = regexp.MustCompile(`(?i)redd\.it/([a-z0-9]{5,8})`)
	bareIDRegexp     = regexp.MustCompile(`(?i)^[a-z0-9]{5,8}$`)
)

// ExtractURLs returns the distinct http(s) URLs found in the given texts,
// sorted. A URL runs until whitespace or a closing bracket and has trailing
// sentence punctuation removed. Empty texts contribute nothing.
func ExtractURLs(texts ...string) []string {
	seen := make(map[string]struct{})
	for _, text := range texts {
		if text == "" {
			continue
		}
		for _, match := range urlPattern.FindAllString(text, -1) {
			u := strings.TrimRight(match, trailingTrim)
			if u == "" {
				continue
			}
			seen[u] = struct{}{}
		}
	}

	urls := make([]string, 0, len(seen))
	for u := range seen {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls
}

// IsSubmissionURL reports whether rawURL points at a forum submission, either
// in the /comments/ form or the short-link form. Unparseable input is false.
func IsSubmissionURL(rawURL string) bool {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}

	host := strings.ToLower(parsed.Host)
	if !strings.Contains(host, primaryDomain) && !strings.Contains(host, shortDomain) {
		return false
	}

	return strings.Contains(parsed.Path, commentsPath) ||
		strings.Contains(strings.ToLower(rawURL), shortDomain+"/")
}

// NormalizeURL upgrades http to https, rewrites the legacy subdomain to the
// canonical host and adds a scheme to bare forum links. It is idempotent.
func NormalizeURL(rawURL string) string {
	u := strings.TrimSpace(rawURL)
	if u == "" {
		return ""
	}

	if hasPrefixFold(u, httpPrefix) {
		u = httpsPrefix + u[len(httpPrefix):]
	} else if hasPrefixFold(u, httpsPrefix) {
		u = httpsPrefix + u[len(httpsPrefix):]
	}

	u = legacyHost.ReplaceAllString(u, canonicalHost)

	if strings.Contains(strings.ToLower(u), primaryDomain) && !strings.Contains(u, "://") {
		u = httpsPrefix + strings.TrimLeft(u, "/")
	}

	return u
}

// SubmissionID extracts the 5 to 8 character submission id from either link
// shape. The second return is false when neither shape matches.
func SubmissionID(rawURL string) (string, bool) {
	if m := commentsIDRegexp.FindStringSubmatch(rawURL); m != nil {
		return m[1], true
	}
	if m := shortIDRegexp.FindStringSubmatch(rawURL); m != nil {
		return m[1], true
	}
	return "", false
}

// LooksLikeID reports whether key has the shape of a bare submission id.
func LooksLikeID(key string) bool {
	return bareIDRegexp.MatchString(key)
}

// QueueKey returns the dedup key and normalized URL for a discovered link.
// The key is the submission id when one can be extracted, else the
// normalized URL, so alternate renderings of one submission collapse.
func QueueKey(rawURL string) (key, normalized string) {
	normalized = NormalizeURL(rawURL)
	if id, ok := SubmissionID(normalized); ok {
		return id, normalized
	}
	return normalized, normalized
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
