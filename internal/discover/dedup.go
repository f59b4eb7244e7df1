package discover

import (
	"net/url"
	"sort"
	"strings"
)

// trackingParams vary between listings of the same product and are ignored
// when comparing links.
var trackingParams = map[string]bool{
	"lid":            true,
	"marketplace":    true,
	"otracker":       true,
	"otracker1":      true,
	"q":              true,
	"qh":             true,
	"srno":           true,
	"ssid":           true,
	"store":          true,
	"spotlighttagid": true,
	"fm":             true,
	"iid":            true,
	"ppt":            true,
	"ppn":            true,
	"utm_source":     true,
	"utm_medium":     true,
	"utm_campaign":   true,
}

// Dedup removes repeated product links, keeping the first occurrence and
// the original order. Links are compared by CanonicalizeURL.
func Dedup(links []string) []string {
	seen := make(map[string]struct{}, len(links))
	out := make([]string, 0, len(links))
	for _, l := range links {
		key := CanonicalizeURL(l)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, l)
	}
	return out
}

// CanonicalizeURL normalizes a product URL for comparison:
//   - lowercases scheme and host and drops a leading "www."
//   - removes the fragment and default ports
//   - drops tracking parameters and sorts the rest
//   - removes a trailing slash
func CanonicalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	port := u.Port()
	if port != "" && !(u.Scheme == "http" && port == "80") && !(u.Scheme == "https" && port == "443") {
		host += ":" + port
	}
	u.Host = host
	u.Fragment = ""

	if u.RawQuery != "" {
		params := u.Query()
		keys := make([]string, 0, len(params))
		for k := range params {
			if trackingParams[strings.ToLower(k)] {
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var sorted []string
		for _, k := range keys {
			vals := params[k]
			sort.Strings(vals)
			for _, v := range vals {
				sorted = append(sorted, url.QueryEscape(k)+"="+url.QueryEscape(v))
			}
		}
		u.RawQuery = strings.Join(sorted, "&")
	}

	if u.Path != "/" && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimRight(u.Path, "/")
	}
	return u.String()
}
