package fetcher

import (
	"strings"
)

// BlockKind identifies why a page looks like an anti-bot wall rather than
// real content.
type BlockKind string

const (
	BlockReCaptcha  BlockKind = "recaptcha"
	BlockHCaptcha   BlockKind = "hcaptcha"
	BlockTurnstile  BlockKind = "turnstile"
	BlockAccessWall BlockKind = "access_denied"
)

var accessWallMarkers = []string{
	"access denied",
	"are you a human",
	"unusual traffic",
	"please verify you are a human",
	"request blocked",
}

// DetectBlock reports whether body looks like a CAPTCHA or access-denied
// wall. It is used to explain empty search results, not to solve them.
func DetectBlock(body []byte) (BlockKind, bool) {
	html := string(body)
	lower := strings.ToLower(html)

	hasSiteKey := extractBetween(html, `data-sitekey="`, `"`) != ""
	switch {
	case hasSiteKey && (strings.Contains(lower, "g-recaptcha") || strings.Contains(lower, "recaptcha/api.js")):
		return BlockReCaptcha, true
	case hasSiteKey && strings.Contains(lower, "h-captcha"):
		return BlockHCaptcha, true
	case hasSiteKey && strings.Contains(lower, "cf-turnstile"):
		return BlockTurnstile, true
	}

	// Walls are short pages; a full listing mentioning these words is not one.
	if len(body) < 16*1024 {
		for _, m := range accessWallMarkers {
			if strings.Contains(lower, m) {
				return BlockAccessWall, true
			}
		}
	}
	return "", false
}

// extractBetween extracts a substring between two delimiters.
func extractBetween(s, start, end string) string {
	idx := strings.Index(s, start)
	if idx < 0 {
		return ""
	}
	s = s[idx+len(start):]
	idx = strings.Index(s, end)
	if idx < 0 {
		return ""
	}
	return s[:idx]
}
