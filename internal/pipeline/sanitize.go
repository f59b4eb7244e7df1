package pipeline

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/forPelevin/gomoji"

	"github.com/IshaanNene/ShopStalk/internal/types"
)

// ReadMore is the expander label the product page appends to long reviews.
const ReadMore = "READ MORE"

// RemoveReadMore deletes every literal ReadMore. Surrounding whitespace is
// left alone.
func RemoveReadMore(s string) string {
	return strings.ReplaceAll(s, ReadMore, "")
}

// RemoveEmoji deletes emoji and pictographic sequences from s. Plain ASCII
// keycap bases (digits, '#', '*') are kept, so ratings like "5 stars"
// survive. Selectors, modifiers and joiners left behind by a removed base
// are dropped as well.
func RemoveEmoji(s string) string {
	if gomoji.ContainsEmoji(s) {
		found := gomoji.FindAll(s)
		// Longest first so a skin-tone or ZWJ sequence goes before its base.
		sort.Slice(found, func(i, j int) bool {
			return len(found[i].Character) > len(found[j].Character)
		})
		for _, e := range found {
			if e.Character == "" || isASCII(e.Character) {
				continue
			}
			s = strings.ReplaceAll(s, e.Character, "")
		}
	}
	return stripEmojiComponents(s)
}

// emojiComponents never stand alone in text: variation selectors, the
// combining keycap, skin-tone modifiers and tag characters.
var emojiComponents = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x20e3, Hi: 0x20e3, Stride: 1},
		{Lo: 0xfe0e, Hi: 0xfe0f, Stride: 1},
	},
	R32: []unicode.Range32{
		{Lo: 0x1f3fb, Hi: 0x1f3ff, Stride: 1},
		{Lo: 0xe0020, Hi: 0xe007f, Stride: 1},
	},
}

const zwj = '\u200d'

// stripEmojiComponents drops emoji components. A zero-width joiner is kept
// only between two letters or marks, where scripts such as Devanagari use it.
func stripEmojiComponents(s string) string {
	if !strings.ContainsFunc(s, func(r rune) bool { return r == zwj || unicode.Is(emojiComponents, r) }) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	prev := utf8.RuneError
	for i, r := range s {
		switch {
		case unicode.Is(emojiComponents, r):
			continue
		case r == zwj:
			if !isLetterOrMark(prev) || !isLetterOrMark(nextKept(s[i+utf8.RuneLen(r):])) {
				continue
			}
		}
		b.WriteRune(r)
		prev = r
	}
	return b.String()
}

// nextKept returns the first rune of s that is not an emoji component.
func nextKept(s string) rune {
	for _, r := range s {
		if !unicode.Is(emojiComponents, r) {
			return r
		}
	}
	return utf8.RuneError
}

// isLetterOrMark reports letters and combining marks. Variation selectors
// and the keycap are marks too, but they are components here.
func isLetterOrMark(r rune) bool {
	if unicode.Is(emojiComponents, r) {
		return false
	}
	return unicode.IsLetter(r) || unicode.IsMark(r)
}

// SanitizeReviews applies RemoveReadMore then RemoveEmoji until the text
// stops changing, trims it and falls back to the sentinel when nothing is
// left. SanitizeReviews(SanitizeReviews(s)) == SanitizeReviews(s).
func SanitizeReviews(s string) string {
	for {
		next := RemoveEmoji(RemoveReadMore(s))
		if next == s {
			break
		}
		s = next
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return types.Sentinel
	}
	return s
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
