// Package hasher computes the canonical content fingerprint and the
// stable persistence ID for scraped posts. Every ingestion entry point
// (webhook, manual ingest, reparse) must share these functions
// bit-for-bit; divergence breaks duplicate detection silently.
package hasher

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/project-tktt/go-sublets/internal/domain"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	nonWordRe    = regexp.MustCompile(`[^\p{L}\p{N}_ ]+`)
)

// emojiRanges covers the pictograph code-point blocks stripped before
// hashing. Scrapers deliver the same post with and without reactions
// pasted in, so emoji must not affect the fingerprint.
var emojiRanges = [][2]rune{
	{0x1F300, 0x1F5FF}, // symbols and pictographs
	{0x1F600, 0x1F64F}, // emoticons
	{0x1F680, 0x1F6FF}, // transport
	{0x1F900, 0x1FAFF}, // supplemental symbols
	{0x2600, 0x27BF},   // misc symbols, dingbats
	{0xFE00, 0xFE0F},   // variation selectors
	{0x200D, 0x200D},   // zero-width joiner
}

func stripEmoji(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		emoji := false
		for _, rng := range emojiRanges {
			if r >= rng[0] && r <= rng[1] {
				emoji = true
				break
			}
		}
		if !emoji {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Canonicalize applies the canonicalization pipeline: lowercase, strip
// emoji, collapse whitespace, strip non-word characters, trim.
func Canonicalize(text string) string {
	s := strings.ToLower(text)
	s = stripEmoji(s)
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = nonWordRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// ContentHash returns a 16-hex-char fingerprint of the canonicalized text.
func ContentHash(text string) string {
	h := sha256.Sum256([]byte(Canonicalize(text)))
	return hex.EncodeToString(h[:])[:16]
}

// StableID computes the persistence key for a post, in priority order:
// the scraper-assigned external ID, an MD5 digest of the source URL,
// or the content hash. Re-ingesting the same post must upsert the same
// record, never create a second one.
func StableID(post *domain.RawPost) string {
	if post.ExternalID != "" {
		return post.ExternalID
	}
	if post.SourceURL != "" {
		sum := md5.Sum([]byte(post.SourceURL))
		return hex.EncodeToString(sum[:])
	}
	return ContentHash(post.Text)
}
