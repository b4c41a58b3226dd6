// Package normalizer maps heterogeneous raw scrape payloads into the
// canonical RawPost shape. Different scrapers name the body field text,
// message or content, and the URL field url, postUrl or link; resolution
// order for each logical field is fixed (first non-empty value wins).
package normalizer

import (
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/project-tktt/go-sublets/internal/domain"
)

// ErrRejected marks a payload that is permanently unprocessable: no
// source URL and a resolved text shorter than three characters.
var ErrRejected = errors.New("rejected: post has no usable text and no source url")

// Alias tables. Order matters: the first key present and non-empty wins.
var (
	textKeys  = []string{"text", "message", "content", "body"}
	urlKeys   = []string{"url", "postUrl", "post_url", "link", "sourceUrl", "source_url"}
	imageKeys = []string{"images", "photos", "image_urls"}
	timeKeys  = []string{"scrapedAt", "scraped_at", "time", "timestamp", "postedAt", "posted_at"}
	idKeys    = []string{"id", "externalId", "external_id", "postId", "post_id"}
	groupKeys = []string{"group", "groupName", "group_name", "groupContext", "group_context"}
)

// Normalizer converts raw scraper payloads to RawPost.
type Normalizer struct {
	policy *bluemonday.Policy
}

// NewNormalizer creates a normalizer with a strict HTML-stripping policy.
func NewNormalizer() *Normalizer {
	return &Normalizer{policy: bluemonday.StrictPolicy()}
}

// Normalize resolves field aliases in a raw payload and returns the
// canonical post. Pure apart from reading its input; returns ErrRejected
// for payloads that fail the minimum-content rule.
func (n *Normalizer) Normalize(raw map[string]any) (*domain.RawPost, error) {
	if raw == nil {
		return nil, ErrRejected
	}

	post := &domain.RawPost{
		ExternalID:   getString(raw, idKeys...),
		SourceURL:    getString(raw, urlKeys...),
		Text:         n.cleanText(getString(raw, textKeys...)),
		Images:       getStringArray(raw, imageKeys...),
		PostedAt:     getTime(raw, timeKeys...),
		GroupContext: getString(raw, groupKeys...),
	}

	if len(strings.TrimSpace(post.Text)) < 3 && post.SourceURL == "" {
		return nil, ErrRejected
	}

	return post, nil
}

// cleanText strips HTML markup and decodes entities, preserving the
// plain text that extraction operates on.
func (n *Normalizer) cleanText(s string) string {
	if s == "" {
		return ""
	}
	text := n.policy.Sanitize(s)
	text = html.UnescapeString(text)
	text = strings.ReplaceAll(text, "\n\n\n", "\n\n")
	return strings.TrimSpace(text)
}

// getString tries multiple keys and returns the first non-empty value.
func getString(data map[string]any, keys ...string) string {
	for _, key := range keys {
		if val, ok := data[key]; ok {
			switch v := val.(type) {
			case string:
				if strings.TrimSpace(v) != "" {
					return strings.TrimSpace(v)
				}
			case float64:
				return fmt.Sprintf("%.0f", v)
			case int:
				return strconv.Itoa(v)
			}
		}
	}
	return ""
}

// getStringArray extracts []string from the first key that yields values.
func getStringArray(data map[string]any, keys ...string) []string {
	for _, key := range keys {
		val, ok := data[key]
		if !ok || val == nil {
			continue
		}
		switch v := val.(type) {
		case []string:
			if len(v) > 0 {
				return v
			}
		case []any:
			var result []string
			for _, item := range v {
				if s, ok := item.(string); ok && s != "" {
					result = append(result, s)
				}
			}
			if len(result) > 0 {
				return result
			}
		case string:
			if v != "" {
				return []string{v}
			}
		}
	}
	return nil
}

// getTime extracts a best-effort timestamp from the first key that parses.
func getTime(data map[string]any, keys ...string) time.Time {
	for _, key := range keys {
		val, ok := data[key]
		if !ok || val == nil {
			continue
		}
		switch v := val.(type) {
		case float64:
			return time.Unix(int64(v), 0)
		case int64:
			return time.Unix(v, 0)
		case string:
			if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
				return time.Unix(ts, 0)
			}
			for _, format := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02", "02/01/2006"} {
				if t, err := time.Parse(format, v); err == nil {
					return t
				}
			}
		case time.Time:
			return v
		}
	}
	return time.Time{}
}
