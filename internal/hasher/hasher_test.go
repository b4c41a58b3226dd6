package hasher

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/project-tktt/go-sublets/internal/domain"
)

var hexRe = regexp.MustCompile(`^[0-9a-f]{16}$`)

func TestContentHashEquivalence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b string
	}{
		{
			name: "emoji do not affect the hash",
			a:    "דירה מהממת ברוטשילד",
			b:    "דירה מהממת ברוטשילד 🏠✨🔥",
		},
		{
			name: "case insensitive",
			a:    "Cozy Studio On Dizengoff",
			b:    "cozy studio on dizengoff",
		},
		{
			name: "whitespace collapsed",
			a:    "3 rooms   near\n\nthe beach",
			b:    "3 rooms near the beach",
		},
		{
			name: "punctuation stripped",
			a:    "Available!!! 4,500₪/month...",
			b:    "Available 4500₪month",
		},
		{
			name: "leading and trailing space trimmed",
			a:    "  sublet in florentin  ",
			b:    "sublet in florentin",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ha, hb := ContentHash(tt.a), ContentHash(tt.b)
			assert.Equal(t, ha, hb)
			assert.Regexp(t, hexRe, ha)
		})
	}
}

func TestContentHashDistinct(t *testing.T) {
	t.Parallel()
	a := ContentHash("2 rooms on Allenby, 5000 per month")
	b := ContentHash("3 rooms on Allenby, 5000 per month")
	assert.NotEqual(t, a, b)
}

func TestCanonicalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Hello World", "hello world"},
		{"hebrew preserved", "דירה ברוטשילד 12", "דירה ברוטשילד 12"},
		{"emoji removed", "nice 😍 flat", "nice flat"},
		{"only emoji", "🏠🔥✨", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Canonicalize(tt.in))
		})
	}
}

func TestStableIDPrecedence(t *testing.T) {
	t.Parallel()

	urlSum := md5.Sum([]byte("https://example.com/post/1"))

	tests := []struct {
		name string
		post domain.RawPost
		want string
	}{
		{
			name: "external id wins",
			post: domain.RawPost{ExternalID: "fb-123", SourceURL: "https://example.com/post/1", Text: "x"},
			want: "fb-123",
		},
		{
			name: "source url digest",
			post: domain.RawPost{SourceURL: "https://example.com/post/1", Text: "some text"},
			want: hex.EncodeToString(urlSum[:]),
		},
		{
			name: "content hash fallback",
			post: domain.RawPost{Text: "some text"},
			want: ContentHash("some text"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, StableID(&tt.post))
		})
	}
}

func TestStableIDDeterministic(t *testing.T) {
	t.Parallel()
	post := &domain.RawPost{SourceURL: "https://example.com/post/42"}
	assert.Equal(t, StableID(post), StableID(post))
}
