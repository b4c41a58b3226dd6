package normalizer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAliases(t *testing.T) {
	t.Parallel()
	n := NewNormalizer()

	tests := []struct {
		name    string
		raw     map[string]any
		wantURL string
		wantTxt string
		wantID  string
	}{
		{
			name:    "canonical keys",
			raw:     map[string]any{"text": "3 rooms on Dizengoff", "url": "https://fb.com/p/1", "id": "p1"},
			wantURL: "https://fb.com/p/1",
			wantTxt: "3 rooms on Dizengoff",
			wantID:  "p1",
		},
		{
			name:    "message and postUrl aliases",
			raw:     map[string]any{"message": "sublet in florentin", "postUrl": "https://fb.com/p/2"},
			wantURL: "https://fb.com/p/2",
			wantTxt: "sublet in florentin",
		},
		{
			name:    "snake_case aliases",
			raw:     map[string]any{"content": "studio near habima", "source_url": "https://fb.com/p/3", "external_id": "e3"},
			wantURL: "https://fb.com/p/3",
			wantTxt: "studio near habima",
			wantID:  "e3",
		},
		{
			name:    "first non-empty wins",
			raw:     map[string]any{"text": "", "message": "fallback body", "url": "https://fb.com/p/4"},
			wantURL: "https://fb.com/p/4",
			wantTxt: "fallback body",
		},
		{
			name:   "numeric id coerced",
			raw:    map[string]any{"text": "roomy apartment", "id": float64(987654)},
			wantID: "987654",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			post, err := n.Normalize(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, post.SourceURL)
			assert.Equal(t, tt.wantTxt, post.Text)
			assert.Equal(t, tt.wantID, post.ExternalID)
		})
	}
}

func TestNormalizeRejection(t *testing.T) {
	t.Parallel()
	n := NewNormalizer()

	tests := []struct {
		name string
		raw  map[string]any
	}{
		{"nil payload", nil},
		{"empty payload", map[string]any{}},
		{"text too short, no url", map[string]any{"text": "hi"}},
		{"whitespace only", map[string]any{"text": "   \n "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := n.Normalize(tt.raw)
			assert.ErrorIs(t, err, ErrRejected)
		})
	}

	// A URL alone keeps the post processable.
	post, err := n.Normalize(map[string]any{"url": "https://fb.com/p/9"})
	require.NoError(t, err)
	assert.Equal(t, "https://fb.com/p/9", post.SourceURL)
}

func TestNormalizeStripsHTML(t *testing.T) {
	t.Parallel()
	n := NewNormalizer()

	post, err := n.Normalize(map[string]any{
		"text": `<div><b>Great</b> flat &amp; balcony<script>alert(1)</script></div>`,
	})
	require.NoError(t, err)
	assert.Equal(t, "Great flat & balcony", post.Text)
}

func TestNormalizeImages(t *testing.T) {
	t.Parallel()
	n := NewNormalizer()

	post, err := n.Normalize(map[string]any{
		"text":   "flat with photos",
		"photos": []any{"https://cdn.example.com/a.jpg", "", "https://cdn.example.com/b.jpg"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://cdn.example.com/a.jpg", "https://cdn.example.com/b.jpg"}, post.Images)
}

func TestNormalizeTimestamps(t *testing.T) {
	t.Parallel()
	n := NewNormalizer()

	tests := []struct {
		name string
		raw  map[string]any
		want time.Time
	}{
		{
			name: "unix seconds",
			raw:  map[string]any{"text": "dated post", "timestamp": float64(1735689600)},
			want: time.Unix(1735689600, 0),
		},
		{
			name: "rfc3339 string",
			raw:  map[string]any{"text": "dated post", "postedAt": "2026-06-01T10:00:00Z"},
			want: time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			name: "unparseable is zero",
			raw:  map[string]any{"text": "dated post", "time": "yesterday-ish"},
			want: time.Time{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			post, err := n.Normalize(tt.raw)
			require.NoError(t, err)
			assert.True(t, post.PostedAt.Equal(tt.want), "got %v want %v", post.PostedAt, tt.want)
		})
	}
}
