package asin

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{
			name:     "dp path",
			url:      "https://www.amazon.com/dp/B000123456",
			expected: "B000123456",
		},
		{
			name:     "dp path with product slug",
			url:      "https://www.amazon.com/Cotton-Bath-Towel/dp/B07XJ8C8F5?ref=sr_1_3",
			expected: "B07XJ8C8F5",
		},
		{
			name:     "gp product path",
			url:      "https://www.amazon.com/gp/product/B08N5WRWNW",
			expected: "B08N5WRWNW",
		},
		{
			name:     "trailing slash",
			url:      "https://www.amazon.com/dp/B000123456/",
			expected: "B000123456",
		},
		{
			name:     "fallback to last 10-char segment",
			url:      "https://www.amazon.com/product/B0C1D2E3F4",
			expected: "B0C1D2E3F4",
		},
		{
			name:     "fallback scans from the end",
			url:      "https://www.amazon.com/ABCDEFGHIJ/other/B0C1D2E3F4",
			expected: "B0C1D2E3F4",
		},
		{
			name:     "lowercase fallback segment accepted",
			url:      "https://example.com/items/b000123456",
			expected: "b000123456",
		},
		{
			name:     "no identifier",
			url:      "https://www.amazon.com/gp/help/customer",
			expected: "",
		},
		{
			name:     "segment too short",
			url:      "https://www.amazon.com/dp/B123",
			expected: "",
		},
		{
			name:     "segment with punctuation rejected",
			url:      "https://example.com/B00012-456/",
			expected: "",
		},
		{
			name:     "empty url",
			url:      "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FromURL(tt.url))
		})
	}
}

func TestFromURLIdempotent(t *testing.T) {
	// Re-extracting from a URL the checker reports back unchanged must yield
	// the same identifier, otherwise every unchanged listing would look like
	// a redirect.
	url := "https://www.amazon.com/dp/B000123456"
	first := FromURL(url)
	assert.Equal(t, first, FromURL(url))
	assert.Equal(t, "B000123456", first)
}
