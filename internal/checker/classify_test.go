package checker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_PriceExtraction(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		expected string
	}{
		{
			name:     "buybox price id wins",
			html:     `<span id="price_inside_buybox">$19.99</span><span class="a-price-whole">24</span><span class="a-price-fraction">50</span>`,
			expected: "19.99",
		},
		{
			name:     "priceblock ourprice",
			html:     `<span id="priceblock_ourprice">$34.95</span>`,
			expected: "34.95",
		},
		{
			name:     "deal price when ourprice missing",
			html:     `<span id="priceblock_dealprice">$12.49</span><span id="priceblock_saleprice">$15.00</span>`,
			expected: "12.49",
		},
		{
			name:     "whole and fraction spans",
			html:     `<span class="a-price-whole">24.</span><span class="a-price-fraction">99</span>`,
			expected: "24.99",
		},
		{
			name:     "whole without fraction defaults to 00",
			html:     `<span class="a-price-whole">24</span>`,
			expected: "24.00",
		},
		{
			name:     "thousands separator stripped",
			html:     `<span class="a-price-whole">1,299.</span><span class="a-price-fraction">00</span>`,
			expected: "1299.00",
		},
		{
			name:     "offscreen fallback",
			html:     `<span class="a-offscreen">$8.75</span>`,
			expected: "8.75",
		},
		{
			name:     "newlines stripped from id price",
			html:     "<span id=\"price_inside_buybox\">\n$19.99\n</span>",
			expected: "19.99",
		},
		{
			name:     "no price markup",
			html:     `<div>nothing here</div>`,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify(tt.html)
			assert.Equal(t, tt.expected, c.Price)
		})
	}
}

func TestClassify_Orderable(t *testing.T) {
	tests := []struct {
		name      string
		html      string
		orderable bool
	}{
		{
			name:      "add to cart input",
			html:      `<input id="add-to-cart-button" type="submit">`,
			orderable: true,
		},
		{
			name:      "buy now input",
			html:      `<input id="buy-now-button" type="submit">`,
			orderable: true,
		},
		{
			name:      "add to cart button element",
			html:      `<button id="add-to-cart-button">Add to Cart</button>`,
			orderable: true,
		},
		{
			name:      "buy now button element",
			html:      `<button id="buy-now-button">Buy Now</button>`,
			orderable: true,
		},
		{
			name:      "no purchase buttons",
			html:      `<div id="availability">Currently unavailable.</div>`,
			orderable: false,
		},
		{
			name:      "wrong element type ignored",
			html:      `<div id="add-to-cart-button">decoy</div>`,
			orderable: false,
		},
		{
			name:      "empty markup",
			html:      "",
			orderable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify(tt.html)
			assert.Equal(t, tt.orderable, c.Orderable)
		})
	}
}

func TestClassify_UnavailablePhrase(t *testing.T) {
	c := Classify(`<div id="availability"><span>Currently unavailable.</span></div>`)
	assert.False(t, c.Orderable)
	assert.Equal(t, "Currently unavailable", c.UnavailablePhrase)

	// Case-insensitive match
	c = Classify(`<div>OUT OF STOCK</div>`)
	assert.Equal(t, "out of stock", c.UnavailablePhrase)

	// The phrase is informational; buttons still decide orderability
	c = Classify(`<input id="add-to-cart-button"><div>Currently unavailable</div>`)
	assert.True(t, c.Orderable)
	assert.Empty(t, c.UnavailablePhrase)

	c = Classify(`<div>In stock, ships soon</div>`)
	assert.Empty(t, c.UnavailablePhrase)
}

func TestClassify_OrderableWithPrice(t *testing.T) {
	html := `
		<span id="price_inside_buybox">$19.99</span>
		<input id="add-to-cart-button" type="submit">
	`
	c := Classify(html)
	assert.True(t, c.Orderable)
	assert.Equal(t, "19.99", c.Price)
	assert.Empty(t, c.UnavailablePhrase)
}
