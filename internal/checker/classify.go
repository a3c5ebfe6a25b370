package checker

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Price element ids checked in priority order before any class-based fallback.
var priceIDs = []string{
	"price_inside_buybox",
	"priceblock_ourprice",
	"priceblock_dealprice",
	"priceblock_saleprice",
}

// Phrases Amazon renders on listings that cannot be purchased. A matched
// phrase is surfaced for logging only; the orderable verdict is driven
// solely by the presence of purchase buttons.
var unavailablePhrases = []string{
	"Currently unavailable",
	"We don't know when or if this item will be back",
	"This product is not available",
	"out of stock",
	"unavailable",
	"Sorry, we couldn't find that page.",
}

// Classification is the raw availability signal read from a rendered page.
type Classification struct {
	Price             string
	Orderable         bool
	UnavailablePhrase string
}

// Classify inspects rendered product page markup and reports the listed
// price and whether the page offers a way to buy. Empty or unparseable
// markup classifies as not orderable with no price.
func Classify(html string) Classification {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Classification{}
	}

	c := Classification{Price: extractPrice(doc)}

	buttons := doc.Find("input#add-to-cart-button, input#buy-now-button, button#add-to-cart-button, button#buy-now-button")
	if buttons.Length() > 0 {
		c.Orderable = true
		return c
	}

	lower := strings.ToLower(html)
	for _, phrase := range unavailablePhrases {
		if strings.Contains(lower, strings.ToLower(phrase)) {
			c.UnavailablePhrase = phrase
			break
		}
	}

	return c
}

func extractPrice(doc *goquery.Document) string {
	for _, id := range priceIDs {
		if text := strings.TrimSpace(doc.Find("#" + id).First().Text()); text != "" {
			return cleanPrice(text)
		}
	}

	whole := doc.Find("span.a-price-whole").First()
	if whole.Length() > 0 {
		w := strings.TrimSpace(whole.Text())
		w = strings.ReplaceAll(w, ",", "")
		w = strings.ReplaceAll(w, "$", "")
		w = strings.TrimSuffix(w, ".")

		fraction := "00"
		if f := strings.TrimSpace(doc.Find("span.a-price-fraction").First().Text()); f != "" {
			fraction = f
		}

		return w + "." + fraction
	}

	if text := strings.TrimSpace(doc.Find("span.a-offscreen").First().Text()); text != "" {
		return cleanPrice(text)
	}

	return ""
}

func cleanPrice(text string) string {
	text = strings.ReplaceAll(text, "\n", "")
	text = strings.ReplaceAll(text, "$", "")
	return strings.TrimSpace(text)
}
