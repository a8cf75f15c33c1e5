package browser

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/realpulse/bds-harvester/internal/crawl"
	"github.com/realpulse/bds-harvester/internal/listing"
	"github.com/realpulse/bds-harvester/internal/textutil"
)

var _ crawl.Session = (*Session)(nil)

var (
	imageCDNPattern = regexp.MustCompile(`(https://file4\.batdongsan\.com\.vn)/(?:resize|crop)/[^/]+/(.+)`)
	mapPinPattern   = regexp.MustCompile(`!3d([0-9.\-]+)!4d([0-9.\-]+)`)
	mapQueryPattern = regexp.MustCompile(`q=([0-9.\-]+),([0-9.\-]+)`)
)

// parseDetail extracts every field of a detail page from its rendered HTML.
// Every section is independently best-effort: a missing block leaves its
// fields empty and never fails the parse.
func parseDetail(html, url string) (listing.RawListing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return listing.RawListing{}, err
	}

	raw := listing.RawListing{Href: url}
	raw.Title = text(doc, "h1.re__pr-title")
	raw.Location = text(doc, "#product-detail-web span.re__pr-short-description.js__pr-address")
	raw.Description = text(doc, "div.re__section-body.re__detail-content.js__section-body.js__pr-description")

	parseShortInfo(doc, &raw)
	parseSpecs(doc, &raw)
	parseConfig(doc, &raw)
	parseImages(doc, &raw)
	parseMap(doc, &raw)

	// The phone number sits behind a per-listing reveal interaction tied to
	// a verified viewer, so it is not collected.
	raw.AgentPhone = ""
	return raw, nil
}

func text(doc *goquery.Document, selector string) string {
	return strings.TrimSpace(doc.Find(selector).First().Text())
}

// parseShortInfo reads the headline price/area strip. Labels vary between
// listings, so they are matched on folded keywords.
func parseShortInfo(doc *goquery.Document, raw *listing.RawListing) {
	doc.Find(".re__pr-short-info .re__pr-short-info-item").Each(func(_ int, item *goquery.Selection) {
		label := strings.TrimSpace(item.Find(".re__pr-short-info-item-title").Text())
		if label == "" {
			label = strings.TrimSpace(item.Text())
		}
		value := strings.TrimSpace(item.Find(".re__pr-short-info-item-value").Text())
		if value == "" {
			return
		}
		folded := textutil.Fold(label)
		switch {
		case raw.PricePerM2 == "" && strings.Contains(folded, "gia/m"):
			raw.PricePerM2 = value
		case raw.Price == "" && strings.Contains(folded, "gia") && !strings.Contains(folded, "/m"):
			raw.Price = value
		case raw.Area == "" && (strings.Contains(folded, "dien tich") ||
			strings.HasPrefix(folded, "dt") ||
			strings.Contains(value, "m²") || strings.Contains(value, "m2")):
			raw.Area = value
		}
	})
}

// parseSpecs reads the labeled spec table in document order and backfills
// the headline fields when the short-info strip was absent.
func parseSpecs(doc *goquery.Document, raw *listing.RawListing) {
	doc.Find(".re__pr-specs-content-item").Each(func(_ int, item *goquery.Selection) {
		key := strings.TrimSpace(item.Find(".re__pr-specs-content-item-title").Text())
		val := strings.TrimSpace(item.Find(".re__pr-specs-content-item-value").Text())
		if key == "" || val == "" {
			return
		}
		raw.Specs.Set(key, val)
	})

	if raw.Price == "" {
		if v, ok := raw.Specs.Get("Khoảng giá"); ok {
			raw.Price = v
		}
	}
	if raw.Area == "" {
		if v, ok := raw.Specs.Get("Diện tích"); ok {
			raw.Area = v
		}
	}
	if raw.PricePerM2 == "" {
		if v, ok := raw.Specs.Get("Giá/m²"); ok {
			raw.PricePerM2 = v
		}
	}
}

// parseConfig reads the posting metadata block; the posted and expiration
// dates live there under fixed labels.
func parseConfig(doc *goquery.Document, raw *listing.RawListing) {
	doc.Find(".re__pr-short-info-item.js__pr-config-item").Each(func(_ int, item *goquery.Selection) {
		key := strings.TrimSpace(item.Find(".title").Text())
		val := strings.TrimSpace(item.Find(".value").Text())
		if key == "" || val == "" {
			return
		}
		raw.Config.Set(key, val)
	})

	if v, ok := raw.Config.Get("Ngày đăng"); ok {
		raw.PostedDate = v
	}
	if v, ok := raw.Config.Get("Ngày hết hạn"); ok {
		raw.ExpiredDate = v
	}
}

func parseImages(doc *goquery.Document, raw *listing.RawListing) {
	seen := map[string]bool{}
	doc.Find(".re__media-thumbs img").Each(func(_ int, img *goquery.Selection) {
		src, ok := img.Attr("src")
		if !ok || src == "" {
			src, _ = img.Attr("data-src")
		}
		clean := cleanImageURL(src)
		if clean == "" || seen[clean] {
			return
		}
		seen[clean] = true
		raw.Images = append(raw.Images, clean)
	})
	if len(raw.Images) > 0 {
		raw.Thumbnail = raw.Images[0]
	}
}

// cleanImageURL strips the CDN resize/crop path segment so the stored URL
// points at the original asset. Placeholder images are dropped.
func cleanImageURL(url string) string {
	if url == "" || strings.Contains(url, "no-photo") {
		return ""
	}
	if m := imageCDNPattern.FindStringSubmatch(url); m != nil {
		return m[1] + "/" + m[2]
	}
	return url
}

func parseMap(doc *goquery.Document, raw *listing.RawListing) {
	iframe := doc.Find("div.re__pr-map iframe").First()
	src, ok := iframe.Attr("src")
	if !ok || src == "" {
		src, _ = iframe.Attr("data-src")
	}
	if src == "" {
		return
	}
	raw.MapLink = src
	if m := mapPinPattern.FindStringSubmatch(src); m != nil {
		raw.MapCoords = m[1] + "," + m[2]
		return
	}
	if m := mapQueryPattern.FindStringSubmatch(src); m != nil {
		raw.MapCoords = m[1] + "," + m[2]
	}
}
