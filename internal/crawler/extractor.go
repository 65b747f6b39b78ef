package crawler

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/zachatkinson/carpart-scraper-sub000/internal/config"
	"github.com/zachatkinson/carpart-scraper-sub000/internal/log"
	"github.com/zachatkinson/carpart-scraper-sub000/internal/model"
)

// ErrParse is returned when a page cannot be parsed as HTML at all.
var ErrParse = errors.New("failed to parse page")

// Page is the outcome of extracting one application page.
type Page struct {
	// Listings are the extracted rows in page order.
	Listings []model.Listing

	// SkippedRows counts rows dropped because they had no SKU or sat in a
	// panel without a heading.
	SkippedRows int
}

// Extractor reads part records out of application and detail pages.
// What to read is driven entirely by the selector tables; one Extractor
// serves every part category.
type Extractor struct {
	selectors    config.Selectors
	manufacturer string
	urls         *URLBuilder
	now          func() time.Time
	logger       *slog.Logger
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithManufacturer sets the manufacturer stamped on every record.
func WithManufacturer(name string) ExtractorOption {
	return func(e *Extractor) { e.manufacturer = name }
}

// WithURLBuilder sets the resolver for relative image and link URLs.
func WithURLBuilder(b *URLBuilder) ExtractorOption {
	return func(e *Extractor) { e.urls = b }
}

// WithClock sets the clock used for ScrapedAt.
func WithClock(now func() time.Time) ExtractorOption {
	return func(e *Extractor) { e.now = now }
}

// WithExtractorLogger sets the logger used for skipped-row warnings.
func WithExtractorLogger(l *slog.Logger) ExtractorOption {
	return func(e *Extractor) { e.logger = l }
}

// NewExtractor creates an Extractor for the given selector tables.
func NewExtractor(selectors config.Selectors, opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		selectors:    selectors,
		manufacturer: "CSF",
		now:          time.Now,
		logger:       log.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract parses a rendered application page. Every listing is bound to
// vehicle, refined by any engine, fuel type, or aspiration qualifier on the
// row. Records are partial: they carry what the listing shows and have
// Source set to listing.
func (e *Extractor) Extract(doc []byte, vehicle model.VehicleConfig) (*Page, error) {
	root, err := goquery.NewDocumentFromReader(bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	scrapedAt := e.now().UTC()
	page := &Page{}
	defaults := e.selectors.Default

	root.Find(defaults.Panel).Each(func(_ int, panel *goquery.Selection) {
		category := normalizeCategory(cleanText(panel.Find(defaults.PanelTitle).First().Text()))
		sel := e.selectors.ForCategory(category)
		rows := panel.Find(sel.Row)

		if category == "" {
			if n := rows.Length(); n > 0 {
				e.logger.Warn("skipping panel without heading", "vehicle", vehicle.String(), "rows", n)
				page.SkippedRows += n
			}
			return
		}

		rows.Each(func(i int, row *goquery.Selection) {
			listing, ok := e.extractRow(row, category, sel, vehicle, scrapedAt)
			if !ok {
				e.logger.Warn("skipping row without SKU",
					"vehicle", vehicle.String(),
					"category", category,
					"row", i,
				)
				page.SkippedRows++
				return
			}
			page.Listings = append(page.Listings, listing)
		})
	})

	return page, nil
}

func (e *Extractor) extractRow(
	row *goquery.Selection,
	category string,
	sel config.SelectorSet,
	vehicle model.VehicleConfig,
	scrapedAt time.Time,
) (model.Listing, bool) {
	sku := cleanSKU(textOf(row, sel.SKU))
	if sku == "" {
		return model.Listing{}, false
	}

	name := textOf(row, sel.Name)
	if name == "" {
		name = textOf(row, sel.Title)
	}
	if name == "" {
		name = cleanText(row.AttrOr("title", ""))
	}
	if name == "" {
		name = sku + " - " + category
	}

	rec := model.PartRecord{
		SKU:            sku,
		Name:           name,
		Category:       category,
		Price:          parsePrice(textOf(row, sel.Price)),
		Manufacturer:   e.manufacturer,
		InStock:        parseStock(textOf(row, sel.Stock)),
		Position:       textOf(row, sel.Position),
		Specifications: parseSpecLines(row, sel.Specs),
		Features:       textsOf(row, sel.Features),
		Source:         model.SourceListing,
		ScrapedAt:      scrapedAt,
	}

	if sel.Image != "" {
		if img := row.Find(sel.Image).First(); img.Length() > 0 {
			if src := e.resolve(imageSource(img)); src != "" {
				rec.Images = []model.Image{{
					URL:       src,
					AltText:   cleanText(img.AttrOr("alt", "")),
					IsPrimary: true,
				}}
			}
		}
	}

	if sel.Link != "" {
		if href, ok := row.Find(sel.Link).First().Attr("href"); ok {
			rec.DetailURL = e.resolve(href)
		}
	}

	fitted := vehicle.Refine(
		textOf(row, sel.Engine),
		textOf(row, sel.FuelType),
		textOf(row, sel.Aspiration),
	)

	return model.Listing{Part: rec, Vehicle: fitted}, true
}

// ExtractDetail enriches base with the fields found on its detail page.
// Fields the page does not show keep the listing value.
func (e *Extractor) ExtractDetail(doc []byte, base model.PartRecord) (model.PartRecord, error) {
	root, err := goquery.NewDocumentFromReader(bytes.NewReader(doc))
	if err != nil {
		return model.PartRecord{}, fmt.Errorf("%w: %w", ErrParse, err)
	}

	sel := e.selectors.Detail
	rec := clonePart(base)
	body := root.Selection

	if v := textOf(body, sel.Name); v != "" {
		rec.Name = v
	}
	if v := textOf(body, sel.Description); v != "" {
		rec.Description = v
	}
	if p := parsePrice(textOf(body, sel.Price)); p != nil {
		rec.Price = p
	}
	if v := textOf(body, sel.Manufacturer); v != "" {
		rec.Manufacturer = v
	}
	if v := textOf(body, sel.Stock); v != "" {
		rec.InStock = parseStock(v)
	}
	if v := textOf(body, sel.TechNotes); v != "" {
		rec.TechNotes = v
	}
	if f := textsOf(body, sel.Features); len(f) > 0 {
		rec.Features = f
	}

	if sel.SpecRow != "" {
		body.Find(sel.SpecRow).Each(func(_ int, tr *goquery.Selection) {
			key := strings.TrimSuffix(textOf(tr, sel.SpecKey), ":")
			val := textOf(tr, sel.SpecValue)
			if key == "" || val == "" {
				return
			}
			if rec.Specifications == nil {
				rec.Specifications = make(map[string]string)
			}
			rec.Specifications[key] = val
		})
	}

	if sel.Gallery != "" {
		var images []model.Image
		seen := make(map[string]struct{})
		body.Find(sel.Gallery).Each(func(_ int, img *goquery.Selection) {
			src := e.resolve(imageSource(img))
			if src == "" {
				return
			}
			if _, dup := seen[src]; dup {
				return
			}
			seen[src] = struct{}{}
			images = append(images, model.Image{
				URL:       src,
				AltText:   cleanText(img.AttrOr("alt", "")),
				IsPrimary: len(images) == 0,
			})
		})
		if len(images) > 0 {
			rec.Images = images
		}
	}

	if sel.InterchangeRow != "" {
		var numbers []model.Interchange
		body.Find(sel.InterchangeRow).Each(func(_ int, tr *goquery.Selection) {
			typ := textOf(tr, sel.InterchangeType)
			num := textOf(tr, sel.InterchangeNumber)
			if typ == "" || num == "" {
				return
			}
			numbers = append(numbers, model.Interchange{Type: typ, Number: num})
		})
		if len(numbers) > 0 {
			rec.InterchangeNumbers = numbers
		}
	}

	rec.Source = model.SourceDetail
	rec.ScrapedAt = e.now().UTC()
	return rec, nil
}

func (e *Extractor) resolve(ref string) string {
	if e.urls == nil {
		return strings.TrimSpace(ref)
	}
	return e.urls.Resolve(ref)
}

// textOf returns the cleaned text of the first match of selector under s.
func textOf(s *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return cleanText(s.Find(selector).First().Text())
}

// textsOf returns the cleaned, non-empty texts of every match.
func textsOf(s *goquery.Selection, selector string) []string {
	if selector == "" {
		return nil
	}
	var out []string
	s.Find(selector).Each(func(_ int, item *goquery.Selection) {
		if t := cleanText(item.Text()); t != "" {
			out = append(out, t)
		}
	})
	return out
}

// parseSpecLines reads "Key: Value" lines. Lines without a colon or with an
// empty side are ignored.
func parseSpecLines(s *goquery.Selection, selector string) map[string]string {
	lines := textsOf(s, selector)
	if len(lines) == 0 {
		return nil
	}
	specs := make(map[string]string, len(lines))
	for _, line := range lines {
		key, val, ok := strings.Cut(line, ":")
		key, val = strings.TrimSpace(key), strings.TrimSpace(val)
		if !ok || key == "" || val == "" {
			continue
		}
		specs[key] = val
	}
	if len(specs) == 0 {
		return nil
	}
	return specs
}

func imageSource(img *goquery.Selection) string {
	for _, attr := range []string{"data-src", "data-lazy-src", "src"} {
		if v, ok := img.Attr(attr); ok && strings.TrimSpace(v) != "" && !strings.HasPrefix(v, "data:") {
			return v
		}
	}
	return ""
}

// parsePrice reads a currency amount such as "$1,249.99". Text without a
// number, such as "Call for price", yields nil.
func parsePrice(text string) *decimal.Decimal {
	var sb strings.Builder
	for _, r := range text {
		if unicode.IsDigit(r) || r == '.' {
			sb.WriteRune(r)
		}
	}
	if sb.Len() == 0 {
		return nil
	}
	d, err := decimal.NewFromString(sb.String())
	if err != nil {
		return nil
	}
	return &d
}

func parseStock(text string) bool {
	t := strings.ToLower(text)
	if t == "" || strings.Contains(t, "out of stock") || strings.Contains(t, "unavailable") {
		return false
	}
	return strings.Contains(t, "in stock") || strings.Contains(t, "available")
}

// cleanText applies NFKC normalization and collapses whitespace.
func cleanText(s string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(s)), " ")
}

func cleanSKU(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "#")
	for _, prefix := range []string{"SKU:", "Part #", "Part#"} {
		if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
			s = s[len(prefix):]
		}
	}
	return strings.TrimSpace(s)
}

// normalizeCategory title-cases all-caps headings such as "INVERTER COOLER".
func normalizeCategory(s string) string {
	if s == "" || strings.ToUpper(s) != s || strings.ToLower(s) == s {
		return s
	}
	return cases.Title(language.English).String(s)
}

func clonePart(p model.PartRecord) model.PartRecord {
	out := p
	out.Specifications = maps.Clone(p.Specifications)
	out.Features = append([]string(nil), p.Features...)
	out.Images = append([]model.Image(nil), p.Images...)
	out.InterchangeNumbers = append([]model.Interchange(nil), p.InterchangeNumbers...)
	if p.Price != nil {
		price := *p.Price
		out.Price = &price
	}
	return out
}
