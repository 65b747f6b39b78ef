package crawler

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/zachatkinson/carpart-scraper-sub000/internal/config"
)

// URLBuilder expands the site's endpoint templates into absolute URLs.
type URLBuilder struct {
	base      *url.URL
	endpoints config.Endpoints
}

// NewURLBuilder creates a URLBuilder for the site.
func NewURLBuilder(site config.Site) (*URLBuilder, error) {
	base, err := url.Parse(strings.TrimRight(site.BaseURL, "/") + "/")
	if err != nil {
		return nil, err
	}
	return &URLBuilder{base: base, endpoints: site.Endpoints}, nil
}

// YearsURL returns the years endpoint for a make.
func (b *URLBuilder) YearsURL(makeID int) string {
	return b.expand(b.endpoints.Years, "{make_id}", strconv.Itoa(makeID))
}

// ModelsURL returns the models endpoint for a model year.
func (b *URLBuilder) ModelsURL(yearID int) string {
	return b.expand(b.endpoints.Models, "{year_id}", strconv.Itoa(yearID))
}

// ApplicationURL returns the application page for an application id.
func (b *URLBuilder) ApplicationURL(applicationID int) string {
	return b.expand(b.endpoints.Application, "{application_id}", strconv.Itoa(applicationID))
}

// DetailURL returns the detail page for a SKU.
func (b *URLBuilder) DetailURL(sku string) string {
	return b.expand(b.endpoints.Detail, "{sku}", url.PathEscape(sku))
}

// Resolve turns a possibly relative reference into an absolute URL.
// Unparseable references are returned unchanged.
func (b *URLBuilder) Resolve(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.base.ResolveReference(u).String()
}

func (b *URLBuilder) expand(template, placeholder, value string) string {
	return b.Resolve(strings.ReplaceAll(template, placeholder, value))
}
