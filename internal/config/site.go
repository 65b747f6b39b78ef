package config

import (
	"strings"
	"time"
)

// File represents the structure of the YAML site file.
//
// The site file describes the one catalog the scraper walks: where its
// endpoints live, which makes to enumerate, and the CSS selector tables used
// to read listing and detail pages. Selector variation between part
// categories is expressed here as data.
type File struct {
	Site      Site           `yaml:"site"`
	Selectors Selectors      `yaml:"selectors"`
	Crawl     CrawlOverrides `yaml:"crawl,omitempty"`
}

// Site identifies the catalog host and its hierarchy roots.
type Site struct {
	// BaseURL is the scheme and host, e.g. "https://csf.mycarparts.com".
	BaseURL string `yaml:"base_url"`

	// Manufacturer is stamped on every part record.
	Manufacturer string `yaml:"manufacturer"`

	// Endpoints are path templates relative to BaseURL.
	Endpoints Endpoints `yaml:"endpoints"`

	// Makes are the hierarchy roots. Make ids are not discoverable through
	// the AJAX endpoints and must be listed.
	Makes []MakeRef `yaml:"makes"`
}

// Endpoints are path templates. Placeholders in braces are replaced with
// the escaped identifier.
type Endpoints struct {
	// Years returns the year fragment for a make. Placeholder: {make_id}.
	Years string `yaml:"years"`
	// Models returns the model fragment for a year. Placeholder: {year_id}.
	Models string `yaml:"models"`
	// Application is the rendered parts page. Placeholder: {application_id}.
	Application string `yaml:"application"`
	// Detail is the part detail page. Placeholder: {sku}.
	Detail string `yaml:"detail"`
}

// MakeRef is a configured hierarchy root.
type MakeRef struct {
	Name string `yaml:"name"`
	ID   int    `yaml:"id"`
}

// SelectorSet is the CSS selector table for application page rows.
// Empty fields in a category override inherit the default table's value.
type SelectorSet struct {
	Panel      string `yaml:"panel,omitempty"`
	PanelTitle string `yaml:"panel_title,omitempty"`
	Row        string `yaml:"row,omitempty"`
	SKU        string `yaml:"sku,omitempty"`
	Name       string `yaml:"name,omitempty"`
	Title      string `yaml:"title,omitempty"`
	Image      string `yaml:"image,omitempty"`
	// Specs matches "Key: Value" lines.
	Specs      string `yaml:"specs,omitempty"`
	Features   string `yaml:"features,omitempty"`
	Position   string `yaml:"position,omitempty"`
	Price      string `yaml:"price,omitempty"`
	Stock      string `yaml:"stock,omitempty"`
	Link       string `yaml:"link,omitempty"`
	Engine     string `yaml:"engine,omitempty"`
	FuelType   string `yaml:"fuel_type,omitempty"`
	Aspiration string `yaml:"aspiration,omitempty"`
}

// DetailSelectors is the CSS selector table for part detail pages.
type DetailSelectors struct {
	Name              string `yaml:"name,omitempty"`
	Description       string `yaml:"description,omitempty"`
	Price             string `yaml:"price,omitempty"`
	Manufacturer      string `yaml:"manufacturer,omitempty"`
	Stock             string `yaml:"stock,omitempty"`
	SpecRow           string `yaml:"spec_row,omitempty"`
	SpecKey           string `yaml:"spec_key,omitempty"`
	SpecValue         string `yaml:"spec_value,omitempty"`
	Features          string `yaml:"features,omitempty"`
	TechNotes         string `yaml:"tech_notes,omitempty"`
	Gallery           string `yaml:"gallery,omitempty"`
	InterchangeRow    string `yaml:"interchange_row,omitempty"`
	InterchangeType   string `yaml:"interchange_type,omitempty"`
	InterchangeNumber string `yaml:"interchange_number,omitempty"`
}

// Selectors groups the selector tables.
type Selectors struct {
	Default SelectorSet `yaml:"default"`

	// Categories maps a panel heading (case-insensitive) to overrides.
	Categories map[string]SelectorSet `yaml:"categories,omitempty"`

	Detail DetailSelectors `yaml:"detail"`
}

// CrawlOverrides lets a site file tune politeness settings.
// Nil fields keep the built-in defaults.
type CrawlOverrides struct {
	MinDelay          *time.Duration `yaml:"min_delay,omitempty"`
	MaxDelay          *time.Duration `yaml:"max_delay,omitempty"`
	RequestsPerMinute *int           `yaml:"requests_per_minute,omitempty"`
	Timeout           *time.Duration `yaml:"timeout,omitempty"`
	MaxAttempts       *int           `yaml:"max_attempts,omitempty"`
	UserAgent         string         `yaml:"user_agent,omitempty"`
}

// DefaultSelectors returns the selector tables for the standard catalog layout.
func DefaultSelectors() Selectors {
	return Selectors{
		Default: SelectorSet{
			Panel:      "div.panel",
			PanelTitle: ".panel-title",
			Row:        ".part-row",
			SKU:        ".part-number",
			Name:       ".part-name",
			Title:      ".part-title",
			Image:      "img",
			Specs:      "ul.specs li",
			Features:   "ul.features li",
			Position:   ".position",
			Price:      ".price",
			Stock:      ".stock",
			Link:       "a.detail-link",
			Engine:     ".engine",
			FuelType:   ".fuel-type",
			Aspiration: ".aspiration",
		},
		Categories: map[string]SelectorSet{},
		Detail: DetailSelectors{
			Name:              "h1.product-title",
			Description:       ".product-description",
			Price:             ".product-price",
			Manufacturer:      ".product-brand",
			Stock:             ".product-stock",
			SpecRow:           "table.specifications tr",
			SpecKey:           "th",
			SpecValue:         "td",
			Features:          "ul.product-features li",
			TechNotes:         ".tech-notes",
			Gallery:           ".product-gallery img",
			InterchangeRow:    "table.interchange tbody tr",
			InterchangeType:   "td:nth-child(1)",
			InterchangeNumber: "td:nth-child(2)",
		},
	}
}

// DefaultFile returns a File holding every default except the site identity.
func DefaultFile() *File {
	return &File{
		Site: Site{
			Manufacturer: "CSF",
			Endpoints: Endpoints{
				Years:       "/ajax/years?make_id={make_id}",
				Models:      "/ajax/models?year_id={year_id}",
				Application: "/applications/{application_id}",
				Detail:      "/items/{sku}",
			},
		},
		Selectors: DefaultSelectors(),
	}
}

// ForCategory returns the selector table for a panel heading.
// It merges the category-specific overrides with the defaults.
func (s Selectors) ForCategory(category string) SelectorSet {
	result := s.Default

	override, ok := s.Categories[strings.ToLower(strings.TrimSpace(category))]
	if !ok {
		return result
	}

	merge := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	merge(&result.Row, override.Row)
	merge(&result.SKU, override.SKU)
	merge(&result.Name, override.Name)
	merge(&result.Title, override.Title)
	merge(&result.Image, override.Image)
	merge(&result.Specs, override.Specs)
	merge(&result.Features, override.Features)
	merge(&result.Position, override.Position)
	merge(&result.Price, override.Price)
	merge(&result.Stock, override.Stock)
	merge(&result.Link, override.Link)
	merge(&result.Engine, override.Engine)
	merge(&result.FuelType, override.FuelType)
	merge(&result.Aspiration, override.Aspiration)

	return result
}

// Validate checks that the site file can drive a run.
func (f *File) Validate() error {
	if f.Site.BaseURL == "" {
		return ErrNoBaseURL
	}
	if len(f.Site.Makes) == 0 {
		return ErrNoMakes
	}
	e := f.Site.Endpoints
	if e.Years == "" || e.Models == "" || e.Application == "" || e.Detail == "" {
		return ErrMissingEndpoint
	}
	return nil
}
