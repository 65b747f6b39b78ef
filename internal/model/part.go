package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Source records which page a PartRecord was last built from.
type Source string

const (
	// SourceListing marks a record extracted from an application page row.
	SourceListing Source = "listing"
	// SourceDetail marks a record enriched from the part's detail page.
	SourceDetail Source = "detail"
)

// Image is a product image reference.
type Image struct {
	// URL is the absolute image URL.
	URL string `json:"url" validate:"required,url"`
	// AltText is the image alt attribute, if any.
	AltText string `json:"alt_text,omitempty"`
	// IsPrimary marks the main image. At most one image per part is primary.
	IsPrimary bool `json:"is_primary"`
}

// Interchange is a cross-reference number from another catalog (OEM, Partslink, DPI).
type Interchange struct {
	Type   string `json:"type" validate:"required"`
	Number string `json:"number" validate:"required"`
}

// PartRecord is a catalog part. SKU is the unique key across the whole catalog;
// the same part fitting many vehicles is stored once.
type PartRecord struct {
	// SKU is the manufacturer part number, e.g. "3951".
	SKU string `json:"sku" validate:"required,sku"`

	// Name is the display name. It is never empty after validation.
	Name string `json:"name" validate:"required"`

	// Category is the part type taken from the panel heading, e.g. "Radiator".
	Category string `json:"category" validate:"required"`

	// Price is the listed price. Nil means the price is unknown.
	Price *decimal.Decimal `json:"price"`

	// Manufacturer is the brand name.
	Manufacturer string `json:"manufacturer" validate:"required"`

	// InStock reports availability as shown on the page.
	InStock bool `json:"in_stock"`

	// Position is an optional fitment position, e.g. "Front".
	Position string `json:"position,omitempty"`

	Description    string            `json:"description,omitempty"`
	Specifications map[string]string `json:"specifications,omitempty"`
	Features       []string          `json:"features,omitempty"`
	TechNotes      string            `json:"tech_notes,omitempty"`
	Images         []Image           `json:"images,omitempty" validate:"dive"`

	// InterchangeNumbers are only available from detail pages.
	InterchangeNumbers []Interchange `json:"interchange_numbers,omitempty" validate:"dive"`

	// DetailURL is the part's detail page link, when the listing provided one.
	DetailURL string `json:"detail_url,omitempty" validate:"omitempty,url"`

	// Source is the page type this record was last built from.
	Source Source `json:"source" validate:"oneof=listing detail"`

	// ScrapedAt is refreshed on every write.
	ScrapedAt time.Time `json:"scraped_at"`
}

// PrimaryImage returns the primary image, or nil when the part has none.
func (p *PartRecord) PrimaryImage() *Image {
	for i := range p.Images {
		if p.Images[i].IsPrimary {
			return &p.Images[i]
		}
	}
	return nil
}

// Listing is one extracted application-page row together with the vehicle
// configuration it fits. Row-level qualifiers are already applied to Vehicle.
type Listing struct {
	Part    PartRecord
	Vehicle VehicleConfig
}
