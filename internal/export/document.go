package export

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/zachatkinson/carpart-scraper-sub000/internal/model"
)

// FormatVersion is written to the metadata of both artifacts.
const FormatVersion = "1.0"

// PartsMetadata is the metadata block of parts.json.
type PartsMetadata struct {
	ExportDate string `json:"export_date"`
	TotalParts int    `json:"total_parts"`
	Version    string `json:"version"`
}

// CompatibilityMetadata is the metadata block of compatibility.json.
type CompatibilityMetadata struct {
	ExportDate    string `json:"export_date"`
	TotalParts    int    `json:"total_parts"`
	TotalVehicles int    `json:"total_vehicles"`
	Version       string `json:"version"`
}

// Part is one exported part.
type Part struct {
	SKU                string            `json:"sku"`
	Name               string            `json:"name"`
	Category           string            `json:"category"`
	Manufacturer       string            `json:"manufacturer"`
	Price              *json.Number      `json:"price"`
	InStock            bool              `json:"in_stock"`
	Position           string            `json:"position,omitempty"`
	Description        string            `json:"description,omitempty"`
	Specifications     map[string]string `json:"specifications"`
	Features           []string          `json:"features"`
	TechNotes          string            `json:"tech_notes,omitempty"`
	Images             []Image           `json:"images"`
	InterchangeNumbers []Interchange     `json:"interchange_numbers"`
	ScrapedAt          string            `json:"scraped_at"`
}

// Image is one exported image.
type Image struct {
	URL       string `json:"url"`
	AltText   string `json:"alt_text"`
	IsPrimary bool   `json:"is_primary"`
}

// Interchange is one exported cross-reference number.
type Interchange struct {
	Type   string `json:"type"`
	Number string `json:"number"`
}

// Vehicle is one exported vehicle configuration.
type Vehicle struct {
	Make       string `json:"make"`
	Model      string `json:"model"`
	Year       int    `json:"year"`
	Engine     string `json:"engine,omitempty"`
	FuelType   string `json:"fuel_type,omitempty"`
	Aspiration string `json:"aspiration,omitempty"`
}

// Entry is one exported compatibility entry.
type Entry struct {
	PartSKU  string    `json:"part_sku"`
	Vehicles []Vehicle `json:"vehicles"`
}

// PartsDocument is the whole parts.json document.
type PartsDocument struct {
	Metadata PartsMetadata `json:"metadata"`
	Parts    []Part        `json:"parts"`
}

// CompatibilityDocument is the whole compatibility.json document.
type CompatibilityDocument struct {
	Metadata      CompatibilityMetadata `json:"metadata"`
	Compatibility []Entry               `json:"compatibility"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func toPart(p model.PartRecord) Part {
	out := Part{
		SKU:                p.SKU,
		Name:               p.Name,
		Category:           p.Category,
		Manufacturer:       p.Manufacturer,
		InStock:            p.InStock,
		Position:           p.Position,
		Description:        p.Description,
		Specifications:     p.Specifications,
		Features:           p.Features,
		TechNotes:          p.TechNotes,
		Images:             make([]Image, 0, len(p.Images)),
		InterchangeNumbers: make([]Interchange, 0, len(p.InterchangeNumbers)),
		ScrapedAt:          formatTime(p.ScrapedAt),
	}
	if p.Price != nil {
		n := json.Number(p.Price.StringFixed(2))
		out.Price = &n
	}
	if out.Specifications == nil {
		out.Specifications = map[string]string{}
	}
	if out.Features == nil {
		out.Features = []string{}
	}
	for _, img := range p.Images {
		out.Images = append(out.Images, Image(img))
	}
	for _, ic := range p.InterchangeNumbers {
		out.InterchangeNumbers = append(out.InterchangeNumbers, Interchange(ic))
	}
	return out
}

func toVehicle(v model.VehicleConfig) Vehicle {
	return Vehicle{
		Make:       v.Make,
		Model:      v.Model,
		Year:       v.Year,
		Engine:     v.Engine,
		FuelType:   v.FuelType,
		Aspiration: v.Aspiration,
	}
}

// sortedParts returns parts ordered by SKU without modifying the input.
func sortedParts(parts []model.PartRecord) []model.PartRecord {
	out := slices.Clone(parts)
	slices.SortFunc(out, func(a, b model.PartRecord) int {
		switch {
		case a.SKU < b.SKU:
			return -1
		case a.SKU > b.SKU:
			return 1
		}
		return 0
	})
	return out
}

// sortedEntries flattens entries into SKU order, dropping SKUs without
// vehicles and sorting each vehicle list.
func sortedEntries(entries map[string][]model.VehicleConfig) []Entry {
	skus := make([]string, 0, len(entries))
	for sku, vehicles := range entries {
		if len(vehicles) > 0 {
			skus = append(skus, sku)
		}
	}
	slices.Sort(skus)

	out := make([]Entry, 0, len(skus))
	for _, sku := range skus {
		vehicles := slices.Clone(entries[sku])
		slices.SortFunc(vehicles, model.CompareVehicles)
		vehicles = slices.Compact(vehicles)
		e := Entry{PartSKU: sku, Vehicles: make([]Vehicle, 0, len(vehicles))}
		for _, v := range vehicles {
			e.Vehicles = append(e.Vehicles, toVehicle(v))
		}
		out = append(out, e)
	}
	return out
}

// distinctVehicles counts the distinct configurations across all entries.
func distinctVehicles(entries map[string][]model.VehicleConfig) int {
	seen := make(map[model.VehicleConfig]struct{})
	for _, vehicles := range entries {
		for _, v := range vehicles {
			seen[v] = struct{}{}
		}
	}
	return len(seen)
}
