package model

import (
	"cmp"
	"strconv"
	"strings"
)

// VehicleConfig identifies a vehicle configuration a part fits.
//
// Empty optional fields mean "absent". The struct is comparable, so two
// configurations are the same exactly when every field matches; it is used
// directly as a map key and must never be mutated once stored.
type VehicleConfig struct {
	// Make is the manufacturer name, e.g. "Honda".
	Make string `json:"make"`

	// Year is the model year.
	Year int `json:"year"`

	// Model is the model name, e.g. "Accord".
	Model string `json:"model"`

	// Engine is an optional engine qualifier, e.g. "1.5L L4".
	Engine string `json:"engine,omitempty"`

	// FuelType is an optional fuel qualifier, e.g. "Gas" or "Hybrid".
	FuelType string `json:"fuel_type,omitempty"`

	// Aspiration is an optional induction qualifier, e.g. "Turbocharged".
	Aspiration string `json:"aspiration,omitempty"`
}

// Key returns a canonical string form of the configuration.
// Equal configurations always produce equal keys.
func (v VehicleConfig) Key() string {
	return strings.Join([]string{
		v.Make,
		strconv.Itoa(v.Year),
		v.Model,
		v.Engine,
		v.FuelType,
		v.Aspiration,
	}, "|")
}

// String returns a short human-readable label.
func (v VehicleConfig) String() string {
	label := strconv.Itoa(v.Year) + " " + v.Make + " " + v.Model
	if v.Engine != "" {
		label += " " + v.Engine
	}
	return label
}

// CompareVehicles orders configurations by make, year, model and then the
// optional qualifiers. It is suitable for slices.SortFunc.
func CompareVehicles(a, b VehicleConfig) int {
	if c := cmp.Compare(a.Make, b.Make); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Year, b.Year); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Model, b.Model); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Engine, b.Engine); c != 0 {
		return c
	}
	if c := cmp.Compare(a.FuelType, b.FuelType); c != 0 {
		return c
	}
	return cmp.Compare(a.Aspiration, b.Aspiration)
}

// Refine returns a copy of v with the non-empty qualifiers applied.
func (v VehicleConfig) Refine(engine, fuelType, aspiration string) VehicleConfig {
	if engine != "" {
		v.Engine = engine
	}
	if fuelType != "" {
		v.FuelType = fuelType
	}
	if aspiration != "" {
		v.Aspiration = aspiration
	}
	return v
}
