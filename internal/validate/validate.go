// Package validate checks and normalizes part records before they enter
// the registry.
package validate

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/zachatkinson/carpart-scraper-sub000/internal/model"
)

// ErrInvalidRecord is wrapped by every *ValidationError.
var ErrInvalidRecord = errors.New("invalid part record")

// skuPattern accepts catalog part numbers such as "3951", "CC-3985" or "10650.1".
var skuPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9\-\.]*$`)

// FieldError describes one failed rule.
type FieldError struct {
	Field string
	Rule  string
	Value string
}

// ValidationError lists every rule a record failed.
type ValidationError struct {
	SKU    string
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s failed %q", f.Field, f.Rule))
	}
	return fmt.Sprintf("%s %q: %s", ErrInvalidRecord, e.SKU, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrInvalidRecord }

// Validator validates part records with struct tags plus a few
// cross-field rules.
type Validator struct {
	v *validator.Validate
}

// New creates a Validator with the custom "sku" rule registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	mustRegister(v, "sku", func(fl validator.FieldLevel) bool {
		return skuPattern.MatchString(fl.Field().String())
	})
	return &Validator{v: v}
}

// mustRegister panics when a static rule cannot be registered, since every
// later Struct call would otherwise fail on the unknown tag.
func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validate: register %q rule: %v", tag, err))
	}
}

// Validate returns the normalized record, or a *ValidationError when a rule
// fails. The input is not modified.
func (v *Validator) Validate(rec model.PartRecord) (model.PartRecord, error) {
	out := Normalize(rec)

	var fields []FieldError
	if err := v.v.Struct(out); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return model.PartRecord{}, err
		}
		for _, fe := range verrs {
			fields = append(fields, FieldError{
				Field: fe.Namespace(),
				Rule:  fe.Tag(),
				Value: fmt.Sprint(fe.Value()),
			})
		}
	}

	if out.Price != nil && out.Price.IsNegative() {
		fields = append(fields, FieldError{Field: "PartRecord.Price", Rule: "gte=0", Value: out.Price.String()})
	}

	if len(fields) > 0 {
		return model.PartRecord{}, &ValidationError{SKU: rec.SKU, Fields: fields}
	}
	return out, nil
}

// Normalize trims text fields, drops empty or duplicate list entries and
// non-absolute image URLs, and makes sure exactly one image is primary.
func Normalize(rec model.PartRecord) model.PartRecord {
	out := rec
	out.SKU = strings.TrimSpace(rec.SKU)
	out.Name = strings.TrimSpace(rec.Name)
	out.Category = strings.TrimSpace(rec.Category)
	out.Manufacturer = strings.TrimSpace(rec.Manufacturer)
	out.Position = strings.TrimSpace(rec.Position)
	out.Description = strings.TrimSpace(rec.Description)
	out.TechNotes = strings.TrimSpace(rec.TechNotes)
	out.DetailURL = strings.TrimSpace(rec.DetailURL)
	if out.Source == "" {
		out.Source = model.SourceListing
	}

	out.Specifications = nil
	for k, val := range rec.Specifications {
		k, val = strings.TrimSpace(k), strings.TrimSpace(val)
		if k == "" || val == "" {
			continue
		}
		if out.Specifications == nil {
			out.Specifications = make(map[string]string, len(rec.Specifications))
		}
		out.Specifications[k] = val
	}

	out.Features = nil
	for _, f := range rec.Features {
		f = strings.TrimSpace(f)
		if f != "" && !slices.Contains(out.Features, f) {
			out.Features = append(out.Features, f)
		}
	}

	out.Images = nil
	primary := -1
	for _, img := range rec.Images {
		img.URL = strings.TrimSpace(img.URL)
		if !isAbsoluteURL(img.URL) || slices.ContainsFunc(out.Images, func(o model.Image) bool { return o.URL == img.URL }) {
			continue
		}
		if img.IsPrimary {
			if primary >= 0 {
				img.IsPrimary = false
			} else {
				primary = len(out.Images)
			}
		}
		out.Images = append(out.Images, img)
	}
	if primary < 0 && len(out.Images) > 0 {
		out.Images[0].IsPrimary = true
	}

	out.InterchangeNumbers = nil
	for _, ic := range rec.InterchangeNumbers {
		ic.Type, ic.Number = strings.TrimSpace(ic.Type), strings.TrimSpace(ic.Number)
		if ic.Type == "" || ic.Number == "" || slices.Contains(out.InterchangeNumbers, ic) {
			continue
		}
		out.InterchangeNumbers = append(out.InterchangeNumbers, ic)
	}

	return out
}

func isAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
