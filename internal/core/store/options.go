package store

import (
	"fmt"
	"strings"
)

// Visibility is the gallery visibility of a package.
type Visibility string

const (
	VisibilityPublic         Visibility = "public"
	VisibilityPrivate        Visibility = "private"
	VisibilityPublicPreview  Visibility = "public_preview"
	VisibilityPrivatePreview Visibility = "private_preview"
)

// ParseVisibility accepts a visibility name in any case.
func ParseVisibility(s string) (Visibility, error) {
	v := Visibility(strings.ToLower(strings.TrimSpace(s)))
	switch v {
	case VisibilityPublic, VisibilityPrivate, VisibilityPublicPreview, VisibilityPrivatePreview:
		return v, nil
	}
	return "", fmt.Errorf("unknown visibility %q (want public, private, public_preview or private_preview)", s)
}

// Flags returns the gallery flags v adds and whether the package is public.
func (v Visibility) Flags() (flags []string, public bool) {
	switch v {
	case VisibilityPublic:
		return []string{"Public"}, true
	case VisibilityPrivate:
		return []string{"Private"}, false
	case VisibilityPublicPreview:
		return []string{"Public", "Preview"}, true
	case VisibilityPrivatePreview:
		return []string{"Private", "Preview"}, false
	}
	return nil, false
}

// Pricing is the gallery pricing model of a package.
type Pricing string

const (
	PricingFree  Pricing = "free"
	PricingPaid  Pricing = "paid"
	PricingTrial Pricing = "trial"
)

// ParsePricing accepts a pricing name in any case.
func ParsePricing(s string) (Pricing, error) {
	p := Pricing(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case PricingFree, PricingPaid, PricingTrial:
		return p, nil
	}
	return "", fmt.Errorf("unknown pricing %q (want free, paid or trial)", s)
}

// Flag returns the gallery flag for p.
func (p Pricing) Flag() string {
	if p == "" {
		return ""
	}
	return strings.ToUpper(string(p[:1])) + string(p[1:])
}

// Granularity selects which unit version components follow the package
// version.
type Granularity string

const (
	GranularityMajor Granularity = "major"
	GranularityMinor Granularity = "minor"
	GranularityPatch Granularity = "patch"
)

// ParseGranularity accepts a granularity name in any case.
func ParseGranularity(s string) (Granularity, error) {
	g := Granularity(strings.ToLower(strings.TrimSpace(s)))
	switch g {
	case GranularityMajor, GranularityMinor, GranularityPatch:
		return g, nil
	}
	return "", fmt.Errorf("unknown version type %q (want major, minor or patch)", s)
}

var (
	visibilityFlags = []string{"Public", "Private", "Preview"}
	pricingFlags    = []string{"Free", "Paid", "Trial"}
)

// Options is the batch-edit configuration accepted by Editor.ApplyOptions.
// A nil field leaves the corresponding value untouched.
type Options struct {
	PublisherID                  *string      `toml:"publisher_id,omitempty" json:"publisherId,omitempty"`
	ExtensionID                  *string      `toml:"extension_id,omitempty" json:"extensionId,omitempty"`
	ExtensionVersion             *string      `toml:"extension_version,omitempty" json:"extensionVersion,omitempty"`
	ExtensionName                *string      `toml:"extension_name,omitempty" json:"extensionName,omitempty"`
	ExtensionDescription         *string      `toml:"extension_description,omitempty" json:"extensionDescription,omitempty"`
	ExtensionVisibility          *Visibility  `toml:"extension_visibility,omitempty" json:"extensionVisibility,omitempty"`
	ExtensionPricing             *Pricing     `toml:"extension_pricing,omitempty" json:"extensionPricing,omitempty"`
	UpdateUnitsVersion           *bool        `toml:"update_units_version,omitempty" json:"updateUnitsVersion,omitempty"`
	UpdateUnitsVersionType       *Granularity `toml:"update_units_version_type,omitempty" json:"updateUnitsVersionType,omitempty"`
	UpdateUnitsID                *bool        `toml:"update_units_id,omitempty" json:"updateUnitsId,omitempty"`
	SynchronizeBinaryFileEntries *bool        `toml:"synchronize_binary_file_entries,omitempty" json:"synchronizeBinaryFileEntries,omitempty"`
}

// Validate checks the enumerated fields.
func (o Options) Validate() error {
	if o.ExtensionVisibility != nil {
		if _, err := ParseVisibility(string(*o.ExtensionVisibility)); err != nil {
			return err
		}
	}
	if o.ExtensionPricing != nil {
		if _, err := ParsePricing(string(*o.ExtensionPricing)); err != nil {
			return err
		}
	}
	if o.UpdateUnitsVersionType != nil {
		if _, err := ParseGranularity(string(*o.UpdateUnitsVersionType)); err != nil {
			return err
		}
	}
	return nil
}

// Merge returns o with every non-nil field of over applied on top.
func (o Options) Merge(over Options) Options {
	if over.PublisherID != nil {
		o.PublisherID = over.PublisherID
	}
	if over.ExtensionID != nil {
		o.ExtensionID = over.ExtensionID
	}
	if over.ExtensionVersion != nil {
		o.ExtensionVersion = over.ExtensionVersion
	}
	if over.ExtensionName != nil {
		o.ExtensionName = over.ExtensionName
	}
	if over.ExtensionDescription != nil {
		o.ExtensionDescription = over.ExtensionDescription
	}
	if over.ExtensionVisibility != nil {
		o.ExtensionVisibility = over.ExtensionVisibility
	}
	if over.ExtensionPricing != nil {
		o.ExtensionPricing = over.ExtensionPricing
	}
	if over.UpdateUnitsVersion != nil {
		o.UpdateUnitsVersion = over.UpdateUnitsVersion
	}
	if over.UpdateUnitsVersionType != nil {
		o.UpdateUnitsVersionType = over.UpdateUnitsVersionType
	}
	if over.UpdateUnitsID != nil {
		o.UpdateUnitsID = over.UpdateUnitsID
	}
	if over.SynchronizeBinaryFileEntries != nil {
		o.SynchronizeBinaryFileEntries = over.SynchronizeBinaryFileEntries
	}
	return o
}
