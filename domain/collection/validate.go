package collection

import (
	"fmt"
	"sort"

	"github.com/artpar/cmskit/domain/field"
)

// Issue codes added on top of the field validator's.
const (
	CodeReservedSlug    = "reserved_slug"
	CodeUnknownBuiltIn  = "unknown_builtin_field"
	CodeIgnoredOverride = "ignored_override"
	CodeUnknownField    = "unknown_field"
	CodeRequiredValue   = "required"
	CodeInvalidValue    = "invalid_value"
)

// Validate checks a whole configuration: every custom field, slug
// uniqueness, slug disjointness from the built-in catalog and system
// columns, and the keys of the built-in overrides.
func Validate(cfg Config) field.Result {
	r := field.ValidateCollection(cfg.CustomFields)

	for i, f := range cfg.CustomFields {
		slug := field.Normalize(f).Slug
		if IsReserved(slug) {
			r.Add(fmt.Sprintf("customFields[%d].slug", i), CodeReservedSlug,
				fmt.Sprintf("field slug %q is reserved for a built-in field", slug))
		}
	}

	for _, slug := range sortedKeys(cfg.BuiltInFields) {
		b, ok := Lookup(slug)
		path := "builtInFields." + slug
		switch {
		case !ok:
			r.Add(path, CodeUnknownBuiltIn, fmt.Sprintf("unknown built-in field %q", slug))
		case b.Category == CategoryCore:
			r.Warn(path, CodeIgnoredOverride, fmt.Sprintf("%s is always visible and required; override ignored", b.Label))
		}
	}
	return r
}

// ValidateItem checks an item against the collection configuration:
// required built-in fields that are visible, the date column, and every
// custom field value in Data.
func ValidateItem(cfg Config, it Item) field.Result {
	r := field.Result{Valid: true}

	for _, f := range Resolve(cfg) {
		if !f.Visible {
			continue
		}
		v := it.BuiltInValue(f.Slug)
		if isEmpty(v) {
			if f.Required {
				r.Add(f.Slug, CodeRequiredValue, fmt.Sprintf("%s is required", f.Label))
			}
			continue
		}
		if f.Type == field.TypeDate {
			if msg := field.CheckValue(f.Type, v, nil); msg != "" {
				r.Add(f.Slug, CodeInvalidValue, fmt.Sprintf("%s %s", f.Label, msg))
			}
		}
	}

	r.Merge("item_data", ValidateItemData(cfg, it.Data))
	return r
}

// ValidateItemData checks custom field values against their field
// definitions. Keys that match no custom field are rejected.
func ValidateItemData(cfg Config, data map[string]any) field.Result {
	r := field.Result{Valid: true}
	known := make(map[string]bool, len(cfg.CustomFields))

	for _, f := range cfg.CustomFields {
		f = field.Normalize(f)
		known[f.Slug] = true

		v, ok := data[f.Slug]
		if !ok || isEmpty(v) {
			if f.Required {
				r.Add(f.Slug, CodeRequiredValue, fmt.Sprintf("%s is required", f.Label))
			}
			continue
		}
		if msg := field.CheckValue(f.Type, v, f.Options); msg != "" {
			r.Add(f.Slug, CodeInvalidValue, fmt.Sprintf("%s %s", f.Label, msg))
		}
	}

	for _, k := range sortedKeys(data) {
		if !known[k] {
			r.Add(k, CodeUnknownField, fmt.Sprintf("unknown field %q", k))
		}
	}
	return r
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
