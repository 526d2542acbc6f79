package collection

// ResolvedField is a built-in field with its effective state for one collection.
type ResolvedField struct {
	BuiltInField
	Visible  bool `json:"visible"`
	Required bool `json:"required"`
}

// IsVisible reports whether f is shown for the collection. Core fields are
// always visible; optional fields are visible unless explicitly hidden.
func IsVisible(f BuiltInField, cfg Config) bool {
	if f.Category == CategoryCore {
		return true
	}
	s, ok := cfg.BuiltInFields[f.Slug]
	if !ok {
		return true
	}
	return s.Visible
}

// IsRequired reports whether f must have a value. A hidden field is never
// required, whatever its stored setting.
func IsRequired(f BuiltInField, cfg Config) bool {
	if f.Category == CategoryCore {
		return true
	}
	if !IsVisible(f, cfg) {
		return false
	}
	return cfg.BuiltInFields[f.Slug].Required
}

// Resolve returns every built-in field with its effective state, in catalog order.
func Resolve(cfg Config) []ResolvedField {
	out := make([]ResolvedField, len(catalog))
	for i, f := range catalog {
		out[i] = ResolvedField{
			BuiltInField: f,
			Visible:      IsVisible(f, cfg),
			Required:     IsRequired(f, cfg),
		}
	}
	return out
}

// VisibleFields returns the visible built-in fields, skipping exclude.
func VisibleFields(cfg Config, exclude ...string) []BuiltInField {
	return filter(cfg, true, exclude)
}

// HiddenFields returns the hidden built-in fields, skipping exclude.
func HiddenFields(cfg Config, exclude ...string) []BuiltInField {
	return filter(cfg, false, exclude)
}

func filter(cfg Config, visible bool, exclude []string) []BuiltInField {
	skip := make(map[string]bool, len(exclude))
	for _, s := range exclude {
		skip[s] = true
	}
	out := []BuiltInField{}
	for _, f := range catalog {
		if skip[f.Slug] || IsVisible(f, cfg) != visible {
			continue
		}
		out = append(out, f)
	}
	return out
}
