// Package collection provides collection configuration, the built-in field
// catalog and the visibility resolver.
//
// A collection's configuration is a single document: its custom fields plus
// visibility overrides for optional built-in fields. It is replaced whole on
// every save. All functions here are pure.
package collection

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/artpar/cmskit/domain/field"
)

// Collection is a user-defined content type.
type Collection struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BuiltInFieldSettings overrides an optional built-in field.
type BuiltInFieldSettings struct {
	Visible  bool `json:"visible" yaml:"visible"`
	Required bool `json:"required" yaml:"required"`
}

// UnmarshalJSON defaults Visible to true when the key is absent.
func (s *BuiltInFieldSettings) UnmarshalJSON(data []byte) error {
	type plain BuiltInFieldSettings
	p := plain{Visible: true}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = BuiltInFieldSettings(p)
	return nil
}

// UnmarshalYAML defaults Visible to true when the key is absent.
func (s *BuiltInFieldSettings) UnmarshalYAML(unmarshal func(any) error) error {
	type plain BuiltInFieldSettings
	p := plain{Visible: true}
	if err := unmarshal(&p); err != nil {
		return err
	}
	*s = BuiltInFieldSettings(p)
	return nil
}

// Config is the configuration document owned by one collection.
type Config struct {
	CustomFields  []field.Config                  `json:"customFields" yaml:"customFields"`
	BuiltInFields map[string]BuiltInFieldSettings `json:"builtInFields" yaml:"builtInFields"`
}

// Empty returns the configuration a new collection starts with.
func Empty() Config {
	return Config{
		CustomFields:  []field.Config{},
		BuiltInFields: map[string]BuiltInFieldSettings{},
	}
}

// Normalize derives missing custom field slugs and drops overrides recorded
// for core fields. The input is not modified.
func Normalize(c Config) Config {
	out := Config{
		CustomFields:  make([]field.Config, len(c.CustomFields)),
		BuiltInFields: make(map[string]BuiltInFieldSettings, len(c.BuiltInFields)),
	}
	for i, f := range c.CustomFields {
		out.CustomFields[i] = field.Normalize(f)
	}
	for slug, s := range c.BuiltInFields {
		if b, ok := Lookup(slug); ok && b.Category == CategoryCore {
			continue
		}
		out.BuiltInFields[slug] = s
	}
	return out
}

// CustomField returns the custom field with the given slug.
func (c Config) CustomField(slug string) (field.Config, bool) {
	for _, f := range c.CustomFields {
		if field.Normalize(f).Slug == slug {
			return f, true
		}
	}
	return field.Config{}, false
}

// NameSlug derives a URL slug for a collection or item name.
func NameSlug(name string) string {
	return strings.ReplaceAll(field.Slugify(name), field.SlugSeparator, "-")
}
