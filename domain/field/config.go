package field

import (
	"regexp"
	"strings"
	"unicode"
)

// SlugSeparator joins the words of a derived slug.
const SlugSeparator = "_"

// Label and description bounds.
const (
	MaxLabelLength       = 100
	MaxDescriptionLength = 500
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(_[a-z0-9]+)*$`)

// Config is one custom field in a collection.
type Config struct {
	Slug        string   `json:"slug" yaml:"slug"`
	Label       string   `json:"label" yaml:"label" validate:"required,max=100"`
	Type        Type     `json:"type" yaml:"type"`
	Required    bool     `json:"required" yaml:"required"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty" validate:"max=500"`
	Options     []Option `json:"options,omitempty" yaml:"-"`
}

// Slugify derives a slug from a label: lowercase, runs of anything other
// than letters and digits collapse to one separator, no leading or
// trailing separator. "Draft Status" becomes "draft_status".
func Slugify(label string) string {
	var b strings.Builder
	pending := false
	for _, r := range strings.ToLower(label) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pending && b.Len() > 0 {
				b.WriteString(SlugSeparator)
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	return b.String()
}

// IsValidSlug reports whether s uses the derived-slug charset.
func IsValidSlug(s string) bool {
	return slugPattern.MatchString(s)
}

// Normalize fills the slug from the label when it is empty and trims the
// label and description. The input is not modified.
func Normalize(c Config) Config {
	c.Label = strings.TrimSpace(c.Label)
	c.Description = strings.TrimSpace(c.Description)
	if c.Slug == "" {
		c.Slug = Slugify(c.Label)
	}
	if len(c.Options) > 0 {
		opts := make([]Option, len(c.Options))
		copy(opts, c.Options)
		c.Options = opts
	}
	return c
}

// OptionSet returns the field's options keyed by option key.
func (c Config) OptionSet() OptionSet {
	return Set(c.Options)
}

// Spec returns the type table row for the field's type.
func (c Config) Spec() (TypeSpec, bool) {
	return Spec(c.Type)
}
