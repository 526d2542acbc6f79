package collection

import "github.com/artpar/cmskit/domain/field"

// Category decides whether a built-in field can be overridden.
type Category string

const (
	// CategoryCore fields are always visible and required.
	CategoryCore Category = "core"
	// CategoryOptional fields can be hidden or made required per collection.
	CategoryOptional Category = "optional"
)

// BuiltInField is an entry of the fixed catalog available to every collection.
type BuiltInField struct {
	Slug     string     `json:"slug"`
	Label    string     `json:"label"`
	Type     field.Type `json:"type"`
	Category Category   `json:"category"`
}

var catalog = []BuiltInField{
	{Slug: "title", Label: "Title", Type: field.TypeText, Category: CategoryCore},
	{Slug: "slug", Label: "Slug", Type: field.TypeText, Category: CategoryCore},
	{Slug: "content", Label: "Content", Type: field.TypeRichText, Category: CategoryOptional},
	{Slug: "author", Label: "Author", Type: field.TypeText, Category: CategoryOptional},
	{Slug: "date", Label: "Date", Type: field.TypeDate, Category: CategoryOptional},
	{Slug: "tags", Label: "Tags", Type: field.TypeMultiSelect, Category: CategoryOptional},
	{Slug: "cover", Label: "Cover image", Type: field.TypeImage, Category: CategoryOptional},
}

// System columns every item carries. Custom fields may not use these slugs.
var systemColumns = []string{"id", "published_at", "created_at", "updated_at"}

// Catalog returns the built-in fields in display order.
func Catalog() []BuiltInField {
	out := make([]BuiltInField, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup returns the built-in field with the given slug.
func Lookup(slug string) (BuiltInField, bool) {
	for _, b := range catalog {
		if b.Slug == slug {
			return b, true
		}
	}
	return BuiltInField{}, false
}

// IsReserved reports whether slug belongs to a built-in field or a system column.
func IsReserved(slug string) bool {
	if _, ok := Lookup(slug); ok {
		return true
	}
	for _, s := range systemColumns {
		if s == slug {
			return true
		}
	}
	return false
}

// ReservedSlugs returns every slug custom fields may not use.
func ReservedSlugs() []string {
	out := make([]string, 0, len(catalog)+len(systemColumns))
	for _, b := range catalog {
		out = append(out, b.Slug)
	}
	return append(out, systemColumns...)
}
