package collection

import (
	"strings"
	"time"
)

// Item is one entry of a collection. Built-in fields are fixed columns;
// custom field values live in Data, keyed by field slug.
type Item struct {
	ID           string         `json:"id"`
	CollectionID string         `json:"collection_id"`
	OwnerID      string         `json:"owner_id"`
	Title        string         `json:"title"`
	Slug         string         `json:"slug"`
	Content      string         `json:"content,omitempty"`
	Author       string         `json:"author,omitempty"`
	Date         string         `json:"date,omitempty"`
	Tags         []string       `json:"tags,omitempty"`
	Cover        string         `json:"cover,omitempty"`
	Data         map[string]any `json:"item_data"`
	PublishedAt  *time.Time     `json:"published_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// IsPublished reports whether the item has been published.
func (it Item) IsPublished() bool {
	return it.PublishedAt != nil
}

// BuiltInValue returns the value of a built-in column, or nil.
func (it Item) BuiltInValue(slug string) any {
	switch slug {
	case "title":
		return it.Title
	case "slug":
		return it.Slug
	case "content":
		return it.Content
	case "author":
		return it.Author
	case "date":
		return it.Date
	case "tags":
		return it.Tags
	case "cover":
		return it.Cover
	}
	return nil
}

// CacheKey is the cache key of a published item.
func CacheKey(collectionID, itemID string) string {
	return "item:" + collectionID + ":" + itemID
}

// CachePattern matches every cached item of a collection.
func CachePattern(collectionID string) string {
	return "item:" + collectionID + ":*"
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case []string:
		return len(x) == 0
	case []any:
		return len(x) == 0
	case map[string]any:
		return len(x) == 0
	}
	return false
}
