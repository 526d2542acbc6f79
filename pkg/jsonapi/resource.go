package jsonapi

// ResourceBuilder assembles a Resource.
type ResourceBuilder struct {
	r Resource
}

// NewResource starts a resource of the given type and ID.
func NewResource(typ, id string) *ResourceBuilder {
	return &ResourceBuilder{r: Resource{Type: typ, ID: id, Attributes: map[string]any{}}}
}

// Attr sets one attribute.
func (b *ResourceBuilder) Attr(key string, value any) *ResourceBuilder {
	b.r.Attributes[key] = value
	return b
}

// OptionalAttr sets an attribute only when value is not its zero string.
func (b *ResourceBuilder) OptionalAttr(key, value string) *ResourceBuilder {
	if value != "" {
		b.r.Attributes[key] = value
	}
	return b
}

// BelongsTo adds a to-one relationship. An empty id is recorded as null.
func (b *ResourceBuilder) BelongsTo(name, typ, id string) *ResourceBuilder {
	if b.r.Relationships == nil {
		b.r.Relationships = map[string]Relationship{}
	}
	rel := Relationship{}
	if id != "" {
		rel.Data = &ResourceIdentifier{Type: typ, ID: id}
	}
	b.r.Relationships[name] = rel
	return b
}

// Self sets the resource's self link.
func (b *ResourceBuilder) Self(url string) *ResourceBuilder {
	if url != "" {
		b.r.Links = &Links{Self: url}
	}
	return b
}

// Build returns the resource.
func (b *ResourceBuilder) Build() Resource {
	return b.r
}
