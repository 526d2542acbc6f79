package jsonapi

// Single returns a document holding one resource.
func Single(r Resource) Document {
	return Document{Data: r}
}

// List returns a document holding resources. A nil slice is written as an
// empty array. Pagination, when set, adds page meta and links.
func List(rs []Resource, p *Pagination) Document {
	if rs == nil {
		rs = []Resource{}
	}
	doc := Document{Data: rs}
	if p != nil {
		doc.Meta = p.Meta()
		doc.Links = p.Links()
	}
	return doc
}

// Value returns a document whose data is a plain value, for endpoints that
// describe settings or reports rather than addressable resources.
func Value(v any, meta Meta) Document {
	return Document{Data: v, Meta: meta}
}

// Errors returns a failure document.
func Errors(errs ...Error) Document {
	return Document{Errors: errs}
}

// WithMeta merges meta into the document and returns it.
func (d Document) WithMeta(meta Meta) Document {
	if len(meta) == 0 {
		return d
	}
	if d.Meta == nil {
		d.Meta = Meta{}
	}
	for k, v := range meta {
		d.Meta[k] = v
	}
	return d
}
