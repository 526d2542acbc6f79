package jsonapi

import (
	"encoding/json"
	"net/http"
)

// Write encodes doc with the JSON:API content type.
func Write(w http.ResponseWriter, status int, doc Document) {
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(doc)
}

// WriteResource writes a single resource.
func WriteResource(w http.ResponseWriter, status int, r Resource, meta Meta) {
	Write(w, status, Single(r).WithMeta(meta))
}

// WriteList writes a list of resources, paged when p is set.
func WriteList(w http.ResponseWriter, rs []Resource, p *Pagination) {
	Write(w, http.StatusOK, List(rs, p))
}

// WriteValue writes a plain data value.
func WriteValue(w http.ResponseWriter, status int, v any, meta Meta) {
	Write(w, status, Value(v, meta))
}

// WriteErrors writes a failure document. The status is the first error's.
func WriteErrors(w http.ResponseWriter, errs ...Error) {
	if len(errs) == 0 {
		errs = []Error{ErrInternal()}
	}
	Write(w, errs[0].StatusCode(), Errors(errs...))
}
