package http

import (
	"errors"
	"net/http"

	"github.com/artpar/cmskit/adapters/remote"
	"github.com/artpar/cmskit/app"
	"github.com/artpar/cmskit/core/capability"
	"github.com/artpar/cmskit/domain/collection"
	"github.com/artpar/cmskit/domain/field"
	"github.com/artpar/cmskit/pkg/jsonapi"
	"github.com/artpar/cmskit/ports"
	"github.com/rs/zerolog"
)

// ContentType is the media type of every API response body.
const ContentType = jsonapi.ContentType

// Resource types.
const (
	TypeCollections = "collections"
	TypeItems       = "items"
)

func collectionResource(c collection.Collection) jsonapi.Resource {
	return jsonapi.NewResource(TypeCollections, c.ID).
		Attr("owner_id", c.OwnerID).
		Attr("name", c.Name).
		Attr("slug", c.Slug).
		Attr("created_at", c.CreatedAt).
		Attr("updated_at", c.UpdatedAt).
		Self("/api/collections/" + c.ID).
		Build()
}

func itemResource(it collection.Item) jsonapi.Resource {
	b := jsonapi.NewResource(TypeItems, it.ID).
		Attr("owner_id", it.OwnerID).
		Attr("title", it.Title).
		Attr("slug", it.Slug).
		OptionalAttr("content", it.Content).
		OptionalAttr("author", it.Author).
		OptionalAttr("date", it.Date).
		OptionalAttr("cover", it.Cover).
		Attr("item_data", it.Data).
		Attr("published_at", it.PublishedAt).
		Attr("created_at", it.CreatedAt).
		Attr("updated_at", it.UpdatedAt).
		BelongsTo("collection", TypeCollections, it.CollectionID).
		Self("/api/collections/" + it.CollectionID + "/items/" + it.ID)
	if len(it.Tags) > 0 {
		b.Attr("tags", it.Tags)
	}
	return b.Build()
}

func warningsMeta(res field.Result) jsonapi.Meta {
	if len(res.Warnings) == 0 {
		return nil
	}
	return jsonapi.Meta{"warnings": res.Warnings}
}

func apiError(status int, code, title, detail string) jsonapi.Error {
	return jsonapi.NewError(status, code, title).Detail(detail).Build()
}

// errorsFor maps a service error to its API errors. A validation failure
// yields one error per issue.
func errorsFor(err error) []jsonapi.Error {
	if ve, ok := field.AsValidation(err); ok {
		return jsonapi.ValidationErrors(ve.Result)
	}
	var e jsonapi.Error
	switch {
	case errors.Is(err, field.ErrOutOfRange):
		e = apiError(http.StatusUnprocessableEntity, "out_of_range", "Value Out Of Range", err.Error())
	case errors.Is(err, ports.ErrNotFound):
		e = jsonapi.ErrNotFound("The requested resource does not exist")
	case errors.Is(err, capability.ErrForbidden):
		e = apiError(http.StatusForbidden, "forbidden", "Forbidden", "You do not have access to this resource")
	case errors.Is(err, capability.ErrNotAvailableInMode):
		e = apiError(http.StatusNotImplemented, "not_available", "Not Available", "This operation is not available in the current deployment mode")
	case errors.Is(err, app.ErrPaymentRequired):
		e = apiError(http.StatusPaymentRequired, "payment_required", "Payment Required", "An active subscription is required")
	case errors.Is(err, capability.ErrQuotaExceeded):
		e = apiError(http.StatusRequestEntityTooLarge, "quota_exceeded", "Quota Exceeded", "The storage quota for this context is exhausted")
	case errors.Is(err, app.ErrInvalidUpload):
		e = apiError(http.StatusBadRequest, "invalid_upload", "Invalid Upload", err.Error())
	case errors.Is(err, remote.ErrInvalidSignature):
		e = jsonapi.NewError(http.StatusUnauthorized, "invalid_signature", "Invalid Signature").
			Detail("The webhook signature does not match").Header(HeaderSignature).Build()
	case errors.Is(err, capability.ErrProviderUnavailable):
		e = apiError(http.StatusServiceUnavailable, "provider_unavailable", "Service Unavailable", "A backing service is unavailable")
	default:
		e = jsonapi.ErrInternal()
	}
	return []jsonapi.Error{e}
}

// writeError maps err and writes it. Server errors are logged with the
// request's logger fields.
func writeError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	errs := errorsFor(err)
	logServerError(logger, err, errs[0], "request failed")
	jsonapi.WriteErrors(w, errs...)
}

func logServerError(logger zerolog.Logger, err error, e jsonapi.Error, msg string) {
	if e.StatusCode() >= http.StatusInternalServerError {
		logger.Error().Err(err).Str("code", e.Code).Msg(msg)
	}
}
