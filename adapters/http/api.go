package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/artpar/cmskit/app"
	"github.com/artpar/cmskit/domain/billing"
	"github.com/artpar/cmskit/domain/collection"
	"github.com/artpar/cmskit/domain/field"
	"github.com/artpar/cmskit/pkg/jsonapi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Request headers.
const (
	HeaderUserID    = "X-User-ID"
	HeaderSignature = "X-Webhook-Signature"
)

const (
	maxJSONBody      = 1 << 20
	defaultMaxUpload = 64 << 20
	defaultListLimit = 50
	maxListLimit     = 200
)

// Services are the application services behind the API.
type Services struct {
	Collections *app.CollectionService
	Items       *app.ItemService
	Publisher   *app.PublishService
	Media       *app.MediaService
	Billing     *app.BillingService
}

// Handler serves the /api routes.
type Handler struct {
	svc       Services
	maxUpload int64
	logger    zerolog.Logger
}

// NewHandler creates the API handler. A maxUpload of zero allows 64 MiB.
func NewHandler(svc Services, maxUpload int64, logger zerolog.Logger) *Handler {
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}
	return &Handler{svc: svc, maxUpload: maxUpload, logger: logger}
}

// Routes registers the API on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/field-types", h.fieldTypes)
	r.Get("/field-options", h.fieldOptions)

	// Signed by the billing backend, not by a user.
	r.Post("/billing/webhook", h.billingWebhook)

	r.Group(func(r chi.Router) {
		r.Use(requireUser)

		r.Route("/collections", func(r chi.Router) {
			r.Get("/", h.listCollections)
			r.Post("/", h.createCollection)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.getCollection)
				r.Delete("/", h.deleteCollection)
				r.Get("/config", h.getConfig)
				r.Put("/config", h.replaceConfig)
				r.Get("/fields", h.fields)
				r.Get("/items", h.listItems)
				r.Post("/items", h.createItem)
				r.Get("/items/{itemID}", h.getItem)
				r.Put("/items/{itemID}", h.updateItem)
				r.Post("/items/{itemID}/publish", h.publishItem)
				r.Delete("/items/{itemID}/publish", h.unpublishItem)
			})
		})

		r.Post("/media", h.uploadMedia)
		r.Get("/media/usage", h.mediaUsage)
		r.Get("/media/pending", h.pendingMedia)
		r.Delete("/media/objects/*", h.deleteMedia)

		r.Get("/billing/subscription", h.subscription)
		r.Post("/billing/checkout", h.checkout)
	})
}

type userKey struct{}

// requireUser reads the caller's identity, set by the auth layer in front
// of the API.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
		if userID == "" {
			jsonapi.WriteErrors(w, jsonapi.ErrUnauthenticated(HeaderUserID))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, userID)))
	})
}

// UserID returns the caller set by requireUser.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userKey{}).(string)
	return id
}

func (h *Handler) log(r *http.Request) zerolog.Logger {
	return h.logger.With().
		Str("request_id", middleware.GetReqID(r.Context())).
		Str("user_id", UserID(r.Context())).
		Logger()
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, h.log(r), err)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(dst); err != nil {
		jsonapi.WriteErrors(w, jsonapi.ErrBadRequest("Invalid JSON body: "+err.Error()))
		return false
	}
	return true
}

// Field catalog

func (h *Handler) fieldTypes(w http.ResponseWriter, r *http.Request) {
	jsonapi.WriteValue(w, http.StatusOK, field.Specs(), nil)
}

func (h *Handler) fieldOptions(w http.ResponseWriter, r *http.Request) {
	jsonapi.WriteValue(w, http.StatusOK, field.UIConfigs(), nil)
}

// Collections

// fieldBody is a custom field as the editor sends it. EditorOptions, when
// present, replaces Options after conversion.
type fieldBody struct {
	field.Config
	EditorOptions field.EditorMap `json:"editorOptions,omitempty"`
}

type configBody struct {
	CustomFields  []fieldBody                                `json:"customFields"`
	BuiltInFields map[string]collection.BuiltInFieldSettings `json:"builtInFields"`
}

// toConfig converts editor options. A conversion failure is reported at
// the field's editorOptions path.
func (b configBody) toConfig() (collection.Config, error) {
	cfg := collection.Config{
		CustomFields:  make([]field.Config, 0, len(b.CustomFields)),
		BuiltInFields: b.BuiltInFields,
	}
	res := field.Result{Valid: true}
	for i, fb := range b.CustomFields {
		fc := fb.Config
		if fb.EditorOptions != nil {
			opts, err := field.FromMap(fb.EditorOptions)
			if err != nil {
				res.Add(fmt.Sprintf("customFields[%d].editorOptions", i), field.CodeInvalidValue, err.Error())
				continue
			}
			fc.Options = opts
		}
		cfg.CustomFields = append(cfg.CustomFields, fc)
	}
	if cfg.BuiltInFields == nil {
		cfg.BuiltInFields = map[string]collection.BuiltInFieldSettings{}
	}
	return cfg, res.Err()
}

func configView(cfg collection.Config) configBody {
	out := configBody{
		CustomFields:  make([]fieldBody, len(cfg.CustomFields)),
		BuiltInFields: cfg.BuiltInFields,
	}
	for i, fc := range cfg.CustomFields {
		out.CustomFields[i] = fieldBody{Config: fc, EditorOptions: field.ToMap(fc.Options)}
	}
	return out
}

func (h *Handler) listCollections(w http.ResponseWriter, r *http.Request) {
	page, perr := jsonapi.ParsePage(r.URL.Query(), defaultListLimit, maxListLimit)
	if perr != nil {
		jsonapi.WriteErrors(w, *perr)
		return
	}
	cols, err := h.svc.Collections.List(r.Context(), UserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p := jsonapi.NewPagination(len(cols), page, r.URL.Path)
	out := make([]jsonapi.Resource, 0, page.Size)
	for _, c := range jsonapi.Paginate(cols, p) {
		out = append(out, collectionResource(c))
	}
	jsonapi.WriteList(w, out, p)
}

type createCollectionBody struct {
	Name   string      `json:"name"`
	Config *configBody `json:"config,omitempty"`
}

func (h *Handler) createCollection(w http.ResponseWriter, r *http.Request) {
	var body createCollectionBody
	if !decodeJSON(w, r, &body) {
		return
	}
	cfg := collection.Empty()
	if body.Config != nil {
		var err error
		if cfg, err = body.Config.toConfig(); err != nil {
			h.fail(w, r, err)
			return
		}
	}

	c, res, err := h.svc.Collections.Create(r.Context(), UserID(r.Context()), body.Name, cfg)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonapi.WriteResource(w, http.StatusCreated, collectionResource(c), warningsMeta(res))
}

func (h *Handler) getCollection(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Collections.Get(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonapi.WriteResource(w, http.StatusOK, collectionResource(c), nil)
}

func (h *Handler) deleteCollection(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Collections.Delete(r.Context(), UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.svc.Collections.LoadConfig(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonapi.WriteValue(w, http.StatusOK, configView(cfg), nil)
}

func (h *Handler) replaceConfig(w http.ResponseWriter, r *http.Request) {
	var body configBody
	if !decodeJSON(w, r, &body) {
		return
	}
	cfg, err := body.toConfig()
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ctx, userID, id := r.Context(), UserID(r.Context()), chi.URLParam(r, "id")
	res, err := h.svc.Collections.ReplaceConfig(ctx, userID, id, cfg)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	stored, err := h.svc.Collections.LoadConfig(ctx, userID, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonapi.WriteValue(w, http.StatusOK, configView(stored), warningsMeta(res))
}

func (h *Handler) fields(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Collections.Fields(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonapi.WriteValue(w, http.StatusOK, view, nil)
}

// Items

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	page, perr := jsonapi.ParsePage(r.URL.Query(), defaultListLimit, maxListLimit)
	if perr != nil {
		jsonapi.WriteErrors(w, *perr)
		return
	}
	items, err := h.svc.Items.List(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"), 0)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p := jsonapi.NewPagination(len(items), page, r.URL.Path)
	out := make([]jsonapi.Resource, 0, page.Size)
	for _, it := range jsonapi.Paginate(items, p) {
		out = append(out, itemResource(it))
	}
	jsonapi.WriteList(w, out, p)
}

func (h *Handler) createItem(w http.ResponseWriter, r *http.Request) {
	var in app.ItemInput
	if !decodeJSON(w, r, &in) {
		return
	}
	it, err := h.svc.Items.Create(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonapi.WriteResource(w, http.StatusCreated, itemResource(it), nil)
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	it, err := h.svc.Items.Get(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"), chi.URLParam(r, "itemID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonapi.WriteResource(w, http.StatusOK, itemResource(it), nil)
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	var in app.ItemInput
	if !decodeJSON(w, r, &in) {
		return
	}
	it, err := h.svc.Items.Update(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"), chi.URLParam(r, "itemID"), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonapi.WriteResource(w, http.StatusOK, itemResource(it), nil)
}

func (h *Handler) publishItem(w http.ResponseWriter, r *http.Request) {
	it, err := h.svc.Publisher.Publish(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"), chi.URLParam(r, "itemID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonapi.WriteResource(w, http.StatusOK, itemResource(it), nil)
}

func (h *Handler) unpublishItem(w http.ResponseWriter, r *http.Request) {
	it, err := h.svc.Publisher.Unpublish(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"), chi.URLParam(r, "itemID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonapi.WriteResource(w, http.StatusOK, itemResource(it), nil)
}

// Media

func (h *Handler) uploadMedia(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	file, hdr, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			jsonapi.WriteErrors(w, jsonapi.ErrTooLarge(h.maxUpload))
			return
		}
		jsonapi.WriteErrors(w, jsonapi.ErrBadRequest("Expected a multipart form with a file field"))
		return
	}
	defer file.Close()

	contentType := hdr.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	out, err := h.svc.Media.Upload(r.Context(), UserID(r.Context()), app.UploadInput{
		Filename:    hdr.Filename,
		ContentType: contentType,
		Size:        hdr.Size,
		Body:        file,
	})
	if err != nil {
		errs := errorsFor(err)
		if out.Placeholder.TempID != "" {
			if errs[0].Meta == nil {
				errs[0].Meta = jsonapi.Meta{}
			}
			errs[0].Meta["placeholder"] = out.Placeholder
		}
		logServerError(h.log(r), err, errs[0], "upload failed")
		jsonapi.WriteErrors(w, errs...)
		return
	}
	jsonapi.WriteValue(w, http.StatusCreated, out, nil)
}

func (h *Handler) mediaUsage(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Media.Usage(r.Context(), UserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonapi.WriteValue(w, http.StatusOK, u, nil)
}

func (h *Handler) pendingMedia(w http.ResponseWriter, r *http.Request) {
	pending, err := h.svc.Media.Pending(r.Context(), UserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonapi.WriteValue(w, http.StatusOK, pending, nil)
}

func (h *Handler) deleteMedia(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if key == "" {
		jsonapi.WriteErrors(w, jsonapi.ErrBadRequest("Missing object key"))
		return
	}
	if err := h.svc.Media.Delete(r.Context(), UserID(r.Context()), key); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Billing

func (h *Handler) subscription(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Billing.Subscription(r.Context(), UserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonapi.WriteValue(w, http.StatusOK, view, nil)
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	var req billing.CheckoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	url, err := h.svc.Billing.Checkout(r.Context(), UserID(r.Context()), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonapi.WriteValue(w, http.StatusCreated, map[string]string{"url": url}, nil)
}

func (h *Handler) billingWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		jsonapi.WriteErrors(w, jsonapi.ErrBadRequest("Unreadable webhook body"))
		return
	}
	ev, err := h.svc.Billing.Webhook(r.Context(), payload, r.Header.Get(HeaderSignature))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonapi.WriteValue(w, http.StatusOK, ev, nil)
}
