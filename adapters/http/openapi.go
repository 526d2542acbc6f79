package http

import (
	_ "embed"
	"net/http"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/swaggo/swag"
)

//go:embed openapi.json
var openAPIDoc []byte

// OpenAPIPath is where the API description is served.
const OpenAPIPath = "/.well-known/openapi.json"

type apiDoc struct{}

func (apiDoc) ReadDoc() string { return string(openAPIDoc) }

func init() {
	swag.Register(swag.Name, apiDoc{})
}

// mountOpenAPI serves the API description and the Swagger UI.
func mountOpenAPI(r chi.Router) {
	r.Get(OpenAPIPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Write(openAPIDoc)
	})
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL(OpenAPIPath)))
}
