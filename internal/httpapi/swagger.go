//go:build swagger

package httpapi

import (
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/swaggo/swag"
)

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "{{.Title}}",
        "description": "{{escape .Description}}",
        "version": "{{.Version}}"
    },
    "basePath": "{{.BasePath}}",
    "schemes": {{ marshal .Schemes }},
    "paths": {
        "/v1/controlnet/generate": {"post": {"summary": "Generate images from 1-4 ControlNet inputs", "consumes": ["application/json"], "produces": ["application/json", "application/x-ndjson"], "responses": {"200": {"description": "result"}, "202": {"description": "job handle"}, "422": {"description": "validation error"}, "429": {"description": "too busy"}, "502": {"description": "generation failed"}, "504": {"description": "timeout"}}}},
        "/v1/generation/generate": {"post": {"summary": "Generate images with any template overrides", "consumes": ["application/json"], "produces": ["application/json", "application/x-ndjson"], "responses": {"200": {"description": "result"}, "202": {"description": "job handle"}}}},
        "/v1/jobs/{id}": {
            "get": {"summary": "Get an asynchronous job", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "job"}, "404": {"description": "not found"}}},
            "delete": {"summary": "Cancel a running job", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"204": {"description": "canceled"}, "404": {"description": "not found"}}}
        },
        "/v1/params/defaults": {"get": {"summary": "Parameter template defaults", "responses": {"200": {"description": "template"}}}},
        "/v1/params/schema": {"get": {"summary": "Parameter template JSON schema", "responses": {"200": {"description": "schema"}}}},
        "/status": {"get": {"summary": "Dispatcher status", "responses": {"200": {"description": "status"}}}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "imaged API",
	Description:      "Image generation gateway with ControlNet conditioning.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

// MountSwagger serves the Swagger UI under /swagger/.
func MountSwagger(r chi.Router) {
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}
