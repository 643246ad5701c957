//go:build !swagger

package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountSwagger answers /swagger/* with a 404 that explains how to enable the
// UI. Build with -tags=swagger to serve it.
func MountSwagger(r chi.Router) {
	r.Get("/swagger/*", func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusNotFound, "swagger UI not built in; rebuild with -tags swagger")
	})
}
