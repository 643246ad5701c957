// Package httpapi is the inbound HTTP surface: ControlNet and generic
// generation endpoints, job polling, parameter introspection, health and
// metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"imaged/internal/dispatch"
	"imaged/internal/gateway"
	"imaged/internal/params"
	"imaged/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Generate(ctx context.Context, req gateway.Request) (dispatch.Outcome, error)
	Job(ctx context.Context, id string) (types.JobResult, error)
	CancelJob(ctx context.Context, id string) error
	Defaults() params.Template
	Status(ready bool) types.StatusResponse
	Ready(ctx context.Context) error
}

// readyTimeout bounds the worker health check behind /readyz and /status.
const readyTimeout = 2 * time.Second

// Request keys carrying conditioning inputs. The second is the name the
// worker payload uses and is accepted on the generic endpoint.
const (
	keyControlInputs   = "control_inputs"
	keyControlNetImage = "controlnet_image"
)

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			ExposedHeaders: []string{"Location", "X-Request-Id"},
			MaxAge:         300,
		}))
	}
	// Compression for JSON endpoints; NDJSON is not in the default type list.
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/controlnet/generate", generateHandler(svc, true))
		r.Post("/generation/generate", generateHandler(svc, false))
		r.Get("/jobs/{id}", jobHandler(svc))
		r.Delete("/jobs/{id}", cancelJobHandler(svc))
		r.Get("/params/defaults", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, svc.Defaults())
		})
		r.Get("/params/schema", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, params.Schema())
		})
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		writeJSON(w, http.StatusOK, svc.Status(svc.Ready(ctx) == nil))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := svc.Ready(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("worker unavailable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

// generateHandler serves both generation endpoints. The body is a JSON
// object of template fields plus control_inputs; requireConditioning makes
// control_inputs mandatory.
//
// @Summary      Generate images
// @Description  Sync returns the result, async_process returns 202 with a job handle, stream_output streams NDJSON events.
// @Accept       json
// @Produce      json,application/x-ndjson
// @Param        body  body      types.ControlNetRequest  true  "Request"
// @Success      200   {object}  types.JobResult
// @Success      202   {object}  types.JobHandle
// @Failure      400   {object}  types.ErrorResponse
// @Failure      415   {object}  types.ErrorResponse
// @Failure      422   {object}  types.ErrorResponse
// @Failure      429   {object}  types.ErrorResponse
// @Failure      502   {object}  types.ErrorResponse
// @Failure      503   {object}  types.ErrorResponse
// @Failure      504   {object}  types.ErrorResponse
// @Router       /v1/controlnet/generate [post]
func generateHandler(svc Service, requireConditioning bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rl := newReqLog(r)
		req, status, err := decodeGenerate(w, r)
		if err != nil {
			if status != 0 {
				writeJSONError(w, status, err.Error())
			} else {
				status = writeError(w, err)
			}
			rl.end(status, err)
			return
		}
		req.RequireConditioning = requireConditioning

		// Join server base context with request context so shutdown cancels work too.
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		out, err := svc.Generate(ctx, req)
		if err != nil {
			// Nobody is left to read a response.
			if r.Context().Err() != nil {
				rl.end(499, err)
				return
			}
			if errors.Is(context.Cause(ctx), errShuttingDown) {
				writeJSONError(w, http.StatusServiceUnavailable, errShuttingDown.Error())
				rl.end(http.StatusServiceUnavailable, err)
				return
			}
			rl.end(writeError(w, err), err)
			return
		}
		rl.begin(out.Mode.String())

		switch out.Mode {
		case dispatch.ModeStream:
			writeStream(w, r, out.Stream)
			rl.end(http.StatusOK, nil)
		case dispatch.ModeAsync:
			if out.Handle.StatusURL != "" {
				w.Header().Set("Location", out.Handle.StatusURL)
			}
			writeJSON(w, http.StatusAccepted, out.Handle)
			rl.end(http.StatusAccepted, nil)
		default:
			writeJSON(w, http.StatusOK, out.Result)
			rl.end(http.StatusOK, nil)
		}
	}
}

// decodeGenerate reads the request body. Transport errors come back with
// a non-zero status; field errors come back for writeError to classify.
func decodeGenerate(w http.ResponseWriter, r *http.Request) (gateway.Request, int, error) {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mt != "application/json" {
		return gateway.Request{}, http.StatusUnsupportedMediaType, errors.New("Content-Type must be application/json")
	}
	// Limit body size (configurable, default 1MiB)
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var body map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return gateway.Request{}, http.StatusBadRequest, errors.New("request body too large")
		}
		return gateway.Request{}, http.StatusBadRequest, errors.New("invalid JSON body")
	}

	var req gateway.Request
	_, hasInputs := body[keyControlInputs]
	_, hasImage := body[keyControlNetImage]
	if hasInputs && hasImage {
		return req, 0, &params.FieldTypeError{Field: keyControlNetImage, Err: errors.New("use either control_inputs or controlnet_image")}
	}
	for _, key := range []string{keyControlInputs, keyControlNetImage} {
		raw, ok := body[key]
		if !ok {
			continue
		}
		delete(body, key)
		if string(raw) == "null" {
			continue
		}
		req.HasConditioning = true
		if err := json.Unmarshal(raw, &req.ControlInputs); err != nil {
			return req, 0, &params.FieldTypeError{Field: key, Err: err}
		}
	}
	if len(body) > 0 {
		req.Overrides = make(map[string]any, len(body))
		for k, v := range body {
			req.Overrides[k] = v
		}
	}
	return req, 0, nil
}

// writeStream copies stream events to the response as NDJSON, one event
// per line, flushing after each. The stream is closed when the client
// goes away.
func writeStream(w http.ResponseWriter, r *http.Request, st *dispatch.Stream) {
	defer st.Close()
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	var flush func()
	if f, ok := w.(http.Flusher); ok {
		flush = f.Flush
	}
	writer := io.Writer(w)
	if requestLogLevel(r) >= LevelDebug {
		writer = io.MultiWriter(w, &loggingLineWriter{rid: middleware.GetReqID(r.Context())})
	}
	enc := json.NewEncoder(writer)
	for ev := range st.Events() {
		if err := enc.Encode(ev); err != nil {
			return
		}
		if flush != nil {
			flush()
		}
	}
}

// @Summary  Get an asynchronous job
// @Produce  json
// @Param    id   path      string  true  "Job id"
// @Success  200  {object}  types.JobResult
// @Failure  404  {object}  types.ErrorResponse
// @Router   /v1/jobs/{id} [get]
func jobHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.Job(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// @Summary  Cancel a running job
// @Param    id   path  string  true  "Job id"
// @Success  204
// @Failure  404  {object}  types.ErrorResponse
// @Router   /v1/jobs/{id} [delete]
func cancelJobHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.CancelJob(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
