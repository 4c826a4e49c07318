package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/akshayreddy1906/gemini-resume/internal/document"
	"github.com/akshayreddy1906/gemini-resume/internal/pipeline"
	"github.com/akshayreddy1906/gemini-resume/internal/render"
)

const maxRequestBodySize = 1 << 20 // 1MB

// maxUploadBodySize leaves room for multipart framing around a document
// at the size limit.
const maxUploadBodySize = document.MaxSize + maxRequestBodySize

type AppDeps struct {
	Orchestrator *pipeline.Orchestrator
	// Token, when non-empty, is required as a bearer token on all routes
	// except /health.
	Token  string
	Logger *slog.Logger
}

// NewAppHandler returns the HTTP API over the orchestrator and its history.
func NewAppHandler(deps AppDeps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token))
		}

		r.Get("/state", handleGetState(deps))
		r.Put("/document", handlePutDocument(deps))
		r.Delete("/document", handleDeleteDocument(deps))
		r.Put("/instruction", handlePutInstruction(deps))
		r.Post("/submit", handleSubmit(deps))
		r.Get("/history", handleListHistory(deps))
		r.Get("/history/{id}", handleGetHistory(deps))
		r.Get("/history/{id}/download", handleDownloadHistory(deps))
		r.Get("/events", handleEvents(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleGetState(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, deps.Orchestrator.State())
	}
}

func handlePutDocument(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBodySize)
		defer r.Body.Close()

		if err := r.ParseMultipartForm(maxRequestBodySize); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				httpError(w, http.StatusUnprocessableEntity, string(document.TooLarge),
					"file exceeds the %d byte limit", document.MaxSize)
				return
			}
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid multipart body: %v", err)
			return
		}
		defer r.MultipartForm.RemoveAll()

		fh := formFile(r.MultipartForm, "file")
		if fh == nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "file is required")
			return
		}

		doc, err := deps.Orchestrator.SelectDocument(document.MultipartCandidate(fh))
		var verr *document.ValidationError
		if errors.As(err, &verr) {
			httpError(w, http.StatusUnprocessableEntity, string(verr.Reason), "%s", verr.Error())
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load document: %v", err)
			return
		}

		deps.Logger.Debug("document uploaded", "name", doc.Name, "size", doc.Size)
		writeJSON(w, http.StatusOK, deps.Orchestrator.State())
	}
}

func formFile(form *multipart.Form, field string) *multipart.FileHeader {
	if form == nil || len(form.File[field]) == 0 {
		return nil
	}
	return form.File[field][0]
}

func handleDeleteDocument(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deps.Orchestrator.ClearDocument()
		writeJSON(w, http.StatusOK, deps.Orchestrator.State())
	}
}

type instructionRequest struct {
	Instruction *string `json:"instruction"`
}

func handlePutInstruction(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req instructionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Instruction == nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "instruction is required")
			return
		}

		deps.Orchestrator.SetInstruction(*req.Instruction)
		writeJSON(w, http.StatusOK, deps.Orchestrator.State())
	}
}

// submitError maps a rejected submission to its status code and type.
func submitError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pipeline.ErrInFlight):
		httpError(w, http.StatusConflict, "in_flight", "%v", err)
	case errors.Is(err, pipeline.ErrNoDocument), errors.Is(err, pipeline.ErrEmptyInstruction):
		httpError(w, http.StatusPreconditionFailed, "not_ready", "%v", err)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
	}
}

func handleSubmit(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))

		attempt, err := deps.Orchestrator.Begin()
		if err != nil {
			submitError(w, err)
			return
		}

		// An accepted attempt runs to completion even if the client goes away.
		ctx := context.WithoutCancel(r.Context())
		if wait {
			entry := deps.Orchestrator.Run(ctx, attempt)
			writeJSON(w, http.StatusOK, entry)
			return
		}

		go deps.Orchestrator.Run(ctx, attempt)
		writeJSON(w, http.StatusAccepted, map[string]string{
			"attempt_id": attempt.ID,
			"status":     string(pipeline.InFlight),
		})
	}
}

func handleListHistory(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)
		offset := parseIntParam(r, "offset", 0, 0)

		writeJSON(w, http.StatusOK, deps.Orchestrator.History().Recent(limit, offset))
	}
}

func handleGetHistory(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry, ok := deps.Orchestrator.History().Get(chi.URLParam(r, "id"))
		if !ok {
			httpError(w, http.StatusNotFound, "not_found", "history entry not found")
			return
		}
		writeJSON(w, http.StatusOK, entry)
	}
}

func handleDownloadHistory(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		format, err := render.ParseFormat(r.URL.Query().Get("format"))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		entry, ok := deps.Orchestrator.History().Get(chi.URLParam(r, "id"))
		if !ok {
			httpError(w, http.StatusNotFound, "not_found", "history entry not found")
			return
		}

		body, err := render.Render(entry, format)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to render entry: %v", err)
			return
		}

		w.Header().Set("Content-Type", format.ContentType())
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", render.Filename(entry, format)))
		w.Write(body)
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
