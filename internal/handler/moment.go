package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/daybook/daybook/internal/auth"
	"github.com/daybook/daybook/internal/handler/dto"
	"github.com/daybook/daybook/internal/metrics"
	"github.com/daybook/daybook/internal/middleware"
	"github.com/daybook/daybook/internal/model"
	"github.com/daybook/daybook/internal/service"
)

const (
	// multipartMemory is how much of a multipart body is buffered in memory
	// before spilling to temp files.
	multipartMemory = 8 << 20

	defaultMaxJSONBody = 1 << 20
	defaultMaxUpload   = 50 << 20
)

// MomentService is the moment lifecycle the handler drives.
type MomentService interface {
	List(ctx context.Context, identity model.Identity, input service.ListInput) ([]*model.Moment, error)
	Create(ctx context.Context, identity model.Identity, req service.MomentRequest) (*model.Moment, error)
	Update(ctx context.Context, identity model.Identity, id string, req service.MomentRequest) (*model.Moment, error)
	Delete(ctx context.Context, identity model.Identity, id string) error
}

// MomentHandler handles HTTP requests for moment operations.
type MomentHandler struct {
	svc         MomentService
	logger      *slog.Logger
	metrics     metrics.Recorder
	maxJSONBody int64
	maxUpload   int64
}

// MomentHandlerConfig holds the request size limits.
type MomentHandlerConfig struct {
	MaxJSONBodySize int64
	MaxUploadSize   int64
}

// NewMomentHandler creates a new MomentHandler.
func NewMomentHandler(svc MomentService, logger *slog.Logger, recorder metrics.Recorder, cfg MomentHandlerConfig) *MomentHandler {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if cfg.MaxJSONBodySize <= 0 {
		cfg.MaxJSONBodySize = defaultMaxJSONBody
	}
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = defaultMaxUpload
	}
	return &MomentHandler{
		svc:         svc,
		logger:      logger,
		metrics:     recorder,
		maxJSONBody: cfg.MaxJSONBodySize,
		maxUpload:   cfg.MaxUploadSize,
	}
}

// List handles GET /moments.
// Optional query: from, to (dates; a bare "to" date covers the whole day)
// and type (repeatable or comma separated).
func (h *MomentHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	if identity.IsZero() {
		h.handleServiceError(w, r, service.ErrUnauthorized)
		return
	}

	input, err := parseListQuery(r)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	moments, err := h.svc.List(r.Context(), identity, input)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.MomentListResponse{Moments: dto.FromMoments(moments)})
}

// Create handles POST /moments.
func (h *MomentHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	if identity.IsZero() {
		h.handleServiceError(w, r, service.ErrUnauthorized)
		return
	}

	req, cleanup, err := h.decodeRequest(w, r)
	defer cleanup()
	if err != nil {
		h.handleDecodeError(w, r, err)
		return
	}

	moment, err := h.svc.Create(r.Context(), identity, req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("moment_created",
		"moment_id", moment.ID,
		"user_id", moment.OwnerID,
		"type", moment.Type,
		"request_id", middleware.GetRequestID(r.Context()),
	)

	writeJSON(w, http.StatusOK, dto.MomentEnvelope{Moment: dto.FromMoment(moment)})
}

// Update handles PUT /moments/{id}.
func (h *MomentHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	if identity.IsZero() {
		h.handleServiceError(w, r, service.ErrUnauthorized)
		return
	}

	id := chi.URLParam(r, "id")

	req, cleanup, err := h.decodeRequest(w, r)
	defer cleanup()
	if err != nil {
		h.handleDecodeError(w, r, err)
		return
	}

	moment, err := h.svc.Update(r.Context(), identity, id, req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("moment_updated",
		"moment_id", moment.ID,
		"user_id", moment.OwnerID,
		"type", moment.Type,
		"request_id", middleware.GetRequestID(r.Context()),
	)

	writeJSON(w, http.StatusOK, dto.MomentEnvelope{Moment: dto.FromMoment(moment)})
}

// Delete handles DELETE /moments/{id}.
func (h *MomentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if err := h.svc.Delete(r.Context(), identity, id); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("moment_deleted",
		"moment_id", id,
		"user_id", identity.UserID,
		"request_id", middleware.GetRequestID(r.Context()),
	)

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Success: true})
}

var errInvalidBody = errors.New("invalid request body")

// decodeRequest reads either payload shape into a service.MomentRequest.
// The returned cleanup must always be called; it releases multipart temp files.
func (h *MomentHandler) decodeRequest(w http.ResponseWriter, r *http.Request) (service.MomentRequest, func(), error) {
	noop := func() {}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return decodeMultipart(w, r, h.maxUpload)
	}

	req, err := decodeJSON(w, r, h.maxJSONBody)
	return req, noop, err
}

// decodeJSON reads a JSON body. JSON cannot carry bytes, so File is never set.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64) (service.MomentRequest, error) {
	body := http.MaxBytesReader(w, r.Body, limit)

	var payload dto.MomentRequest
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		if isBodyTooLarge(err) {
			return service.MomentRequest{}, service.ErrMediaTooLarge
		}
		if errors.Is(err, io.EOF) {
			// An empty body is an empty request; validation reports what is missing.
			return service.MomentRequest{}, nil
		}
		return service.MomentRequest{}, errInvalidBody
	}

	return service.MomentRequest{
		Type: payload.Type,
		Text: payload.Content,
		Date: payload.Date,
	}, nil
}

// decodeMultipart reads a multipart/form-data body with fields
// type, content, date and an optional file part named "file".
func decodeMultipart(w http.ResponseWriter, r *http.Request, limit int64) (service.MomentRequest, func(), error) {
	noop := func() {}

	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if isBodyTooLarge(err) {
			return service.MomentRequest{}, noop, service.ErrMediaTooLarge
		}
		return service.MomentRequest{}, noop, errInvalidBody
	}

	cleanup := func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}

	req := service.MomentRequest{
		Type: r.FormValue("type"),
		Text: r.FormValue("content"),
		Date: r.FormValue("date"),
	}

	file, header, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		return req, cleanup, errInvalidBody
	default:
		req.File = &service.Upload{
			Filename: header.Filename,
			Size:     header.Size,
			Body:     file,
		}
		cleanup = func() {
			_ = file.Close()
			_ = r.MultipartForm.RemoveAll()
		}
	}

	return req, cleanup, nil
}

// isBodyTooLarge reports whether err came from an http.MaxBytesReader.
// Some multipart errors flatten the cause into the message.
func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}

func parseListQuery(r *http.Request) (service.ListInput, error) {
	q := r.URL.Query()
	var input service.ListInput

	if raw := q.Get("from"); raw != "" {
		from, err := service.ParseDate(raw)
		if err != nil {
			return input, err
		}
		input.From = &from
	}

	if raw := q.Get("to"); raw != "" {
		to, err := service.ParseDate(raw)
		if err != nil {
			return input, err
		}
		if isDateOnly(raw) {
			to = to.Add(24*time.Hour - time.Nanosecond)
		}
		input.To = &to
	}

	for _, value := range q["type"] {
		for _, raw := range strings.Split(value, ",") {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			t, ok := model.ParseMomentType(raw)
			if !ok {
				return input, service.ErrInvalidType
			}
			input.Types = append(input.Types, t)
		}
	}

	return input, nil
}

func isDateOnly(raw string) bool {
	_, err := time.Parse("2006-01-02", strings.TrimSpace(raw))
	return err == nil
}

func (h *MomentHandler) handleDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errInvalidBody) {
		h.reject(w, r, http.StatusBadRequest, "INVALID_BODY", "Invalid request body", "")
		return
	}
	h.handleServiceError(w, r, err)
}

// handleServiceError maps service errors to HTTP responses.
func (h *MomentHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var missing *service.MissingFieldError

	switch {
	case errors.Is(err, service.ErrUnauthorized):
		h.reject(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", "")
	case errors.Is(err, service.ErrMomentNotFound):
		h.reject(w, r, http.StatusNotFound, "MOMENT_NOT_FOUND", "Moment not found", "")
	case errors.As(err, &missing):
		h.reject(w, r, http.StatusBadRequest, "MISSING_FIELD", missingFieldMessage(missing.Field), missing.Field)
	case errors.Is(err, service.ErrInvalidType):
		h.reject(w, r, http.StatusBadRequest, "INVALID_TYPE", "Type must be one of TEXT, IMAGE, VIDEO, AUDIO", "")
	case errors.Is(err, service.ErrInvalidDate):
		h.reject(w, r, http.StatusBadRequest, "INVALID_DATE", "Invalid date format", "")
	case errors.Is(err, service.ErrFutureDate):
		h.reject(w, r, http.StatusBadRequest, "FUTURE_DATE", "Cannot add moments to future dates", "")
	case errors.Is(err, service.ErrMediaTooLarge):
		h.reject(w, r, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large", "")
	case errors.Is(err, service.ErrStorageFailure):
		h.logger.Error("media storage failed", "error", err, "request_id", middleware.GetRequestID(r.Context()))
		h.reject(w, r, http.StatusInternalServerError, "STORAGE_FAILURE", "Failed to save file", "")
	default:
		h.logger.Error("service error", "error", err, "request_id", middleware.GetRequestID(r.Context()))
		h.reject(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred", "")
	}
}

func (h *MomentHandler) reject(w http.ResponseWriter, r *http.Request, status int, code, message, field string) {
	h.metrics.IncMomentRejected(strings.ToLower(code))
	writeJSON(w, status, dto.ErrorResponse{Error: message, Code: code, Field: field})
}

func missingFieldMessage(field string) string {
	switch field {
	case service.FieldType:
		return "Type is required"
	case service.FieldContent:
		return "Content is required for text"
	case service.FieldFile:
		return "File is required"
	default:
		return "Missing required field"
	}
}
