package booking

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rhenando/maxsmile/internal/cache"
	"github.com/rhenando/maxsmile/internal/clinic"
	"github.com/rhenando/maxsmile/internal/httpx"
	"github.com/rhenando/maxsmile/internal/middleware"
	"github.com/rhenando/maxsmile/internal/transport"
	"github.com/rhenando/maxsmile/internal/validation"
)

const adminPageSize = 20

type Handler struct {
	service  *Service
	val      *validation.Validator
	cache    cache.Cache
	cacheTTL time.Duration
	log      *slog.Logger
}

func NewHandler(service *Service, val *validation.Validator, cacheStore cache.Cache, cacheTTL time.Duration, log *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		val:      val,
		cache:    cacheStore,
		cacheTTL: cacheTTL,
		log:      log,
	}
}

// GetAvailability serves GET /appointments?branch_slug&appointment_date.
func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	branch := strings.TrimSpace(r.URL.Query().Get("branch_slug"))
	date := strings.TrimSpace(r.URL.Query().Get("appointment_date"))

	cacheKey := availabilityKey(branch, date)
	if h.cache != nil {
		if cached, ok, err := h.cache.Get(r.Context(), cacheKey); err == nil && ok {
			log.Info("availability: cache hit", slog.String("branch", branch), slog.String("date", date))
			transport.WriteCachedJSON(w, http.StatusOK, cached)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	snapshot, err := h.service.Availability(ctx, branch, date)
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			log.Warn("availability: invalid query", slog.String("field", ve.Field))
			transport.WriteError(w, http.StatusBadRequest, ve.Message, nil)
			return
		}
		log.Error("availability: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	if payload, err := transport.EncodeJSON(snapshot); err == nil && h.cache != nil {
		_ = h.cache.Set(r.Context(), cacheKey, payload, h.cacheTTL)
	}

	log.Info("availability: ok",
		slog.String("branch", branch),
		slog.String("date", date),
		slog.Int64("remaining", snapshot.Remaining),
	)
	transport.WriteJSON(w, http.StatusOK, snapshot)
}

// Create serves the public booking POST.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	var req CreateRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("appointments create: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	appt, err := h.service.Reserve(ctx, req)
	if err != nil {
		h.writeReserveError(w, log, "appointments create", err)
		return
	}

	h.invalidateAvailability(r.Context(), appt.BranchSlug, appt.AppointmentDate)

	log.Info("appointments create: reserved",
		slog.String("appointment_id", appt.ID),
		slog.String("branch", appt.BranchSlug),
		slog.String("date", appt.AppointmentDate),
		slog.String("reference", appt.Reference),
	)
	transport.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"ok":         true,
		"reference":  appt.Reference,
		"created_at": appt.CreatedAt,
	})
}

// AdminCreate records a walk-in for the admin's branch.
func (h *Handler) AdminCreate(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	scope, ok := middleware.ScopeFromContext(r.Context())
	if !ok {
		transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	var req AdminCreateRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("admin appointments create: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	appt, err := h.service.AdminCreate(ctx, scope.Branch, req)
	if err != nil {
		h.writeReserveError(w, log, "admin appointments create", err)
		return
	}

	h.invalidateAvailability(r.Context(), appt.BranchSlug, appt.AppointmentDate)

	log.Info("admin appointments create: ok",
		slog.String("appointment_id", appt.ID),
		slog.String("branch", appt.BranchSlug),
		slog.String("status", appt.Status),
		slog.String("admin_id", scope.UserID),
	)
	transport.WriteJSON(w, http.StatusCreated, appt)
}

// AdminList serves the dashboard table: status, from, to, q and page
// query parameters, always scoped to the admin's branch.
func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	scope, ok := middleware.ScopeFromContext(r.Context())
	if !ok {
		transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	q := r.URL.Query()
	filter := ListFilter{
		Branch: scope.Branch,
		Status: q.Get("status"),
		From:   strings.TrimSpace(q.Get("from")),
		To:     strings.TrimSpace(q.Get("to")),
		Query:  q.Get("q"),
	}
	if filter.Status == "all" {
		filter.Status = ""
	}
	for field, value := range map[string]string{"from": filter.From, "to": filter.To} {
		if value == "" {
			continue
		}
		if _, err := clinic.ParseDate(value); err != nil {
			log.Warn("admin appointments list: invalid query", slog.String("field", field))
			transport.WriteError(w, http.StatusBadRequest, "invalid query", map[string]string{field: "date"})
			return
		}
	}

	page := parsePage(q.Get("page"))
	offset := int64(page-1) * adminPageSize

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	items, total, err := h.service.List(ctx, filter, adminPageSize, offset)
	if err != nil {
		if errors.Is(err, ErrInvalidStatus) {
			transport.WriteError(w, http.StatusBadRequest, "invalid query", map[string]string{"status": "oneof"})
			return
		}
		log.Error("admin appointments list: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("admin appointments list: ok",
		slog.String("branch", scope.Branch),
		slog.Int("count", len(items)),
		slog.Int64("total", total),
	)
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"appointments": items,
		"total":        total,
		"page":         page,
		"page_size":    adminPageSize,
	})
}

// AdminUpdateStatus serves PATCH /admin/appointments/status with a
// body of {id, status}.
func (h *Handler) AdminUpdateStatus(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	scope, ok := middleware.ScopeFromContext(r.Context())
	if !ok {
		transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	var req StatusUpdateRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("admin appointments status: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("admin appointments status: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	appt, err := h.service.UpdateStatus(ctx, scope.Branch, req.ID, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidStatus):
			transport.WriteError(w, http.StatusBadRequest, "invalid status", nil)
		case errors.Is(err, ErrNotFound):
			log.Warn("admin appointments status: not found", slog.String("appointment_id", req.ID))
			transport.WriteError(w, http.StatusNotFound, "appointment not found", nil)
		case errors.Is(err, ErrCapacityFull):
			log.Warn("admin appointments status: day full", slog.String("appointment_id", req.ID))
			transport.WriteError(w, http.StatusConflict, err.Error(), nil)
		default:
			log.Error("admin appointments status: database error", slog.String("error", err.Error()))
			transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		}
		return
	}

	h.invalidateAvailability(r.Context(), appt.BranchSlug, appt.AppointmentDate)

	log.Info("admin appointments status: ok",
		slog.String("appointment_id", appt.ID),
		slog.String("status", appt.Status),
		slog.String("admin_id", scope.UserID),
	)
	transport.WriteJSON(w, http.StatusOK, appt)
}

// AdminDelete permanently removes an appointment of the admin's branch.
func (h *Handler) AdminDelete(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	scope, ok := middleware.ScopeFromContext(r.Context())
	if !ok {
		transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		log.Warn("admin appointments delete: missing id")
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	appt, err := h.service.Delete(ctx, scope.Branch, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn("admin appointments delete: not found", slog.String("appointment_id", id))
			transport.WriteError(w, http.StatusNotFound, "appointment not found", nil)
			return
		}
		log.Error("admin appointments delete: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	h.invalidateAvailability(r.Context(), appt.BranchSlug, appt.AppointmentDate)

	log.Info("admin appointments delete: ok", slog.String("appointment_id", id), slog.String("admin_id", scope.UserID))
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// AdminExport streams the filtered branch listing as an xlsx workbook.
func (h *Handler) AdminExport(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	scope, ok := middleware.ScopeFromContext(r.Context())
	if !ok {
		transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	q := r.URL.Query()
	filter := ListFilter{
		Branch: scope.Branch,
		Status: q.Get("status"),
		From:   strings.TrimSpace(q.Get("from")),
		To:     strings.TrimSpace(q.Get("to")),
		Query:  q.Get("q"),
	}
	if filter.Status == "all" {
		filter.Status = ""
	}
	for field, value := range map[string]string{"from": filter.From, "to": filter.To} {
		if value == "" {
			continue
		}
		if _, err := clinic.ParseDate(value); err != nil {
			log.Warn("admin appointments export: invalid query", slog.String("field", field))
			transport.WriteError(w, http.StatusBadRequest, "invalid query", map[string]string{field: "date"})
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	items, _, err := h.service.List(ctx, filter, exportMaxRows, 0)
	if err != nil {
		if errors.Is(err, ErrInvalidStatus) {
			transport.WriteError(w, http.StatusBadRequest, "invalid query", map[string]string{"status": "oneof"})
			return
		}
		log.Error("admin appointments export: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	book, err := BuildWorkbook(items)
	if err != nil {
		log.Error("admin appointments export: workbook error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "export error", nil)
		return
	}

	filename := "appointments-" + scope.Branch + "-" + time.Now().Format("20060102") + ".xlsx"
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if err := book.Write(w); err != nil {
		log.Error("admin appointments export: write error", slog.String("error", err.Error()))
		return
	}

	log.Info("admin appointments export: ok", slog.String("branch", scope.Branch), slog.Int("rows", len(items)))
}

func (h *Handler) writeReserveError(w http.ResponseWriter, log *slog.Logger, op string, err error) {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		log.Warn(op+": validation error", slog.String("field", ve.Field))
		transport.WriteError(w, http.StatusBadRequest, ve.Message, nil)
	case errors.Is(err, ErrClosedDay):
		log.Warn(op + ": closed day")
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, ErrInvalidStatus):
		log.Warn(op + ": invalid status")
		transport.WriteError(w, http.StatusBadRequest, "invalid status", nil)
	case errors.Is(err, ErrCapacityFull):
		log.Warn(op + ": day full")
		transport.WriteError(w, http.StatusConflict, err.Error(), nil)
	default:
		log.Error(op+": database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
	}
}

func (h *Handler) invalidateAvailability(ctx context.Context, branch, date string) {
	if h.cache == nil {
		return
	}
	_ = h.cache.Delete(ctx, availabilityKey(branch, date))
}

func availabilityKey(branch, date string) string {
	return "availability:" + branch + ":" + date
}

func parsePage(raw string) int {
	page, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func (h *Handler) logWithRequest(r *http.Request) *slog.Logger {
	if r == nil {
		return h.log
	}
	if id := middleware.RequestIDFromContext(r.Context()); id != "" {
		return h.log.With(slog.String("request_id", id))
	}
	return h.log
}
