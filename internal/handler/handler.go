package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/Dan9191/vehicle-valuation/internal/integrations/rc"
	"github.com/Dan9191/vehicle-valuation/internal/models"
	"github.com/Dan9191/vehicle-valuation/internal/repository"
	"github.com/Dan9191/vehicle-valuation/internal/service"
	"github.com/Dan9191/vehicle-valuation/internal/valuation"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Valuator is the part of the service layer the HTTP API exposes
type Valuator interface {
	Health(ctx context.Context) error
	ValueManual(ctx context.Context, req service.ValuationRequest) (*service.ValuationResponse, error)
	ValueByRC(ctx context.Context, req service.RCValuationRequest) (*service.ValuationResponse, error)
	ValueBatch(ctx context.Context, reqs []service.ValuationRequest) ([]service.BatchItem, error)
	CalculateIDV(ctx context.Context, req valuation.IDVRequest) (*service.IDVResponse, error)
	RCDetails(ctx context.Context, rcNumber string) (*models.RCDetails, error)
	History(ctx context.Context, rcNumber string) ([]models.ValuationRecord, error)
	Recent(ctx context.Context, limit int) ([]models.ValuationRecord, error)
	Similar(ctx context.Context, rcNumber string, limit int) ([]models.SimilarVehicle, error)
	Certificate(ctx context.Context, rcNumber string) ([]byte, error)
}

type Handler struct {
	svc Valuator
	log *logrus.Logger
}

func NewHandler(svc Valuator, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// RegisterRoutes mounts every endpoint on r
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.Health).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/valuation/manual", h.ValueManual).Methods("POST")
	api.HandleFunc("/valuation/rc", h.ValueByRC).Methods("POST")
	api.HandleFunc("/valuation/batch", h.ValueBatch).Methods("POST")
	api.HandleFunc("/idv/calculate", h.CalculateIDV).Methods("POST")
	// recent must be registered before {rc}
	api.HandleFunc("/valuations/recent", h.Recent).Methods("GET")
	api.HandleFunc("/valuations/{rc}", h.History).Methods("GET")
	api.HandleFunc("/valuations/{rc}/certificate", h.Certificate).Methods("GET")
	api.HandleFunc("/valuations/{rc}/similar", h.Similar).Methods("GET")
	api.HandleFunc("/rc/{rc}", h.RCDetails).Methods("GET")
}

// Health reports whether the database is reachable
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Health(r.Context()); err != nil {
		h.log.Errorf("Health check failed: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ValueManual values a vehicle described in the request body
func (h *Handler) ValueManual(w http.ResponseWriter, r *http.Request) {
	var req service.ValuationRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.svc.ValueManual(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ValueByRC values a vehicle identified by its registration number
func (h *Handler) ValueByRC(w http.ResponseWriter, r *http.Request) {
	var req service.RCValuationRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.svc.ValueByRC(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type batchRequest struct {
	Vehicles []service.ValuationRequest `json:"vehicles"`
}

// ValueBatch values up to service.MaxBatchSize vehicles
func (h *Handler) ValueBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !h.decode(w, r, &req) {
		return
	}
	items, err := h.svc.ValueBatch(r.Context(), req.Vehicles)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": items})
}

// CalculateIDV computes an insurance declared value
func (h *Handler) CalculateIDV(w http.ResponseWriter, r *http.Request) {
	var req valuation.IDVRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.svc.CalculateIDV(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) Recent(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.limit(w, r)
	if !ok {
		return
	}
	out, err := h.svc.Recent(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.History(r.Context(), mux.Vars(r)["rc"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	if len(out) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no valuations for this RC"})
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Certificate returns the latest valuation of an RC as XML
func (h *Handler) Certificate(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Certificate(r.Context(), mux.Vars(r)["rc"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}

func (h *Handler) Similar(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.limit(w, r)
	if !ok {
		return
	}
	out, err := h.svc.Similar(r.Context(), mux.Vars(r)["rc"], limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) RCDetails(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.RCDetails(r.Context(), mux.Vars(r)["rc"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func (h *Handler) limit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
		return 0, false
	}
	return n, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Errorf("Request failed: %v", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, valuation.ErrMissingRequiredInput), errors.Is(err, service.ErrBatchTooLarge):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, rc.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrRCLookupUnavailable), errors.Is(err, rc.ErrNotConfigured):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
