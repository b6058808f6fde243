package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/rajkrsingh9/Gagan-Dhristi/internal/model"
	"github.com/rajkrsingh9/Gagan-Dhristi/internal/service/orchestrator"
)

const (
	monitorStartedMessage = "Monitoring started successfully. The system will now check for changes periodically."
	monitorStoppedMessage = "Monitoring has been stopped. No further alerts will be sent for previous tasks."
)

type aoiService interface {
	Submit(ctx context.Context, sub model.Submission) (*model.SubmitResponse, error)
	StartMonitoring(ctx context.Context, req model.MonitorRequest) (*model.MonitoringTask, error)
	StopMonitoring(ctx context.Context) error
	ResolveArtifact(name string) (string, error)
}

type AOIHandler struct {
	svc         aoiService
	submitGuard func(http.Handler) http.Handler
}

// NewAOIHandler builds the AOI endpoints. submitGuard, when non-nil,
// wraps only the submission route.
func NewAOIHandler(svc aoiService, submitGuard func(http.Handler) http.Handler) *AOIHandler {
	return &AOIHandler{svc: svc, submitGuard: submitGuard}
}

func (h *AOIHandler) RegisterRoutes(r chi.Router) {
	if h.submitGuard != nil {
		r.With(h.submitGuard).Post("/submit", h.Submit)
	} else {
		r.Post("/submit", h.Submit)
	}
	r.Post("/monitor", h.StartMonitoring)
	r.Post("/monitor/stop", h.StopMonitoring)
	r.Get("/download/{filename}", h.Download)
}

type submitRequest struct {
	Geometry         json.RawMessage         `json:"geometry"`
	StartDate        string                  `json:"startDate"`
	EndDate          string                  `json:"endDate"`
	Threshold        *model.Fraction         `json:"threshold" validate:"required,gte=0,lte=1"`
	DetectionMethods []model.DetectionMethod `json:"detectionMethods"`
	UserEmail        string                  `json:"userEmail" validate:"omitempty,email"`
}

func (h *AOIHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	resp, err := h.svc.Submit(r.Context(), model.Submission{
		Geometry:  req.Geometry,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Threshold: *req.Threshold,
		Methods:   req.DetectionMethods,
		Recipient: req.UserEmail,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type monitorRequest struct {
	Geometry           json.RawMessage         `json:"geometry"`
	MonitoringInterval days                    `json:"monitoringInterval"`
	Threshold          *model.Fraction         `json:"threshold" validate:"required,gte=0,lte=1"`
	UserEmail          string                  `json:"userEmail" validate:"omitempty,email"`
	DetectionMethods   []model.DetectionMethod `json:"detectionMethods"`
}

func (h *AOIHandler) StartMonitoring(w http.ResponseWriter, r *http.Request) {
	var req monitorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	task, err := h.svc.StartMonitoring(r.Context(), model.MonitorRequest{
		Geometry:     req.Geometry,
		IntervalDays: int(req.MonitoringInterval),
		Threshold:    *req.Threshold,
		Recipient:    req.UserEmail,
		Methods:      req.DetectionMethods,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": monitorStartedMessage,
		"aoi_id":  task.AOIID,
	})
}

func (h *AOIHandler) StopMonitoring(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.StopMonitoring(r.Context()); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, monitorStoppedMessage)
}

func (h *AOIHandler) Download(w http.ResponseWriter, r *http.Request) {
	// chi matches on the raw path only when the request carries one, so
	// the parameter is still escaped in that case alone.
	name := chi.URLParam(r, "filename")
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(name)
		if err != nil {
			writeError(w, http.StatusNotFound, "File not found.")
			return
		}
		name = unescaped
	}

	path, err := h.svc.ResolveArtifact(name)
	if err != nil {
		if errors.Is(err, orchestrator.ErrArtifactNotFound) {
			writeError(w, http.StatusNotFound, "File not found.")
			return
		}
		slog.Error("failed to resolve artifact", "name", name, "error", err)
		writeError(w, http.StatusInternalServerError, "Could not download the file.")
		return
	}

	f, err := os.Open(path)
	if err != nil {
		writeError(w, http.StatusNotFound, "File not found.")
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Could not download the file.")
		return
	}

	base := filepath.Base(path)
	w.Header().Set("Content-Disposition", `attachment; filename="`+base+`"`)
	http.ServeContent(w, r, base, info.ModTime(), f)
}

func (h *AOIHandler) writeServiceError(w http.ResponseWriter, err error) {
	var verr *orchestrator.ValidationError
	var aerr *orchestrator.AcquisitionError
	var serr *orchestrator.StoreError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Message)
	case errors.As(err, &aerr):
		writeJSON(w, http.StatusInternalServerError, aerr.Payload)
	case errors.As(err, &serr):
		slog.Error("monitoring task store failed", "op", serr.Op, "error", serr.Err)
		writeError(w, http.StatusInternalServerError, "Could not update monitoring tasks.")
	default:
		slog.Error("aoi request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "An error occurred during processing.")
	}
}
