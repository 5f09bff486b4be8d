package rest

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/Zayn-Suleman/loan-preQualification/internal/domain"
	"github.com/Zayn-Suleman/loan-preQualification/internal/service"
	"github.com/Zayn-Suleman/loan-preQualification/internal/transport/rest/response"
)

type Handler struct {
	svc      *service.ApplicationService
	validate *validator.Validate
}

func NewHandler(svc *service.ApplicationService) *Handler {
	return &Handler{svc: svc, validate: NewValidator()}
}

// Submit accepts a prequalification request. 202: the decision arrives
// asynchronously, only intake is durable at response time.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid body", nil)
		return
	}

	if problems := req.Validate(h.validate, time.Now().UTC()); len(problems) > 0 {
		fail(w, r, http.StatusUnprocessableEntity, "validation.failed", "validation failed", problems)
		return
	}

	cmd, err := req.ToCommand()
	if err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid date_of_birth", nil)
		return
	}

	app, err := h.svc.Submit(r.Context(), cmd)
	if err != nil {
		handleErr(w, r, err)
		return
	}

	response.Data(w, http.StatusAccepted, map[string]string{
		"application_id": app.ID.String(),
		"status":         string(app.Status),
	})
}

// Get returns the masked application view.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "applicationID"))
	if err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid applicationID", map[string]string{
			"application_id": "must be a valid uuid",
		})
		return
	}

	view, err := h.svc.Get(r.Context(), id)
	if err != nil {
		handleErr(w, r, err)
		return
	}

	response.Data(w, http.StatusOK, view)
}

func handleErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrDuplicatePAN):
		fail(w, r, http.StatusConflict, "application.duplicate_pan", err.Error(), nil)
	case errors.Is(err, domain.ErrApplicationNotFound):
		fail(w, r, http.StatusNotFound, "application.not_found", err.Error(), nil)
	default:
		// Do not leak internal details.
		fail(w, r, http.StatusInternalServerError, "internal", "internal error", nil)
	}
}

func fail(w http.ResponseWriter, r *http.Request, status int, code, message string, meta map[string]string) {
	reqID := GetRequestID(r.Context())
	if reqID == "" {
		reqID = "no-request-id"
	}
	response.Fail(w, status, code, message, meta, reqID)
}
