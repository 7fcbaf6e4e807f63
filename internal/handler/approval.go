package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/AlexZinkM/xdaghub/internal/model"
	"github.com/AlexZinkM/xdaghub/internal/surface"
	"github.com/AlexZinkM/xdaghub/xdag"
)

// ApprovalHandler serves the approval surfaces and the user's decisions
type ApprovalHandler struct {
	surfaces  *surface.Registry
	approvals *xdag.Approvals
}

// NewApprovalHandler creates a new ApprovalHandler
func NewApprovalHandler(surfaces *surface.Registry, approvals *xdag.Approvals) *ApprovalHandler {
	return &ApprovalHandler{surfaces: surfaces, approvals: approvals}
}

// Surfaces handles GET /surfaces
// @Summary      List open approval surfaces
// @Tags         approvals
// @Produce      json
// @Success      200  {array}  surface.Window
// @Security     UIToken
// @Router       /surfaces [get]
func (h *ApprovalHandler) Surfaces(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, h.surfaces.List())
}

// CloseSurface handles POST /surfaces/{id}/close
// @Summary      Close an approval surface
// @Description  Closing the surface of a pending request rejects it
// @Tags         approvals
// @Param        id   path  string  true  "Request id"
// @Success      204
// @Failure      404  {object}  model.ErrorResponse
// @Security     UIToken
// @Router       /surfaces/{id}/close [post]
func (h *ApprovalHandler) CloseSurface(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	if err := h.surfaces.Close(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DecideTransaction handles POST /approvals/transactions/{id}
// @Summary      Decide a transaction or sign-message request
// @Description  An approved request is executed before the decision is published
// @Tags         approvals
// @Accept       json
// @Param        id       path  string                 true  "Request id"
// @Param        request  body  model.DecisionRequest  true  "Decision"
// @Success      204
// @Failure      400  {object}  model.ErrorResponse
// @Failure      404  {object}  model.ErrorResponse
// @Security     UIToken
// @Router       /approvals/transactions/{id} [post]
func (h *ApprovalHandler) DecideTransaction(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.approvals.DecideTransaction)
}

// DecideInscription handles POST /approvals/inscriptions/{id}
// @Summary      Decide an inscription request
// @Tags         approvals
// @Accept       json
// @Param        id       path  string                 true  "Request id"
// @Param        request  body  model.DecisionRequest  true  "Decision"
// @Success      204
// @Failure      400  {object}  model.ErrorResponse
// @Failure      404  {object}  model.ErrorResponse
// @Security     UIToken
// @Router       /approvals/inscriptions/{id} [post]
func (h *ApprovalHandler) DecideInscription(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.approvals.DecideInscription)
}

func (h *ApprovalHandler) decide(w http.ResponseWriter, r *http.Request, fn func(context.Context, string, bool) error) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var req model.DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", model.ErrValidation, err))
		return
	}
	if err := fn(r.Context(), r.PathValue("id"), req.Approved); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
