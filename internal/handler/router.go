package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/AlexZinkM/xdaghub/internal/model"
	"github.com/AlexZinkM/xdaghub/internal/router"
)

// Header names a dApp connection uses to identify itself.
const (
	HeaderOrigin  = "X-Dapp-Origin"
	HeaderFavIcon = "X-Dapp-Favicon"
)

// RouterHandler carries router envelopes over HTTP
type RouterHandler struct {
	router *router.Router
}

// NewRouterHandler creates a new RouterHandler
func NewRouterHandler(rt *router.Router) *RouterHandler {
	return &RouterHandler{router: rt}
}

// UI handles POST /router/ui
// @Summary      Send a message from the wallet UI
// @Description  Dispatches keyring calls, approval decisions and request listings
// @Tags         router
// @Accept       json
// @Produce      json
// @Param        request  body      object  true  "Message envelope {id, payload{type, ...}}"
// @Success      200      {object}  object
// @Failure      400      {object}  model.ErrorResponse
// @Security     UIToken
// @Router       /router/ui [post]
func (h *RouterHandler) UI(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, router.Source{UI: true, Origin: "ui"})
}

// Dapp handles POST /router/dapp
// @Summary      Send a message from a dApp connection
// @Description  Transaction, sign-message and inscription requests. The call returns once the user decides.
// @Tags         router
// @Accept       json
// @Produce      json
// @Param        X-Dapp-Origin   header    string  true   "dApp origin"
// @Param        X-Dapp-Favicon  header    string  false  "dApp favicon URL"
// @Param        request         body      object  true   "Message envelope {id, payload{type, ...}}"
// @Success      200             {object}  object
// @Failure      400             {object}  model.ErrorResponse
// @Router       /router/dapp [post]
func (h *RouterHandler) Dapp(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get(HeaderOrigin)
	if origin == "" {
		origin = r.Header.Get("Origin")
	}
	if origin == "" {
		writeError(w, fmt.Errorf("%w: %s header is required", model.ErrValidation, HeaderOrigin))
		return
	}
	h.serve(w, r, router.Source{Origin: origin, FavIcon: r.Header.Get(HeaderFavIcon)})
}

func (h *RouterHandler) serve(w http.ResponseWriter, r *http.Request, src router.Source) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var msg router.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeError(w, fmt.Errorf("%w: %v", model.ErrValidation, err))
		return
	}

	// protocol failures travel inside the envelope
	writeJSON(w, http.StatusOK, h.router.Handle(r.Context(), msg, src))
}
