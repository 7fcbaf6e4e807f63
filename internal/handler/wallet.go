package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/AlexZinkM/xdaghub/internal/broker"
	"github.com/AlexZinkM/xdaghub/internal/model"
	"github.com/AlexZinkM/xdaghub/xdag"
)

// WalletHandler serves the operations of the unlocked wallet itself
type WalletHandler struct {
	wallet       *xdag.Service
	inscriptions *broker.Inscriptions
}

// NewWalletHandler creates a new WalletHandler
func NewWalletHandler(wallet *xdag.Service, inscriptions *broker.Inscriptions) *WalletHandler {
	return &WalletHandler{wallet: wallet, inscriptions: inscriptions}
}

// GetBalance handles GET /wallet/balance
// @Summary      Get balance
// @Description  Returns the balance of an address, or of the active account when address is omitted
// @Tags         wallet
// @Produce      json
// @Param        address  query     string  false  "XDAG address"
// @Success      200      {object}  model.BalanceResponse
// @Failure      409      {object}  model.ErrorResponse
// @Security     UIToken
// @Router       /wallet/balance [get]
func (h *WalletHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	resp, err := h.wallet.GetBalance(r.Context(), r.URL.Query().Get("address"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// QR handles GET /wallet/qr
// @Summary      Address QR code
// @Tags         wallet
// @Produce      json
// @Param        address  query     string  true  "XDAG address"
// @Success      200      {object}  model.AccountQRResponse
// @Failure      400      {object}  model.ErrorResponse
// @Security     UIToken
// @Router       /wallet/qr [get]
func (h *WalletHandler) QR(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	address := r.URL.Query().Get("address")
	if address == "" {
		writeError(w, fmt.Errorf("%w: address is required", model.ErrValidation))
		return
	}
	resp, err := xdag.AddressQR(address)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Transfer handles POST /wallet/transfer
// @Summary      Transfer XDAG
// @Description  Signs and submits a transfer from an account of the unlocked wallet
// @Tags         wallet
// @Accept       json
// @Produce      json
// @Param        request  body      model.PayRequest  true  "Transfer request"
// @Success      200      {object}  model.PayResponse
// @Failure      400      {object}  model.ErrorResponse
// @Failure      502      {object}  model.ErrorResponse
// @Security     UIToken
// @Router       /wallet/transfer [post]
func (h *WalletHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req model.PayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", model.ErrValidation, err))
		return
	}
	block, err := h.wallet.Transfer(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.PayResponse{Block: *block})
}

// Inscribe handles POST /wallet/inscribe
// @Summary      Write an inscription
// @Description  Encodes the inscription into fragments and sends one transfer per fragment
// @Tags         wallet
// @Accept       json
// @Produce      json
// @Param        from     query     string             false  "Sending account, the active account when omitted"
// @Param        request  body      model.Inscription  true   "Inscription"
// @Success      200      {object}  model.InscribeResponse
// @Failure      400      {object}  model.ErrorResponse
// @Security     UIToken
// @Router       /wallet/inscribe [post]
func (h *WalletHandler) Inscribe(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var insc model.Inscription
	if err := json.NewDecoder(r.Body).Decode(&insc); err != nil {
		writeError(w, fmt.Errorf("%w: %v", model.ErrValidation, err))
		return
	}
	tag, err := h.inscriptions.NextImageIndex(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	blocks, err := h.wallet.Inscribe(r.Context(), r.URL.Query().Get("from"), insc, tag)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.InscribeResponse{Blocks: blocks})
}

// TransactionHistory handles GET /wallet/transactions
// @Summary      Transaction history
// @Tags         wallet
// @Produce      json
// @Param        address  query     string  false  "XDAG address"
// @Param        page     query     int     false  "Page, starting at 1"
// @Success      200      {object}  model.AddressBlockResponse
// @Security     UIToken
// @Router       /wallet/transactions [get]
func (h *WalletHandler) TransactionHistory(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	page := 1
	if v := r.URL.Query().Get("page"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p < 1 {
			writeError(w, fmt.Errorf("%w: invalid page %q", model.ErrValidation, v))
			return
		}
		page = p
	}
	resp, err := h.wallet.GetTransactions(r.Context(), r.URL.Query().Get("address"), page)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// RestoreInscriptions handles GET /wallet/inscriptions
// @Summary      Restore inscriptions
// @Description  Rebuilds the inscriptions found in the history of an address
// @Tags         wallet
// @Produce      json
// @Param        address  query     string  false  "XDAG address"
// @Success      200      {array}   model.RestoredInscription
// @Security     UIToken
// @Router       /wallet/inscriptions [get]
func (h *WalletHandler) RestoreInscriptions(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	resp, err := h.wallet.RestoreInscriptions(r.Context(), r.URL.Query().Get("address"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
