package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	iauth "github.com/capturecabinet/cabinet/internal/auth"
	appErrors "github.com/capturecabinet/cabinet/pkg/errors"
	"github.com/capturecabinet/cabinet/pkg/response"
)

// PairingHandler exchanges one-time codes for device tokens.
type PairingHandler struct {
	pairing *iauth.PairingService
}

// NewPairingHandler constructs a pairing handler.
func NewPairingHandler(pairing *iauth.PairingService) *PairingHandler {
	return &PairingHandler{pairing: pairing}
}

// Begin creates a pairing code to display in the app UI.
func (h *PairingHandler) Begin(c *gin.Context) {
	var payload beginPairingPayload
	if !bindAndValidate(c, &payload) {
		return
	}

	code, err := h.pairing.Begin(payload.DeviceName)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"code": code})
}

// Redeem exchanges a pairing code for a bearer token.
func (h *PairingHandler) Redeem(c *gin.Context) {
	var payload redeemPairingPayload
	if !bindAndValidate(c, &payload) {
		return
	}

	token, err := h.pairing.Redeem(payload.Code)
	if err != nil {
		if errors.Is(err, iauth.ErrPairingCodeInvalid) {
			response.Error(c, appErrors.NewBadRequest("pairing code is invalid or expired"))
			return
		}
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"token": token})
}

type beginPairingPayload struct {
	DeviceName string `json:"device_name" validate:"omitempty,max=120"`
}

type redeemPairingPayload struct {
	Code string `json:"code" validate:"required"`
}
