package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/hisabkitab/backend/internal/services"
	"go.uber.org/zap"
)

type PaymentModeHandler struct {
	modes     PaymentModeStore
	wallets   WalletProvisioner
	validator *services.ValidationHelper
	logger    *zap.Logger
}

func NewPaymentModeHandler(modes PaymentModeStore, wallets WalletProvisioner, logger *zap.Logger) *PaymentModeHandler {
	return &PaymentModeHandler{
		modes:     modes,
		wallets:   wallets,
		validator: services.NewValidationHelper(),
		logger:    logger,
	}
}

type createPaymentModeRequest struct {
	Name           string     `json:"name" validate:"required,max=255"`
	AppKey         string     `json:"app_key" validate:"required,max=50"`
	LinkedEntityID *uuid.UUID `json:"linked_entity,omitempty"`
}

// ListPaymentModes lists the caller's payment modes
// @Summary List payment modes
// @Tags PaymentModes
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.PaymentMode
// @Failure 401 {object} services.ErrorResponse
// @Router /payment-modes [get]
func (h *PaymentModeHandler) ListPaymentModes(w http.ResponseWriter, r *http.Request) {
	userID, ok := actingUser(w, r)
	if !ok {
		return
	}

	modes, err := h.modes.List(r.Context(), userID)
	if err != nil {
		services.SendServiceError(w, h.logger, err)
		return
	}
	services.SendJSON(w, http.StatusOK, modes)
}

// PaymentModeOptions lists the apps a payment mode can use
// @Summary Payment mode options
// @Tags PaymentModes
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.SupportedApp
// @Router /payment-modes/options [get]
func (h *PaymentModeHandler) PaymentModeOptions(w http.ResponseWriter, r *http.Request) {
	options, err := h.modes.Options(r.Context())
	if err != nil {
		services.SendServiceError(w, h.logger, err)
		return
	}
	services.SendJSON(w, http.StatusOK, options)
}

// CreatePaymentMode registers a payment mode
// @Summary Create payment mode
// @Tags PaymentModes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{name=string,app_key=string,linked_entity=string} true "Payment mode"
// @Success 201 {object} models.PaymentMode
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /payment-modes [post]
func (h *PaymentModeHandler) CreatePaymentMode(w http.ResponseWriter, r *http.Request) {
	userID, ok := actingUser(w, r)
	if !ok {
		return
	}

	var req createPaymentModeRequest
	if !h.validator.DecodeJSONBody(w, r, &req) {
		return
	}

	mode, err := h.modes.Create(r.Context(), userID, req.Name, req.AppKey, req.LinkedEntityID)
	if err != nil {
		services.SendServiceError(w, h.logger, err)
		return
	}
	services.SendJSON(w, http.StatusCreated, mode)
}

// GetPaymentMode returns one of the caller's payment modes
// @Summary Get payment mode
// @Tags PaymentModes
// @Produce json
// @Security BearerAuth
// @Param modeId path string true "Payment mode ID"
// @Success 200 {object} models.PaymentMode
// @Failure 404 {object} services.ErrorResponse
// @Router /payment-modes/{modeId} [get]
func (h *PaymentModeHandler) GetPaymentMode(w http.ResponseWriter, r *http.Request) {
	userID, ok := actingUser(w, r)
	if !ok {
		return
	}
	modeID, ok := pathUUID(w, r, "modeId")
	if !ok {
		return
	}

	mode, err := h.modes.Get(r.Context(), modeID, userID)
	if err != nil {
		services.SendServiceError(w, h.logger, err)
		return
	}
	services.SendJSON(w, http.StatusOK, mode)
}

// CreateWallet provisions a wallet entity behind a payment mode
// @Summary Create wallet
// @Description Creates a zero-balance WALLET entity and links it to the payment mode. Only apps that support wallets qualify.
// @Tags PaymentModes
// @Produce json
// @Security BearerAuth
// @Param modeId path string true "Payment mode ID"
// @Success 201 {object} models.Entity
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /payment-modes/{modeId}/wallet [post]
func (h *PaymentModeHandler) CreateWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := actingUser(w, r)
	if !ok {
		return
	}
	modeID, ok := pathUUID(w, r, "modeId")
	if !ok {
		return
	}

	wallet, err := h.wallets.CreateWallet(r.Context(), modeID, userID)
	if err != nil {
		services.SendServiceError(w, h.logger, err)
		return
	}
	services.SendJSON(w, http.StatusCreated, wallet)
}
