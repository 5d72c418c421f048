package handlers

import (
	"net/http"

	"github.com/hisabkitab/backend/internal/models"
	"github.com/hisabkitab/backend/internal/services"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type EntityHandler struct {
	entities  EntityStore
	validator *services.ValidationHelper
	logger    *zap.Logger
}

func NewEntityHandler(entities EntityStore, logger *zap.Logger) *EntityHandler {
	return &EntityHandler{
		entities:  entities,
		validator: services.NewValidationHelper(),
		logger:    logger,
	}
}

type createEntityRequest struct {
	Name           string          `json:"name" validate:"required,max=255"`
	Type           string          `json:"type" validate:"required,oneof=ACCOUNT EXTERNAL_PAYEE CATEGORY WALLET SYSTEM"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
}

type renameEntityRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

type adjustBalanceRequest struct {
	Delta decimal.Decimal `json:"delta"`
}

// ListEntities lists the caller's entities
// @Summary List entities
// @Description List the caller's entities, optionally filtered by type
// @Tags Entities
// @Produce json
// @Security BearerAuth
// @Param type query string false "Entity type" Enums(ACCOUNT, EXTERNAL_PAYEE, CATEGORY, WALLET, SYSTEM)
// @Success 200 {array} models.Entity
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Router /entities [get]
func (h *EntityHandler) ListEntities(w http.ResponseWriter, r *http.Request) {
	userID, ok := actingUser(w, r)
	if !ok {
		return
	}

	var kind *models.EntityKind
	if raw := r.URL.Query().Get("type"); raw != "" {
		k := models.EntityKind(raw)
		if !k.Valid() {
			services.SendServiceError(w, h.logger, services.ErrInvalidEntityKind)
			return
		}
		kind = &k
	}

	entities, err := h.entities.ListByOwner(r.Context(), userID, kind)
	if err != nil {
		services.SendServiceError(w, h.logger, err)
		return
	}
	services.SendJSON(w, http.StatusOK, entities)
}

// CreateEntity creates an entity
// @Summary Create entity
// @Description Create an account, payee, category, wallet or system entity with an optional opening balance
// @Tags Entities
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{name=string,type=string,initial_balance=string} true "Entity"
// @Success 201 {object} models.Entity
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Router /entities [post]
func (h *EntityHandler) CreateEntity(w http.ResponseWriter, r *http.Request) {
	userID, ok := actingUser(w, r)
	if !ok {
		return
	}

	var req createEntityRequest
	if !h.validator.DecodeJSONBody(w, r, &req) {
		return
	}

	entity, err := h.entities.Create(r.Context(), userID, req.Name, models.EntityKind(req.Type), req.InitialBalance)
	if err != nil {
		services.SendServiceError(w, h.logger, err)
		return
	}
	services.SendJSON(w, http.StatusCreated, entity)
}

// GetEntity returns one of the caller's entities
// @Summary Get entity
// @Tags Entities
// @Produce json
// @Security BearerAuth
// @Param entityId path string true "Entity ID"
// @Success 200 {object} models.Entity
// @Failure 404 {object} services.ErrorResponse
// @Router /entities/{entityId} [get]
func (h *EntityHandler) GetEntity(w http.ResponseWriter, r *http.Request) {
	userID, ok := actingUser(w, r)
	if !ok {
		return
	}
	entityID, ok := pathUUID(w, r, "entityId")
	if !ok {
		return
	}

	entity, err := h.entities.GetOwned(r.Context(), entityID, userID)
	if err != nil {
		services.SendServiceError(w, h.logger, err)
		return
	}
	services.SendJSON(w, http.StatusOK, entity)
}

// RenameEntity changes an entity's name
// @Summary Rename entity
// @Tags Entities
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param entityId path string true "Entity ID"
// @Param request body object{name=string} true "New name"
// @Success 200 {object} models.Entity
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /entities/{entityId} [patch]
func (h *EntityHandler) RenameEntity(w http.ResponseWriter, r *http.Request) {
	userID, ok := actingUser(w, r)
	if !ok {
		return
	}
	entityID, ok := pathUUID(w, r, "entityId")
	if !ok {
		return
	}

	var req renameEntityRequest
	if !h.validator.DecodeJSONBody(w, r, &req) {
		return
	}

	entity, err := h.entities.Rename(r.Context(), entityID, userID, req.Name)
	if err != nil {
		services.SendServiceError(w, h.logger, err)
		return
	}
	services.SendJSON(w, http.StatusOK, entity)
}

// DeleteEntity removes an entity and every transaction that references it
// @Summary Delete entity
// @Description Completed transactions touching the entity are reversed on their counterparties before removal
// @Tags Entities
// @Security BearerAuth
// @Param entityId path string true "Entity ID"
// @Success 204
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /entities/{entityId} [delete]
func (h *EntityHandler) DeleteEntity(w http.ResponseWriter, r *http.Request) {
	userID, ok := actingUser(w, r)
	if !ok {
		return
	}
	entityID, ok := pathUUID(w, r, "entityId")
	if !ok {
		return
	}

	if err := h.entities.Delete(r.Context(), entityID, userID); err != nil {
		services.SendServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AdjustBalance applies a manual correction to an entity's balance
// @Summary Adjust balance
// @Tags Entities
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param entityId path string true "Entity ID"
// @Param request body object{delta=string} true "Signed amount to add"
// @Success 200 {object} models.Entity
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /entities/{entityId}/adjust [post]
func (h *EntityHandler) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := actingUser(w, r)
	if !ok {
		return
	}
	entityID, ok := pathUUID(w, r, "entityId")
	if !ok {
		return
	}

	var req adjustBalanceRequest
	if !h.validator.DecodeJSONBody(w, r, &req) {
		return
	}

	if _, err := h.entities.GetOwned(r.Context(), entityID, userID); err != nil {
		services.SendServiceError(w, h.logger, err)
		return
	}

	entity, err := h.entities.AdjustBalance(r.Context(), entityID, req.Delta)
	if err != nil {
		services.SendServiceError(w, h.logger, err)
		return
	}
	services.SendJSON(w, http.StatusOK, entity)
}
