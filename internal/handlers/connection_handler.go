package handlers

import (
	"net/http"

	"github.com/hisabkitab/backend/internal/models"
	"github.com/hisabkitab/backend/internal/services"
	"go.uber.org/zap"
)

type ConnectionHandler struct {
	connections ConnectionStore
	validator   *services.ValidationHelper
	logger      *zap.Logger
}

func NewConnectionHandler(connections ConnectionStore, logger *zap.Logger) *ConnectionHandler {
	return &ConnectionHandler{
		connections: connections,
		validator:   services.NewValidationHelper(),
		logger:      logger,
	}
}

type connectionRequest struct {
	ReceiverUsername string  `json:"receiver_username" validate:"required,max=150"`
	Message          *string `json:"message,omitempty" validate:"omitempty,max=500"`
}

// ListConnections lists every connection the caller takes part in
// @Summary List connections
// @Tags Connections
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.UserConnection
// @Failure 401 {object} services.ErrorResponse
// @Router /connections [get]
func (h *ConnectionHandler) ListConnections(w http.ResponseWriter, r *http.Request) {
	userID, ok := actingUser(w, r)
	if !ok {
		return
	}

	connections, err := h.connections.List(r.Context(), userID)
	if err != nil {
		services.SendServiceError(w, h.logger, err)
		return
	}
	services.SendJSON(w, http.StatusOK, connections)
}

// RequestConnection sends a connection request to another user
// @Summary Request connection
// @Description Send a connection request to the user with the given username
// @Tags Connections
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{receiver_username=string,message=string} true "Connection request"
// @Success 201 {object} models.UserConnection
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /connections [post]
func (h *ConnectionHandler) RequestConnection(w http.ResponseWriter, r *http.Request) {
	userID, ok := actingUser(w, r)
	if !ok {
		return
	}

	var req connectionRequest
	if !h.validator.DecodeJSONBody(w, r, &req) {
		return
	}

	receiverID, err := h.connections.ResolveUsername(r.Context(), req.ReceiverUsername)
	if err != nil {
		services.SendServiceError(w, h.logger, err)
		return
	}

	conn, err := h.connections.Request(r.Context(), userID, receiverID, req.Message)
	if err != nil {
		services.SendServiceError(w, h.logger, err)
		return
	}
	services.SendJSON(w, http.StatusCreated, conn)
}

// GetConnection returns a connection the caller takes part in
// @Summary Get connection
// @Tags Connections
// @Produce json
// @Security BearerAuth
// @Param connectionId path string true "Connection ID"
// @Success 200 {object} models.UserConnection
// @Failure 404 {object} services.ErrorResponse
// @Router /connections/{connectionId} [get]
func (h *ConnectionHandler) GetConnection(w http.ResponseWriter, r *http.Request) {
	userID, ok := actingUser(w, r)
	if !ok {
		return
	}
	connectionID, ok := pathUUID(w, r, "connectionId")
	if !ok {
		return
	}

	conn, err := h.connections.Get(r.Context(), connectionID, userID)
	if err != nil {
		services.SendServiceError(w, h.logger, err)
		return
	}
	services.SendJSON(w, http.StatusOK, conn)
}

// AcceptConnection accepts a pending request addressed to the caller
// @Summary Accept connection
// @Tags Connections
// @Produce json
// @Security BearerAuth
// @Param connectionId path string true "Connection ID"
// @Success 200 {object} models.UserConnection
// @Failure 403 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /connections/{connectionId}/accept [post]
func (h *ConnectionHandler) AcceptConnection(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, models.ConnectionAccepted)
}

// RejectConnection rejects a pending request addressed to the caller
// @Summary Reject connection
// @Tags Connections
// @Produce json
// @Security BearerAuth
// @Param connectionId path string true "Connection ID"
// @Success 200 {object} models.UserConnection
// @Failure 403 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /connections/{connectionId}/reject [post]
func (h *ConnectionHandler) RejectConnection(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, models.ConnectionRejected)
}

func (h *ConnectionHandler) respond(w http.ResponseWriter, r *http.Request, status string) {
	userID, ok := actingUser(w, r)
	if !ok {
		return
	}
	connectionID, ok := pathUUID(w, r, "connectionId")
	if !ok {
		return
	}

	var (
		conn *models.UserConnection
		err  error
	)
	if status == models.ConnectionAccepted {
		conn, err = h.connections.Accept(r.Context(), connectionID, userID)
	} else {
		conn, err = h.connections.Reject(r.Context(), connectionID, userID)
	}
	if err != nil {
		services.SendServiceError(w, h.logger, err)
		return
	}
	services.SendJSON(w, http.StatusOK, conn)
}
