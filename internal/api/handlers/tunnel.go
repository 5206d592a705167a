package handlers

import (
	"net/http"

	"tunnelout/internal/api/constants"
	"tunnelout/internal/api/dto/common"
	tunneldto "tunnelout/internal/api/dto/v1/tunnel"
	"tunnelout/internal/api/validation"
	"tunnelout/internal/logging"
	"tunnelout/internal/service"
	"tunnelout/internal/utils"

	"github.com/gin-gonic/gin"
)

// TunnelHandler handles tunnel-related HTTP requests
type TunnelHandler struct {
	tunnelService service.TunnelService
}

// NewTunnelHandler creates a new tunnel handler instance
func NewTunnelHandler(tunnelService service.TunnelService) *TunnelHandler {
	return &TunnelHandler{
		tunnelService: tunnelService,
	}
}

// GetTunnel returns the caller's current record, or null when none exists
func (h *TunnelHandler) GetTunnel(c *gin.Context) {
	userID := c.MustGet(constants.ContextKeyUserID).(string)

	rec, err := h.tunnelService.FetchExisting(c.Request.Context(), userID, false)
	if err != nil {
		logging.GetLogger().Error("GetTunnel: failed to fetch record for user %s: %v", userID, err)
		utils.HandleAPIError(c, err, http.StatusInternalServerError, common.ErrCodeInternalServer, "Failed to fetch tunnel")
		return
	}

	utils.HandleSuccess(c, tunneldto.Response{Tunnel: rec})
}

// CreateTunnel provisions a new tunnel or extends the existing one
func (h *TunnelHandler) CreateTunnel(c *gin.Context) {
	var req tunneldto.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(
			common.ErrCodeValidation, "Invalid request data", validation.FormatValidationError(err)))
		return
	}

	userID := c.MustGet(constants.ContextKeyUserID).(string)
	rec, err := h.tunnelService.CreateOrTopup(c.Request.Context(), userID, req.Days)
	if err != nil {
		logging.GetLogger().Error("CreateTunnel: failed for user %s, days=%d: %v", userID, req.Days, err)
		utils.HandleAPIError(c, err, http.StatusInternalServerError, common.ErrCodeInternalServer, "Failed to create tunnel")
		return
	}

	utils.HandleCreated(c, rec)
}

// ConfirmTunnel activates the record matching the given payment hash
func (h *TunnelHandler) ConfirmTunnel(c *gin.Context) {
	paymentHash := c.Query("payment_hash")
	userID := c.MustGet(constants.ContextKeyUserID).(string)

	rec, err := h.tunnelService.Activate(c.Request.Context(), userID, paymentHash)
	if err != nil {
		logging.GetLogger().Error("ConfirmTunnel: failed for user %s, hash=%s: %v", userID, paymentHash, err)
		utils.HandleAPIError(c, err, http.StatusInternalServerError, common.ErrCodeInternalServer, "Failed to confirm tunnel")
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, common.NewErrorResponse(common.ErrCodeNotFound, "Tunnel not found", nil))
		return
	}

	utils.HandleSuccess(c, rec)
}

// PingTunnel probes the tunnel's public URL
func (h *TunnelHandler) PingTunnel(c *gin.Context) {
	userID := c.MustGet(constants.ContextKeyUserID).(string)
	reachable := h.tunnelService.Ping(c.Request.Context(), userID)
	utils.HandleSuccess(c, tunneldto.PingResponse{Reachable: reachable})
}

// DeleteTunnel tears down the caller's record, listener and subprocess
func (h *TunnelHandler) DeleteTunnel(c *gin.Context) {
	userID := c.MustGet(constants.ContextKeyUserID).(string)

	if err := h.tunnelService.Delete(c.Request.Context(), userID); err != nil {
		logging.GetLogger().Error("DeleteTunnel: failed for user %s: %v", userID, err)
		utils.HandleAPIError(c, err, http.StatusInternalServerError, common.ErrCodeInternalServer, "Failed to delete tunnel")
		return
	}

	utils.HandleNoContent(c)
}
