package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"transcribot/internal/api/middleware"
	"transcribot/internal/api/v1/dto"
	"transcribot/internal/api/v1/services"
)

// QuotaHandler handles quota lookups and credits
type QuotaHandler struct {
	service services.QuotaService
}

// NewQuotaHandler creates a new quota handler
func NewQuotaHandler(service services.QuotaService) *QuotaHandler {
	return &QuotaHandler{service: service}
}

// Get handles GET /api/v1/quota/:user_id
//
// @Summary Get remaining transcription time
// @Tags quota
// @Produce json
// @Param user_id path string true "User ID"
// @Success 200 {object} dto.QuotaResponse
// @Failure 503 {object} errors.APIError "Quota store unavailable"
// @Router /quota/{user_id} [get]
func (h *QuotaHandler) Get(c *gin.Context) {
	response, err := h.service.GetQuota(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// Credit handles POST /api/v1/quota/:user_id/credits
//
// @Summary Add purchased transcription time
// @Tags quota
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param user_id path string true "User ID"
// @Param credit body dto.CreditRequest true "Seconds to add"
// @Success 200 {object} dto.QuotaResponse
// @Failure 401 {object} errors.APIError "Missing or wrong admin token"
// @Failure 422 {object} errors.APIError "Validation error"
// @Router /quota/{user_id}/credits [post]
func (h *QuotaHandler) Credit(c *gin.Context) {
	var req dto.CreditRequest
	if err := middleware.ValidateRequest(c, &req); err != nil {
		middleware.HandleError(c, err)
		return
	}

	response, err := h.service.Credit(c.Request.Context(), c.Param("user_id"), &req)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}
