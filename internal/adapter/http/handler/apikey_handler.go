package handler

import (
	"time"

	"github.com/mhkaycey/wallet-service/internal/adapter/http/dto"
	"github.com/mhkaycey/wallet-service/internal/core/domain"
	"github.com/mhkaycey/wallet-service/internal/core/ports"
	"github.com/mhkaycey/wallet-service/pkg/apperror"
	"github.com/mhkaycey/wallet-service/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// APIKeyHandler manages API key lifecycle endpoints. These routes are
// JWT-only: a key cannot mint or revoke other keys.
type APIKeyHandler struct {
	apiKeySvc ports.APIKeyService
}

// NewAPIKeyHandler creates a new APIKeyHandler.
func NewAPIKeyHandler(apiKeySvc ports.APIKeyService) *APIKeyHandler {
	return &APIKeyHandler{apiKeySvc: apiKeySvc}
}

// Create handles POST /api/v1/keys.
func (h *APIKeyHandler) Create(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.CreateAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	permissions := make([]domain.Permission, 0, len(req.Permissions))
	for _, p := range req.Permissions {
		permissions = append(permissions, domain.Permission(p))
	}

	result, err := h.apiKeySvc.Create(c.Request.Context(), userID, req.Name, permissions, req.Expiry)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.APIKeyCreatedResponse{
		Key:       result.Key,
		ExpiresAt: result.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Rollover handles POST /api/v1/keys/:id/rollover.
func (h *APIKeyHandler) Rollover(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	keyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid key id"))
		return
	}

	var req dto.RolloverAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	result, err := h.apiKeySvc.Rollover(c.Request.Context(), userID, keyID, req.Expiry)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.APIKeyCreatedResponse{
		Key:       result.Key,
		ExpiresAt: result.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Revoke handles DELETE /api/v1/keys/:id.
func (h *APIKeyHandler) Revoke(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	keyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid key id"))
		return
	}

	if err := h.apiKeySvc.Revoke(c.Request.Context(), userID, keyID); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"revoked": true})
}

// List handles GET /api/v1/keys.
func (h *APIKeyHandler) List(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	keys, err := h.apiKeySvc.List(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.APIKeyResponse, 0, len(keys))
	for i := range keys {
		items = append(items, toAPIKeyResponse(&keys[i]))
	}

	response.OK(c, items)
}

func toAPIKeyResponse(k *domain.APIKey) dto.APIKeyResponse {
	perms := make([]string, 0, len(k.Permissions))
	for _, p := range k.Permissions {
		perms = append(perms, string(p))
	}
	return dto.APIKeyResponse{
		ID:          k.ID.String(),
		Name:        k.Name,
		Permissions: perms,
		ExpiresAt:   k.ExpiresAt.UTC().Format(time.RFC3339),
		Revoked:     k.Revoked,
		CreatedAt:   k.CreatedAt.UTC().Format(time.RFC3339),
	}
}
