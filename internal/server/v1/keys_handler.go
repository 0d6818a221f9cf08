package v1

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/flowstate-app/gateway/internal/httpclient"
	"github.com/flowstate-app/gateway/internal/keystore"
	"github.com/flowstate-app/gateway/internal/logger"
	"github.com/flowstate-app/gateway/internal/provider"
	"github.com/flowstate-app/gateway/internal/registry"
	"github.com/flowstate-app/gateway/internal/server/middleware"
	"github.com/flowstate-app/gateway/internal/store/cache"
	"github.com/flowstate-app/gateway/pkg/api"
)

// verdictTTL bounds how long a validation result is trusted. Long enough to
// absorb a user retrying a form, short enough that a revoked key is noticed.
const verdictTTL = 10 * time.Minute

type keyVerdict struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

type KeysHandler struct {
	keys     *keystore.Store
	registry *registry.Registry
	cache    cache.Cache
	client   httpclient.HTTPClient
}

func NewKeysHandler(keys *keystore.Store, reg *registry.Registry, c cache.Cache, client httpclient.HTTPClient) *KeysHandler {
	return &KeysHandler{keys: keys, registry: reg, cache: c, client: client}
}

// verdictKey derives a cache key from the key material without storing it.
func verdictKey(providerID, apiKey string) string {
	sum := sha256.Sum256([]byte(providerID + ":" + apiKey))
	return "keycheck:" + hex.EncodeToString(sum[:])
}

func short(sessionID string) string {
	if len(sessionID) > 8 {
		return sessionID[:8]
	}
	return sessionID
}

// Submit handles POST /api/keys: validate a user's key against the vendor,
// then encrypt and store it for the session.
func (h *KeysHandler) Submit(c *gin.Context) {
	var req api.KeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "model and apiKey are required"})
		return
	}

	mapping, ok := h.registry.Get(req.Model)
	if !ok || !keystore.IsPaidProvider(mapping.ProviderID) {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: req.Model + " does not require an API key"})
		return
	}
	providerID := mapping.ProviderID

	sessionID := middleware.SessionID(c)
	// never log the key itself
	logger.Info("validating key", zap.String("provider", providerID), zap.String("session", short(sessionID)))

	verdict, cached := h.cachedVerdict(c, providerID, req.APIKey)
	if !cached {
		valid, errMsg := provider.ValidateKey(c.Request.Context(), h.client, providerID, req.APIKey)
		verdict = keyVerdict{Valid: valid, Error: errMsg}
		if err := h.cache.Set(c.Request.Context(), verdictKey(providerID, req.APIKey), verdict, verdictTTL); err != nil {
			logger.Warn("failed to cache key verdict", zap.Error(err))
		}
	}

	if !verdict.Valid {
		c.JSON(http.StatusUnauthorized, api.KeyResponse{Valid: false, Error: verdict.Error})
		return
	}

	if err := h.keys.SetKey(sessionID, providerID, req.APIKey); err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to store key"})
		return
	}
	logger.Info("key stored", zap.String("provider", providerID), zap.String("session", short(sessionID)))

	c.JSON(http.StatusOK, api.KeyResponse{Valid: true, Provider: providerID, Model: req.Model})
}

func (h *KeysHandler) cachedVerdict(c *gin.Context, providerID, apiKey string) (keyVerdict, bool) {
	var verdict keyVerdict
	err := h.cache.Get(c.Request.Context(), verdictKey(providerID, apiKey), &verdict)
	return verdict, err == nil
}

// Status handles GET /api/keys/status. Reports which paid providers have
// keys, never the keys themselves.
func (h *KeysHandler) Status(c *gin.Context) {
	sessionID := middleware.SessionID(c)
	status := h.keys.Status(sessionID)

	var models []api.KeyModelStatus
	for _, m := range h.registry.List() {
		if !keystore.IsPaidProvider(m.ProviderID) {
			continue
		}
		models = append(models, api.KeyModelStatus{
			Model:    m.ModelID,
			Provider: m.ProviderID,
			HasKey:   status[m.ProviderID],
		})
	}

	c.JSON(http.StatusOK, api.KeyStatusResponse{
		Configured:    status,
		PaidProviders: keystore.PaidProviders,
		Models:        models,
	})
}

// Remove handles DELETE /api/keys/:provider.
func (h *KeysHandler) Remove(c *gin.Context) {
	providerID := c.Param("provider")
	if !keystore.IsPaidProvider(providerID) {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Not a paid provider"})
		return
	}

	sessionID := middleware.SessionID(c)
	h.keys.RemoveKey(sessionID, providerID)
	logger.Info("key removed", zap.String("provider", providerID), zap.String("session", short(sessionID)))

	c.JSON(http.StatusOK, gin.H{"removed": true, "provider": providerID})
}
