package v1

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/flowstate-app/gateway/internal/analytics"
	"github.com/flowstate-app/gateway/internal/keystore"
	"github.com/flowstate-app/gateway/internal/logger"
	"github.com/flowstate-app/gateway/internal/provider"
	"github.com/flowstate-app/gateway/internal/registry"
	"github.com/flowstate-app/gateway/internal/router"
	"github.com/flowstate-app/gateway/internal/server/middleware"
	"github.com/flowstate-app/gateway/internal/server/validator"
	"github.com/flowstate-app/gateway/internal/store/model"
	"github.com/flowstate-app/gateway/pkg/api"
)

type ChatHandler struct {
	router   *router.Router
	registry *registry.Registry
	keys     *keystore.Store
	ingestor analytics.Ingestor // nil when analytics is disabled
}

func NewChatHandler(r *router.Router, reg *registry.Registry, keys *keystore.Store, ing analytics.Ingestor) *ChatHandler {
	return &ChatHandler{router: r, registry: reg, keys: keys, ingestor: ing}
}

// sessionProviders builds per-request provider instances from the session's
// stored keys. Decrypted keys live only for the duration of the request.
func (h *ChatHandler) sessionProviders(sessionID string) map[string]provider.Provider {
	providers := make(map[string]provider.Provider)
	for _, providerID := range keystore.PaidProviders {
		key := h.keys.GetKey(sessionID, providerID)
		if key == "" {
			continue
		}
		p, err := provider.NewSession(providerID, key)
		if err != nil {
			logger.Error("failed to build session provider", zap.String("provider", providerID), zap.Error(err))
			continue
		}
		providers[providerID] = p
	}
	return providers
}

// Chat handles POST /api/chat, the non-streaming endpoint.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req api.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "model and messages are required", "fields": validator.ParseError(err)})
		return
	}

	sessionID := middleware.SessionID(c)
	logger.Info("chat request", zap.String("model", req.Model), zap.Int("messages", len(req.Messages)))

	start := time.Now()
	resp, err := h.router.Chat(c.Request.Context(), req.Model, req.Messages, router.Options{
		Fallback:         req.AllowFallback(),
		SessionProviders: h.sessionProviders(sessionID),
	})
	if err != nil {
		h.record(sessionID, req.Model, "", false, false, "error", err.Error(), nil, time.Since(start))
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: err.Error()})
		return
	}

	h.record(sessionID, resp.Model, resp.Provider, false, resp.Model != req.Model, "ok", "", resp.Usage, time.Since(start))
	c.JSON(http.StatusOK, resp)
}

// Stream handles POST /api/chat/stream via Server-Sent Events.
func (h *ChatHandler) Stream(c *gin.Context) {
	var req api.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "model and messages are required", "fields": validator.ParseError(err)})
		return
	}

	sessionID := middleware.SessionID(c)
	logger.Info("stream request", zap.String("model", req.Model), zap.Int("messages", len(req.Messages)))

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	// Don't propagate client disconnect to the provider: a cold Hugging Face
	// model can take over a minute to answer, and aborting would waste the
	// spin-up. Writes are skipped once the client is gone.
	ctx := context.WithoutCancel(c.Request.Context())

	var (
		start    = time.Now()
		fellBack bool
		servedBy api.StreamChunk
		usage    *api.Usage
		errMsg   string
	)

	writeChunk := func(chunk api.StreamChunk) {
		switch chunk.Type {
		case api.ChunkInfo:
			fellBack = true
			servedBy = chunk
		case api.ChunkDone:
			usage = chunk.Usage
		case api.ChunkError:
			errMsg = chunk.Error
		}

		if c.Request.Context().Err() != nil {
			return
		}
		data, err := json.Marshal(chunk)
		if err != nil {
			return
		}
		fmt.Fprintf(c.Writer, "data: %s\n\n", data)
		c.Writer.Flush()
	}

	_ = h.router.StreamChat(ctx, req.Model, req.Messages, writeChunk, router.Options{
		Fallback:         req.AllowFallback(),
		SessionProviders: h.sessionProviders(sessionID),
	})

	status := "ok"
	if errMsg != "" {
		status = "error"
	}
	modelID, providerID := req.Model, h.providerFor(req.Model)
	if fellBack {
		modelID, providerID = servedBy.Model, servedBy.Provider
	}
	h.record(sessionID, modelID, providerID, true, fellBack, status, errMsg, usage, time.Since(start))
}

func (h *ChatHandler) providerFor(modelID string) string {
	if m, ok := h.registry.Get(modelID); ok {
		return m.ProviderID
	}
	return ""
}

func (h *ChatHandler) record(sessionID, modelID, providerID string, streamed, fellBack bool, status, errMsg string, usage *api.Usage, dur time.Duration) {
	if h.ingestor == nil {
		return
	}

	log := &model.RequestLog{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		ModelID:    modelID,
		ProviderID: providerID,
		Streamed:   streamed,
		FellBack:   fellBack,
		Status:     status,
		DurationMs: dur.Milliseconds(),
		CreatedAt:  time.Now().UTC(),
	}
	if m, ok := h.registry.Get(modelID); ok {
		log.UpstreamID = m.UpstreamID
	}
	if errMsg != "" {
		log.ErrorMessage.String = errMsg
		log.ErrorMessage.Valid = true
	}
	if usage != nil {
		log.PromptTokens = usage.PromptTokens
		log.CompletionTokens = usage.CompletionTokens
		log.TotalTokens = usage.TotalTokens
	}
	h.ingestor.Log(log)
}
