package websocket

import (
	"context"
	"net/http"
	"slices"

	"github.com/aescanero/chatrelay/pkg/chatkit"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handler handles WebSocket connections
type Handler struct {
	delegate chatkit.Server
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHandler creates a new WebSocket handler accepting the given origins.
// Requests without an Origin header are always accepted.
func NewHandler(delegate chatkit.Server, allowedOrigins []string, logger *zap.Logger) *Handler {
	return &Handler{
		delegate: delegate,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(allowedOrigins, origin)
			},
		},
		logger: logger,
	}
}

// HandleStateStream streams the state of one thread
func (h *Handler) HandleStateStream(c *gin.Context) {
	threadID := c.Query("thread_id")
	if threadID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{
			"code":    "INVALID_REQUEST",
			"message": "thread_id is required",
		}})
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	if _, err := h.delegate.EnsureThread(ctx, threadID, chatkit.RequestContext{}); err != nil {
		h.logger.Error("failed to ensure thread", zap.String("thread_id", threadID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{
			"code":    "INTERNAL_ERROR",
			"message": err.Error(),
		}})
		return
	}

	// Upgrade connection
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	queue := h.delegate.RegisterListener(threadID)
	defer h.delegate.UnregisterListener(threadID, queue)

	h.logger.Info("WebSocket connection established",
		zap.String("thread_id", threadID),
		zap.String("client", c.ClientIP()))

	// Reading is required to notice the peer closing
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	snapshot, err := h.delegate.Snapshot(ctx, threadID, chatkit.RequestContext{})
	if err != nil {
		h.logger.Error("failed to load snapshot", zap.String("thread_id", threadID), zap.Error(err))
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, chatkit.EncodeSnapshot(snapshot)); err != nil {
		h.logger.Debug("failed to write snapshot", zap.Error(err))
		return
	}

	for {
		msg, err := queue.Get(ctx)
		if err != nil {
			h.logger.Info("WebSocket connection closed", zap.String("thread_id", threadID))
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			h.logger.Debug("failed to write message", zap.Error(err))
			return
		}
	}
}
