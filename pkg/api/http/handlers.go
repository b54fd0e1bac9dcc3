package http

import (
	"errors"
	"fmt"
	"iter"
	"net/http"
	"time"

	"github.com/aescanero/chatrelay/pkg/chatkit"
	"github.com/aescanero/chatrelay/pkg/sse"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Result kinds recorded in metrics
const (
	resultJSON   = "json"
	resultStream = "stream"
	resultRaw    = "raw"
	resultError  = "error"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// handleChatKit relays one protocol message to the delegate
func (s *Server) handleChatKit(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		s.writeError(c, "chatkit", fmt.Errorf("%w: failed to read body: %v", chatkit.ErrInvalidRequest, err))
		return
	}

	s.logger.Info("chatkit request", zap.ByteString("payload", payload))

	result, err := s.delegate.Process(c.Request.Context(), payload, chatkit.RequestContext{Request: c.Request})
	if err != nil {
		s.writeError(c, "chatkit", err)
		return
	}

	switch r := result.(type) {
	case chatkit.StreamingResult:
		s.logger.Info("chatkit response", zap.String("kind", resultStream))
		s.metrics.RecordRelayRequest("chatkit", resultStream)
		s.relayStream(c, r.Chunks)

	case chatkit.JSONResult:
		s.logger.Info("chatkit response",
			zap.String("kind", resultJSON),
			zap.ByteString("body", r.Body))
		s.metrics.RecordRelayRequest("chatkit", resultJSON)
		c.Data(http.StatusOK, "application/json", r.Body)

	case chatkit.RawResult:
		s.logger.Info("chatkit response",
			zap.String("kind", resultRaw),
			zap.ByteString("body", r.Body))
		s.metrics.RecordRelayRequest("chatkit", resultRaw)
		c.Status(http.StatusOK)
		if _, err := c.Writer.Write(r.Body); err != nil {
			s.logger.Debug("failed to write response", zap.Error(err))
		}

	default:
		s.writeError(c, "chatkit", fmt.Errorf("unsupported result type %T", result))
	}
}

// relayStream forwards chunks as server-sent events, flushing each one
func (s *Server) relayStream(c *gin.Context, chunks iter.Seq2[[]byte, error]) {
	setStreamHeaders(c)
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	transcript := sse.NewTranscript(s.transcript, s.logger)
	start := time.Now()

	for chunk, err := range transcript.Tap(chunks) {
		if err != nil {
			// headers are gone, so the stream just ends
			s.logger.Error("stream failed", zap.Error(err))
			break
		}
		if _, err := c.Writer.Write(chunk); err != nil {
			s.logger.Debug("client disconnected from stream", zap.Error(err))
			break
		}
		c.Writer.Flush()
	}

	transcript.Close()
	s.metrics.RecordStreamRelayed(transcript.Chunks(), transcript.ParseErrors(), time.Since(start))
}

// handleState returns the snapshot of one thread
func (s *Server) handleState(c *gin.Context) {
	threadID, ok := s.requireThreadID(c, "state")
	if !ok {
		return
	}

	snapshot, err := s.delegate.Snapshot(c.Request.Context(), threadID, chatkit.RequestContext{})
	if err != nil {
		s.writeError(c, "state", err)
		return
	}

	s.metrics.RecordRelayRequest("state", resultJSON)
	c.Data(http.StatusOK, "application/json", chatkit.EncodeSnapshot(snapshot))
}

// handleBootstrap returns the state shown before any thread exists
func (s *Server) handleBootstrap(c *gin.Context) {
	snapshot, err := s.delegate.Snapshot(c.Request.Context(), "", chatkit.RequestContext{})
	if err != nil {
		s.writeError(c, "bootstrap", err)
		return
	}

	s.metrics.RecordRelayRequest("bootstrap", resultJSON)
	c.Data(http.StatusOK, "application/json", chatkit.EncodeSnapshot(snapshot))
}

// handleStateStream pushes the thread snapshot followed by every update
// until the client goes away
func (s *Server) handleStateStream(c *gin.Context) {
	threadID, ok := s.requireThreadID(c, "state_stream")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if _, err := s.delegate.EnsureThread(ctx, threadID, chatkit.RequestContext{}); err != nil {
		s.writeError(c, "state_stream", err)
		return
	}

	// registered before the snapshot so no update falls in between
	queue := s.delegate.RegisterListener(threadID)
	defer s.delegate.UnregisterListener(threadID, queue)

	snapshot, err := s.delegate.Snapshot(ctx, threadID, chatkit.RequestContext{})
	if err != nil {
		s.writeError(c, "state_stream", err)
		return
	}

	s.metrics.RecordRelayRequest("state_stream", resultStream)
	s.logger.Info("state stream opened", zap.String("thread_id", threadID))

	setStreamHeaders(c)
	c.Status(http.StatusOK)
	if !s.writeFrame(c, chatkit.EncodeSnapshot(snapshot)) {
		return
	}

	for {
		msg, err := queue.Get(ctx)
		if err != nil {
			s.logger.Info("state stream closed", zap.String("thread_id", threadID))
			return
		}
		if !s.writeFrame(c, []byte(msg)) {
			return
		}
	}
}

// writeFrame writes one data frame and flushes it. It reports false when
// the client is gone.
func (s *Server) writeFrame(c *gin.Context, payload []byte) bool {
	if _, err := c.Writer.Write(sse.Frame(payload)); err != nil {
		s.logger.Debug("client disconnected from state stream", zap.Error(err))
		return false
	}
	c.Writer.Flush()
	return true
}

// requireThreadID reads the thread_id query parameter, answering 400 when
// it is missing
func (s *Server) requireThreadID(c *gin.Context, endpoint string) (string, bool) {
	threadID := c.Query("thread_id")
	if threadID == "" {
		s.writeError(c, endpoint, fmt.Errorf("%w: thread_id is required", chatkit.ErrInvalidRequest))
		return "", false
	}
	return threadID, true
}

// writeError maps delegate errors to an error response
func (s *Server) writeError(c *gin.Context, endpoint string, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL_ERROR"
	switch {
	case errors.Is(err, chatkit.ErrInvalidRequest):
		status, code = http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, chatkit.ErrThreadNotFound):
		status, code = http.StatusNotFound, "THREAD_NOT_FOUND"
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("endpoint", endpoint), zap.Error(err))
	} else {
		s.logger.Warn("request rejected", zap.String("endpoint", endpoint), zap.Error(err))
	}

	s.metrics.RecordRelayRequest(endpoint, resultError)
	c.JSON(status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: err.Error(),
		},
	})
}

func setStreamHeaders(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
}
