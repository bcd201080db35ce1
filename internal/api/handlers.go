package api

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"alert-service/internal/config"
	"alert-service/internal/logging"
	"alert-service/internal/metrics"
	"alert-service/internal/models"
	"alert-service/internal/services"
	"alert-service/internal/storage"
)

type Handler struct {
	svc      *services.Service
	broker   *storage.Broker
	metrics  *metrics.Collector
	logger   *logging.Logger
	config   config.Config
	upgrader websocket.Upgrader
}

func NewHandler(svc *services.Service, broker *storage.Broker, m *metrics.Collector, logger *logging.Logger, cfg config.Config) *Handler {
	return &Handler{
		svc:     svc,
		broker:  broker,
		metrics: m,
		logger:  logger,
		config:  cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// fail maps service errors to status codes.
func (h *Handler) fail(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": msg + ": not found"})
	default:
		h.logger.Errorf("%s: %v", msg, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
	}
}

func (h *Handler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.svc.Ready(ctx); err != nil {
		h.logger.Warnf("Readiness check failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (h *Handler) Presign(c *gin.Context) {
	var req models.PresignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnf("Invalid presign request: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "filename is required"})
		return
	}

	expiry := time.Duration(h.config.Upload.ExpirySeconds) * time.Second
	grant, err := h.broker.RequestUploadSlot(c.Request.Context(), req.Filename, req.ContentType, expiry)
	if err != nil {
		h.fail(c, err, "Failed to create upload slot")
		return
	}
	h.metrics.UploadGranted(grant.Provider)
	c.JSON(http.StatusOK, grant)
}

func (h *Handler) UploadLocal(c *gin.Context) {
	key := c.Param("key")
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.logger.Errorf("Read upload body for %s failed: %v", key, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read upload body"})
		return
	}

	path, err := h.broker.AcceptLocalUpload(key, data)
	if err != nil {
		h.fail(c, err, "Failed to store upload")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"path":   path,
		"key":    key,
		"url":    h.broker.LocalURL(key),
	})
}

func (h *Handler) DownloadLocal(c *gin.Context) {
	key := c.Param("key")
	path, err := h.broker.ResolveLocalUpload(key)
	if err != nil {
		h.fail(c, err, "Upload")
		return
	}
	f, err := os.Open(path)
	if err != nil {
		h.fail(c, err, "Upload")
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		h.fail(c, err, "Upload")
		return
	}

	// ServeFile would redirect keys ending in index.html.
	c.Header("Content-Type", "application/octet-stream")
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": key}))
	http.ServeContent(c.Writer, c.Request, key, info.ModTime(), f)
}

func (h *Handler) CreateEvent(c *gin.Context) {
	var in models.EventCreate
	if err := c.ShouldBindJSON(&in); err != nil {
		h.logger.Warnf("Invalid event body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "type and confidence are required"})
		return
	}

	ev, results, err := h.svc.CreateEvent(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err, "Failed to create event")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "eventId": ev.ID, "notifications": results})
}

func (h *Handler) ListEvents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	events, err := h.svc.ListEvents(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err, "Failed to list events")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "events": events})
}

func (h *Handler) AcknowledgeEvent(c *gin.Context) {
	id, ok := h.eventID(c)
	if !ok {
		return
	}

	var body models.EventAck
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	ev, err := h.svc.Acknowledge(c.Request.Context(), id, body.Status)
	if err != nil {
		h.fail(c, err, "Event")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "event": gin.H{"id": ev.ID, "status": ev.Status}})
}

func (h *Handler) NotifyEvent(c *gin.Context) {
	id, ok := h.eventID(c)
	if !ok {
		return
	}
	results, err := h.svc.Notify(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "Event")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "results": results})
}

// Stream upgrades to a WebSocket and keeps the connection on the live feed
// until the client goes away.
func (h *Handler) Stream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warnf("WebSocket upgrade failed: %v", err)
		return
	}
	feed := h.svc.LiveFeed()
	if !feed.AddConnection(conn) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too many connections"))
		conn.Close()
		return
	}
	defer func() {
		feed.RemoveConnection(conn)
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) eventID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event id"})
		return 0, false
	}
	return id, true
}
