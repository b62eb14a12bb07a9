package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/VeritasFi/aegis/internal/pkg/logger"
	"github.com/VeritasFi/aegis/internal/service"
)

type EventsHandler struct {
	events *service.EventService
	hub    *service.Hub
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the feed is consumed by internal dashboards, not browsers
	CheckOrigin: func(r *http.Request) bool { return true },
}

func NewEventsHandler(events *service.EventService, hub *service.Hub) *EventsHandler {
	return &EventsHandler{events: events, hub: hub}
}

func (h *EventsHandler) List(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	var from, to *time.Time
	if raw := c.Query("from"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			from = &t
		}
	}
	if raw := c.Query("to"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			to = &t
		}
	}

	events, err := h.events.List(c.Request.Context(), c.Query("ledger"), c.Query("entity"), limit, from, to)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

// Stream upgrades to a websocket and subscribes the peer to live events.
func (h *EventsHandler) Stream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", "error", err.Error())
		return
	}
	h.hub.Subscribe(conn)
}
