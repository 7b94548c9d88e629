package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/skychatorg/skyplayer/internal/logger"
	"github.com/skychatorg/skyplayer/internal/models"
	"github.com/skychatorg/skyplayer/internal/playback"
)

// viewerHeader carries the acting viewer's identity. Authentication itself is
// out of scope; upstream middleware is expected to have verified it.
const viewerHeader = "X-Viewer"

// Request/Response DTOs

// CreateChannelRequest represents a request to create a new channel
type CreateChannelRequest struct {
	Name string `json:"name" binding:"required"`
}

// RenameChannelRequest represents a request to rename a channel
type RenameChannelRequest struct {
	Name string `json:"name" binding:"required"`
}

// AddMediaRequest represents a request to queue media by locator
type AddMediaRequest struct {
	SourceKind   string `json:"source_kind" binding:"required"`
	Locator      string `json:"locator" binding:"required"`
	AllowPartial bool   `json:"allow_partial,omitempty"`
}

// MoveCursorRequest represents a replay/skip-seconds request
type MoveCursorRequest struct {
	DeltaMS int64 `json:"delta_ms" binding:"required"`
}

// ScheduleEventRequest represents a request to schedule a broadcast slot
type ScheduleEventRequest struct {
	SourceKind string `json:"source_kind" binding:"required"`
	Locator    string `json:"locator" binding:"required"`
	StartMS    int64  `json:"start_ms" binding:"required"`
	DurationMS int64  `json:"duration_ms,omitempty"`
}

// AddMediaResponse reports how many entries a queue add produced
type AddMediaResponse struct {
	Added int `json:"added"`
}

// ChannelListResponse wraps the sanitized channel list
type ChannelListResponse struct {
	Channels []models.ChannelInfo `json:"channels"`
}

// ScheduleResponse wraps one channel's retained and pending events
type ScheduleResponse struct {
	Events []models.ScheduledEvent `json:"events"`
}

// ChannelHandler handles channel and playback API requests
type ChannelHandler struct {
	registry *playback.Registry
	resolver playback.ItemResolver
	auth     playback.Authorizer
}

// NewChannelHandler creates a new channel handler instance
func NewChannelHandler(registry *playback.Registry, resolver playback.ItemResolver, auth playback.Authorizer) *ChannelHandler {
	return &ChannelHandler{
		registry: registry,
		resolver: resolver,
		auth:     auth,
	}
}

// SetupChannelRoutes registers channel and playback endpoints
func SetupChannelRoutes(group *gin.RouterGroup, handler *ChannelHandler) {
	group.GET("/channels", handler.ListChannels)
	group.POST("/channels", handler.CreateChannel)
	group.PUT("/channels/:id", handler.RenameChannel)
	group.DELETE("/channels/:id", handler.DeleteChannel)

	group.POST("/channels/:id/join", handler.JoinChannel)
	group.POST("/leave", handler.LeaveChannel)

	group.POST("/channels/:id/queue", handler.AddMedia)
	group.POST("/channels/:id/skip", handler.Skip)
	group.POST("/channels/:id/cursor", handler.MoveCursor)
	group.POST("/channels/:id/flush", handler.FlushQueue)
	group.POST("/channels/:id/shuffle", handler.FairShuffle)

	group.GET("/channels/:id/schedule", handler.ListSchedule)
	group.POST("/channels/:id/schedule", handler.ScheduleEvent)
	group.DELETE("/channels/:id/schedule/:start", handler.UnscheduleEvent)
}

func (h *ChannelHandler) viewer(c *gin.Context) (string, bool) {
	identity := c.GetHeader(viewerHeader)
	if identity == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_viewer",
			Message: "X-Viewer header is required",
		})
		return "", false
	}
	return identity, true
}

func (h *ChannelHandler) channelID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_channel_id",
			Message: "channel id must be a positive integer",
		})
		return 0, false
	}
	return id, true
}

func (h *ChannelHandler) fail(c *gin.Context, err error) {
	status, code := statusFor(err)
	c.JSON(status, ErrorResponse{Error: code, Message: err.Error()})
}

// ListChannels handles GET /api/channels
func (h *ChannelHandler) ListChannels(c *gin.Context) {
	c.JSON(http.StatusOK, ChannelListResponse{Channels: h.registry.List()})
}

// CreateChannel handles POST /api/channels
func (h *ChannelHandler) CreateChannel(c *gin.Context) {
	identity, ok := h.viewer(c)
	if !ok {
		return
	}
	if !h.auth.HasElevatedPrivilege(identity) {
		h.fail(c, playback.ErrNotAllowed)
		return
	}

	var req CreateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body: " + err.Error(),
		})
		return
	}

	ch, err := h.registry.CreateChannel(req.Name)
	if err != nil {
		if errors.Is(err, playback.ErrInvalidName) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_name", Message: err.Error()})
			return
		}
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, ch.Info())
}

// RenameChannel handles PUT /api/channels/:id
func (h *ChannelHandler) RenameChannel(c *gin.Context) {
	identity, ok := h.viewer(c)
	if !ok {
		return
	}
	if !h.auth.HasElevatedPrivilege(identity) {
		h.fail(c, playback.ErrNotAllowed)
		return
	}
	id, ok := h.channelID(c)
	if !ok {
		return
	}

	var req RenameChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body: " + err.Error(),
		})
		return
	}

	if err := h.registry.RenameChannel(id, req.Name); err != nil {
		if errors.Is(err, playback.ErrInvalidName) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_name", Message: err.Error()})
			return
		}
		h.fail(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// DeleteChannel handles DELETE /api/channels/:id
func (h *ChannelHandler) DeleteChannel(c *gin.Context) {
	identity, ok := h.viewer(c)
	if !ok {
		return
	}
	if !h.auth.HasElevatedPrivilege(identity) {
		h.fail(c, playback.ErrNotAllowed)
		return
	}
	id, ok := h.channelID(c)
	if !ok {
		return
	}

	if err := h.registry.DeleteChannel(id); err != nil {
		h.fail(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// JoinChannel handles POST /api/channels/:id/join
func (h *ChannelHandler) JoinChannel(c *gin.Context) {
	identity, ok := h.viewer(c)
	if !ok {
		return
	}
	id, ok := h.channelID(c)
	if !ok {
		return
	}

	if err := h.registry.JoinChannel(identity, id); err != nil {
		h.fail(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// LeaveChannel handles POST /api/leave
func (h *ChannelHandler) LeaveChannel(c *gin.Context) {
	identity, ok := h.viewer(c)
	if !ok {
		return
	}
	h.registry.LeaveChannel(identity)
	c.Status(http.StatusNoContent)
}

// AddMedia handles POST /api/channels/:id/queue. The locator is resolved to a
// playable item by the injected resolver before it is queued.
func (h *ChannelHandler) AddMedia(c *gin.Context) {
	identity, ok := h.viewer(c)
	if !ok {
		return
	}
	if !h.auth.CanAddMedia(identity) {
		h.fail(c, playback.ErrNotAllowed)
		return
	}
	id, ok := h.channelID(c)
	if !ok {
		return
	}

	var req AddMediaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body: " + err.Error(),
		})
		return
	}

	ch, err := h.registry.Get(id)
	if err != nil {
		h.fail(c, err)
		return
	}

	item, err := h.resolver.Resolve(c.Request.Context(), req.SourceKind, req.Locator)
	if err != nil {
		logger.Log.Warn().
			Err(err).
			Str("source_kind", req.SourceKind).
			Str("locator", req.Locator).
			Msg("Locator resolution failed")
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "bad_locator",
			Message: "could not resolve locator: " + err.Error(),
		})
		return
	}

	added, err := ch.Add([]models.PlayableItem{item}, identity, req.AllowPartial)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, AddMediaResponse{Added: added})
}

// Skip handles POST /api/channels/:id/skip
func (h *ChannelHandler) Skip(c *gin.Context) {
	ch, identity, ok := h.playControl(c)
	if !ok {
		return
	}
	ch.Skip()

	logger.Log.Debug().
		Str("viewer", identity).
		Int("channel_id", ch.ID()).
		Msg("Skip requested")

	c.Status(http.StatusNoContent)
}

// MoveCursor handles POST /api/channels/:id/cursor (replay/fast-forward)
func (h *ChannelHandler) MoveCursor(c *gin.Context) {
	ch, _, ok := h.playControl(c)
	if !ok {
		return
	}

	var req MoveCursorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body: " + err.Error(),
		})
		return
	}

	if err := ch.MoveCursor(req.DeltaMS); err != nil {
		h.fail(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// FlushQueue handles POST /api/channels/:id/flush
func (h *ChannelHandler) FlushQueue(c *gin.Context) {
	ch, _, ok := h.playControl(c)
	if !ok {
		return
	}
	ch.FlushQueue()
	c.Status(http.StatusNoContent)
}

// FairShuffle handles POST /api/channels/:id/shuffle
func (h *ChannelHandler) FairShuffle(c *gin.Context) {
	ch, _, ok := h.playControl(c)
	if !ok {
		return
	}
	ch.FairShuffle()
	c.Status(http.StatusNoContent)
}

// playControl resolves the channel and enforces the play-permission rule
// shared by skip, cursor, flush, and shuffle.
func (h *ChannelHandler) playControl(c *gin.Context) (*playback.Channel, string, bool) {
	identity, ok := h.viewer(c)
	if !ok {
		return nil, "", false
	}
	id, ok := h.channelID(c)
	if !ok {
		return nil, "", false
	}
	ch, err := h.registry.Get(id)
	if err != nil {
		h.fail(c, err)
		return nil, "", false
	}
	if !ch.HasPlayPermission(identity) {
		h.fail(c, playback.ErrNotAllowed)
		return nil, "", false
	}
	return ch, identity, true
}

// ListSchedule handles GET /api/channels/:id/schedule
func (h *ChannelHandler) ListSchedule(c *gin.Context) {
	id, ok := h.channelID(c)
	if !ok {
		return
	}
	ch, err := h.registry.Get(id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ScheduleResponse{Events: ch.ScheduleEvents()})
}

// ScheduleEvent handles POST /api/channels/:id/schedule
func (h *ChannelHandler) ScheduleEvent(c *gin.Context) {
	identity, ok := h.viewer(c)
	if !ok {
		return
	}
	if !h.auth.CanManageSchedule(identity) {
		h.fail(c, playback.ErrNotAllowed)
		return
	}
	id, ok := h.channelID(c)
	if !ok {
		return
	}

	var req ScheduleEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body: " + err.Error(),
		})
		return
	}

	ch, err := h.registry.Get(id)
	if err != nil {
		h.fail(c, err)
		return
	}

	item, err := h.resolver.Resolve(c.Request.Context(), req.SourceKind, req.Locator)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "bad_locator",
			Message: "could not resolve locator: " + err.Error(),
		})
		return
	}

	ev, err := ch.ScheduleEvent(item, req.StartMS, req.DurationMS)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.registry.NotifyChanged()

	c.JSON(http.StatusCreated, ev)
}

// UnscheduleEvent handles DELETE /api/channels/:id/schedule/:start
func (h *ChannelHandler) UnscheduleEvent(c *gin.Context) {
	identity, ok := h.viewer(c)
	if !ok {
		return
	}
	if !h.auth.CanManageSchedule(identity) {
		h.fail(c, playback.ErrNotAllowed)
		return
	}
	id, ok := h.channelID(c)
	if !ok {
		return
	}
	start, err := strconv.ParseInt(c.Param("start"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_start",
			Message: "start must be a unix millisecond timestamp",
		})
		return
	}

	ch, err := h.registry.Get(id)
	if err != nil {
		h.fail(c, err)
		return
	}

	if err := ch.UnscheduleEvent(start); err != nil {
		if errors.Is(err, playback.ErrEventNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "event_not_found", Message: err.Error()})
			return
		}
		h.fail(c, err)
		return
	}
	h.registry.NotifyChanged()

	c.Status(http.StatusNoContent)
}
