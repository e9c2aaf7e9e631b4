package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/capturecabinet/cabinet/internal/activity"
	"github.com/capturecabinet/cabinet/internal/realtime"
	appErrors "github.com/capturecabinet/cabinet/pkg/errors"
	"github.com/capturecabinet/cabinet/pkg/response"
)

// ActivityHandler drives the capture-to-filing session from widget clients.
type ActivityHandler struct {
	bridge *activity.Bridge
	hub    *realtime.Hub
}

// NewActivityHandler constructs an activity handler.
func NewActivityHandler(bridge *activity.Bridge, hub *realtime.Hub) *ActivityHandler {
	return &ActivityHandler{bridge: bridge, hub: hub}
}

// Current returns the live session snapshot, if any.
func (h *ActivityHandler) Current(c *gin.Context) {
	snapshot, ok := h.bridge.ActiveSession()
	if !ok {
		response.Success(c, http.StatusOK, gin.H{"active": false})
		return
	}
	response.Success(c, http.StatusOK, gin.H{"active": true, "session": snapshot})
}

// Select files the session screenshot into the chosen folder. Selections for
// a superseded session are acknowledged but have no effect.
func (h *ActivityHandler) Select(c *gin.Context) {
	var payload selectPayload
	if !bindAndValidate(c, &payload) {
		return
	}

	if err := h.bridge.SelectFolder(requestContext(c), payload.SessionID, payload.FolderID); err != nil {
		if errors.Is(err, activity.ErrSessionBusy) {
			response.Error(c, appErrors.New("SESSION_BUSY", "A save is already in progress", http.StatusConflict))
			return
		}
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"accepted": true})
}

// Dismiss ends the session without filing the screenshot.
func (h *ActivityHandler) Dismiss(c *gin.Context) {
	var payload dismissPayload
	if !bindAndValidate(c, &payload) {
		return
	}

	h.bridge.Dismiss(requestContext(c), payload.SessionID)
	response.Success(c, http.StatusOK, gin.H{"dismissed": true})
}

// Stream upgrades to a WebSocket subscribed to the activity and library streams.
func (h *ActivityHandler) Stream(c *gin.Context) {
	h.hub.Serve([]string{realtime.StreamActivity, realtime.StreamLibrary}, c.Writer, c.Request)
}

type selectPayload struct {
	SessionID string `json:"session_id" validate:"required"`
	FolderID  string `json:"folder_id" validate:"required"`
}

type dismissPayload struct {
	SessionID string `json:"session_id" validate:"required"`
}
