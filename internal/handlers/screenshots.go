package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/capturecabinet/cabinet/internal/services"
	appErrors "github.com/capturecabinet/cabinet/pkg/errors"
	"github.com/capturecabinet/cabinet/pkg/response"
)

// DefaultRecentWindow bounds the unassigned view when no cutoff is supplied.
const DefaultRecentWindow = 24 * time.Hour

// ScreenshotHandler exposes the assignment engine over HTTP.
type ScreenshotHandler struct {
	engine *services.AssignmentService
}

// NewScreenshotHandler constructs a screenshot handler.
func NewScreenshotHandler(engine *services.AssignmentService) *ScreenshotHandler {
	return &ScreenshotHandler{engine: engine}
}

// Assign files one or more assets into a folder, reporting a per-asset outcome.
func (h *ScreenshotHandler) Assign(c *gin.Context) {
	var payload assignPayload
	if !bindAndValidate(c, &payload) {
		return
	}

	outcomes, err := h.engine.AssignBatch(requestContext(c), payload.AssetRefs, payload.FolderID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"outcomes": outcomes})
}

// QuickCreate makes a folder and files the asset into it in one call. The
// folder is kept even when the assignment step fails.
func (h *ScreenshotHandler) QuickCreate(c *gin.Context) {
	var payload quickCreatePayload
	if !bindAndValidate(c, &payload) {
		return
	}

	folder, outcome, err := h.engine.CreateFolderAndAssign(requestContext(c), payload.Name, payload.AssetRef)
	if err != nil && folder == nil {
		response.Error(c, err)
		return
	}

	status := http.StatusCreated
	if outcome.Status == services.AssignStatusFailed {
		status = http.StatusMultiStatus
	}
	response.Success(c, status, gin.H{"folder": folder, "outcome": outcome})
}

// UnassignedRecent lists screenshots captured inside the window that are not
// filed into any folder, newest first.
func (h *ScreenshotHandler) UnassignedRecent(c *gin.Context) {
	cutoff := time.Now().Add(-DefaultRecentWindow)
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, appErrors.NewBadRequest("since must be an RFC 3339 timestamp"))
			return
		}
		cutoff = parsed
	}

	assets, err := h.engine.UnassignedRecent(requestContext(c), cutoff)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"screenshots": assets})
}

// DeleteAsset removes a screenshot from the underlying photo source.
func (h *ScreenshotHandler) DeleteAsset(c *gin.Context) {
	if err := h.engine.DeleteAsset(requestContext(c), c.Param("ref")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

type assignPayload struct {
	AssetRefs []string `json:"asset_refs" validate:"required,min=1,dive,required"`
	FolderID  string   `json:"folder_id" validate:"required"`
}

type quickCreatePayload struct {
	Name     string `json:"name" validate:"omitempty,max=120"`
	AssetRef string `json:"asset_ref" validate:"required"`
}
