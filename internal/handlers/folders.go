package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/capturecabinet/cabinet/internal/services"
	appErrors "github.com/capturecabinet/cabinet/pkg/errors"
	"github.com/capturecabinet/cabinet/pkg/response"
)

// FolderHandler exposes HTTP endpoints for managing screenshot folders.
type FolderHandler struct {
	catalog *services.CatalogService
}

// NewFolderHandler constructs a folder handler.
func NewFolderHandler(catalog *services.CatalogService) *FolderHandler {
	return &FolderHandler{catalog: catalog}
}

// List returns all folders with their assignment counts, oldest first.
func (h *FolderHandler) List(c *gin.Context) {
	folders, err := h.catalog.ListFolders(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, folders)
}

// Create registers a new folder. An empty name gets the placeholder.
func (h *FolderHandler) Create(c *gin.Context) {
	var payload folderPayload
	if !bindAndValidate(c, &payload) {
		return
	}

	folder, err := h.catalog.CreateFolder(requestContext(c), services.CreateFolderInput{
		Name:     payload.Name,
		Metadata: payload.Metadata,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, folder)
}

// Rename updates a folder name.
func (h *FolderHandler) Rename(c *gin.Context) {
	var payload folderPayload
	if !bindAndValidate(c, &payload) {
		return
	}

	folder, err := h.catalog.RenameFolder(requestContext(c), c.Param("id"), payload.Name)
	if err != nil {
		response.Error(c, folderError(err))
		return
	}
	response.Success(c, http.StatusOK, folder)
}

// Duplicate copies a folder together with its assignments.
func (h *FolderHandler) Duplicate(c *gin.Context) {
	folder, err := h.catalog.DuplicateFolder(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, folderError(err))
		return
	}
	response.Success(c, http.StatusCreated, folder)
}

// Delete removes a folder and every assignment inside it.
func (h *FolderHandler) Delete(c *gin.Context) {
	if err := h.catalog.DeleteFolder(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, folderError(err))
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

type folderPayload struct {
	Name     string         `json:"name" validate:"omitempty,max=120"`
	Metadata map[string]any `json:"metadata"`
}

func folderError(err error) error {
	if errors.Is(err, services.ErrFolderNotFound) {
		return appErrors.ErrNotFound
	}
	return err
}
