package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/capturecabinet/cabinet/internal/database/testutil"
	"github.com/capturecabinet/cabinet/internal/photos"
	"github.com/capturecabinet/cabinet/internal/services"
)

type handlerFixture struct {
	router  *gin.Engine
	catalog *services.CatalogService
	engine  *services.AssignmentService
	source  *photos.MemorySource
}

func newFixture(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t)
	catalog, err := services.NewCatalogService(db)
	require.NoError(t, err)

	source := photos.NewMemorySource()
	engine, err := services.NewAssignmentService(catalog, source, nil)
	require.NoError(t, err)

	folders := NewFolderHandler(catalog)
	screenshots := NewScreenshotHandler(engine)

	router := gin.New()
	router.GET("/folders", folders.List)
	router.POST("/folders", folders.Create)
	router.PATCH("/folders/:id", folders.Rename)
	router.POST("/folders/:id/duplicate", folders.Duplicate)
	router.DELETE("/folders/:id", folders.Delete)
	router.POST("/screenshots/assign", screenshots.Assign)
	router.POST("/screenshots/quick-create", screenshots.QuickCreate)
	router.GET("/screenshots/unassigned", screenshots.UnassignedRecent)
	router.DELETE("/screenshots/:ref", screenshots.DeleteAsset)

	return &handlerFixture{router: router, catalog: catalog, engine: engine, source: source}
}

func (f *handlerFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestFolderCreateAndList(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/folders", gin.H{"name": "Receipts"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodPost, "/folders", gin.H{"name": ""})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, rec.Body.String(), "New Folder")

	rec = f.do(t, http.MethodGet, "/folders", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listBody struct {
		Data []services.FolderDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listBody))
	require.Len(t, listBody.Data, 2)
	require.Equal(t, "Receipts", listBody.Data[0].Name)
}

func TestFolderRenameNotFound(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPatch, "/folders/missing", gin.H{"name": "Anything"})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFolderDuplicateAndDelete(t *testing.T) {
	f := newFixture(t)

	folder, err := f.catalog.CreateFolder(context.Background(), services.CreateFolderInput{Name: "Trip"})
	require.NoError(t, err)

	rec := f.do(t, http.MethodPost, "/folders/"+folder.ID+"/duplicate", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, rec.Body.String(), "Trip Copy")

	rec = f.do(t, http.MethodDelete, "/folders/"+folder.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodDelete, "/folders/"+folder.ID, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScreenshotAssignBatch(t *testing.T) {
	f := newFixture(t)

	folder, err := f.catalog.CreateFolder(context.Background(), services.CreateFolderInput{Name: "Mixed"})
	require.NoError(t, err)
	f.source.Add("asset-a", time.Now())

	rec := f.do(t, http.MethodPost, "/screenshots/assign", gin.H{
		"asset_refs": []string{"asset-a", "asset-missing"},
		"folder_id":  folder.ID,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			Outcomes []services.AssignOutcome `json:"outcomes"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data.Outcomes, 2)
	require.Equal(t, services.AssignStatusAssigned, body.Data.Outcomes[0].Status)
	require.Equal(t, services.AssignStatusFailed, body.Data.Outcomes[1].Status)
}

func TestScreenshotAssignValidation(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/screenshots/assign", gin.H{"asset_refs": []string{}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScreenshotQuickCreate(t *testing.T) {
	f := newFixture(t)
	f.source.Add("asset-1", time.Now())

	rec := f.do(t, http.MethodPost, "/screenshots/quick-create", gin.H{
		"name":      "Quick",
		"asset_ref": "asset-1",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// A missing asset still creates and keeps the folder.
	rec = f.do(t, http.MethodPost, "/screenshots/quick-create", gin.H{
		"name":      "Orphan",
		"asset_ref": "vanished",
	})
	require.Equal(t, http.StatusMultiStatus, rec.Code)

	folders, err := f.catalog.ListFolders(context.Background())
	require.NoError(t, err)
	require.Len(t, folders, 2)
}

func TestScreenshotUnassignedRecent(t *testing.T) {
	f := newFixture(t)

	folder, err := f.catalog.CreateFolder(context.Background(), services.CreateFolderInput{Name: "Trip"})
	require.NoError(t, err)

	now := time.Now()
	f.source.Add("filed", now)
	f.source.Add("loose", now)
	_, err = f.engine.AssignToFolder(context.Background(), "filed", folder.ID)
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/screenshots/unassigned", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "loose")
	require.NotContains(t, rec.Body.String(), "filed")
}

func TestScreenshotUnassignedRecentBadCutoff(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/screenshots/unassigned?since=yesterday", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScreenshotDeleteAsset(t *testing.T) {
	f := newFixture(t)
	f.source.Add("asset-1", time.Now())

	rec := f.do(t, http.MethodDelete, "/screenshots/asset-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodDelete, "/screenshots/asset-1", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
