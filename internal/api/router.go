package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capturecabinet/cabinet/internal/activity"
	iauth "github.com/capturecabinet/cabinet/internal/auth"
	"github.com/capturecabinet/cabinet/internal/handlers"
	"github.com/capturecabinet/cabinet/internal/middleware"
	"github.com/capturecabinet/cabinet/internal/realtime"
	"github.com/capturecabinet/cabinet/internal/services"
)

// Deps bundles the constructed services the router wires together.
type Deps struct {
	Catalog *services.CatalogService
	Engine  *services.AssignmentService
	Bridge  *activity.Bridge
	Hub     *realtime.Hub
	Tokens  *iauth.TokenService
	Pairing *iauth.PairingService
}

// NewRouter builds the Gin engine, wires middleware and registers routes.
func NewRouter(deps Deps) (*gin.Engine, error) {
	if deps.Catalog == nil {
		return nil, fmt.Errorf("catalog service must be provided")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("assignment service must be provided")
	}
	if deps.Bridge == nil {
		return nil, fmt.Errorf("activity bridge must be provided")
	}
	if deps.Hub == nil {
		return nil, fmt.Errorf("realtime hub must be provided")
	}
	if deps.Tokens == nil {
		return nil, fmt.Errorf("token service must be provided")
	}
	if deps.Pairing == nil {
		return nil, fmt.Errorf("pairing service must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	// Public endpoints
	r.GET("/health", handlers.Health())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	pairingHandler := handlers.NewPairingHandler(deps.Pairing)
	pairing := r.Group("/api/pairing")
	{
		pairing.POST("/begin", pairingHandler.Begin)
		pairing.POST("/redeem", pairingHandler.Redeem)
	}

	// Protected routes
	requireAuth := middleware.Auth(deps.Tokens)

	api := r.Group("/api")
	api.Use(requireAuth)

	folderHandler := handlers.NewFolderHandler(deps.Catalog)
	folders := api.Group("/folders")
	{
		folders.GET("", folderHandler.List)
		folders.POST("", folderHandler.Create)
		folders.PATCH("/:id", folderHandler.Rename)
		folders.POST("/:id/duplicate", folderHandler.Duplicate)
		folders.DELETE("/:id", folderHandler.Delete)
	}

	screenshotHandler := handlers.NewScreenshotHandler(deps.Engine)
	screenshots := api.Group("/screenshots")
	{
		screenshots.POST("/assign", screenshotHandler.Assign)
		screenshots.POST("/quick-create", screenshotHandler.QuickCreate)
		screenshots.GET("/unassigned", screenshotHandler.UnassignedRecent)
		screenshots.DELETE("/:ref", screenshotHandler.DeleteAsset)
	}

	activityHandler := handlers.NewActivityHandler(deps.Bridge, deps.Hub)
	sessions := api.Group("/activity")
	{
		sessions.GET("/current", activityHandler.Current)
		sessions.POST("/select", activityHandler.Select)
		sessions.POST("/dismiss", activityHandler.Dismiss)
		sessions.GET("/stream", activityHandler.Stream)
	}

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
