package activity

import (
	"time"

	"github.com/capturecabinet/cabinet/internal/services"
)

// Snapshot is the full session state pushed to the ephemeral display surface
// on every transition. The surface renders snapshots verbatim and holds no
// state of its own.
type Snapshot struct {
	SessionID            string                   `json:"session_id"`
	ScreenshotAssetRef   string                   `json:"screenshot_asset_ref"`
	ScreenshotCapturedAt time.Time                `json:"screenshot_captured_at"`
	Folders              []services.FolderSummary `json:"folders"`
	SelectedFolderID     string                   `json:"selected_folder_id,omitempty"`
	IsSaving             bool                     `json:"is_saving"`
	SavedSuccessfully    *bool                    `json:"saved_successfully,omitempty"`
}
