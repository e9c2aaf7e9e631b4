package models

// Screenshot links one photo-source asset to one folder. It is the assignment
// record, not the image itself: AssetRef identifies the asset in the external
// photo source and stays stable across runs.
//
// The composite unique index backstops the engine's dedup check so no code
// path can create a second record for the same (asset, folder) pair.
type Screenshot struct {
	BaseModel

	AssetRef string `gorm:"not null;uniqueIndex:idx_screenshots_asset_folder" json:"asset_ref"`
	FolderID string `gorm:"type:uuid;not null;uniqueIndex:idx_screenshots_asset_folder;index" json:"folder_id"`

	Folder *Folder `gorm:"foreignKey:FolderID" json:"-"`
}
