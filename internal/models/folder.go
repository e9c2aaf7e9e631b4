package models

import "gorm.io/datatypes"

// Folder is a user-defined bucket for filing screenshot assignments.
// Folder listings order by CreatedAt ascending, ties broken by ID.
type Folder struct {
	BaseModel

	Name     string         `gorm:"not null" json:"name"`
	Metadata datatypes.JSON `json:"metadata"` // display hints (icon, color)

	Screenshots []Screenshot `gorm:"foreignKey:FolderID;constraint:OnDelete:CASCADE" json:"screenshots,omitempty"`
}
