package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/capturecabinet/cabinet/internal/models"
	apperrors "github.com/capturecabinet/cabinet/pkg/errors"
)

// Name fallbacks applied when the user submits an empty name.
const (
	newFolderPlaceholder = "New Folder"
	untitledFolderName   = "Untitled"
	duplicateNameSuffix  = " Copy"
)

var (
	// ErrFolderNotFound indicates the requested folder does not exist.
	ErrFolderNotFound = errors.New("catalog service: folder not found")
)

// CatalogService owns durable storage and query of folders and screenshot
// assignment records. Every mutation commits atomically; a failed save leaves
// no partial writes visible to subsequent reads.
type CatalogService struct {
	db *gorm.DB
}

// NewCatalogService constructs a catalog service once a database handle is supplied.
func NewCatalogService(db *gorm.DB) (*CatalogService, error) {
	if db == nil {
		return nil, errors.New("catalog service: db is required")
	}
	return &CatalogService{db: db}, nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// FolderDTO is the API-friendly folder projection including its assignment count.
type FolderDTO struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	ScreenshotCount int64          `json:"screenshot_count"`
	CreatedAt       string         `json:"created_at"`
}

// FolderSummary is the compact projection mirrored into activity snapshots.
type FolderSummary struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	ScreenshotCount int64  `json:"screenshot_count"`
}

// ScreenshotDTO represents an assignment record.
type ScreenshotDTO struct {
	ID        string `json:"id"`
	AssetRef  string `json:"asset_ref"`
	FolderID  string `json:"folder_id"`
	CreatedAt string `json:"created_at"`
}

// CreateFolderInput captures folder creation fields.
type CreateFolderInput struct {
	Name     string
	Metadata map[string]any
}

// CreateFolder registers a new folder, falling back to a placeholder name
// when the submitted name is empty.
func (s *CatalogService) CreateFolder(ctx context.Context, input CreateFolderInput) (*models.Folder, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = newFolderPlaceholder
	}

	folder := models.Folder{Name: name}
	if input.Metadata != nil {
		data, err := json.Marshal(input.Metadata)
		if err != nil {
			return nil, apperrors.NewBadRequest("invalid metadata payload")
		}
		folder.Metadata = datatypes.JSON(data)
	}

	if err := s.db.WithContext(ctx).Create(&folder).Error; err != nil {
		return nil, apperrors.NewPersistence(fmt.Errorf("catalog service: create folder: %w", err))
	}
	return &folder, nil
}

// RenameFolder updates a folder name with the same empty-name fallback rule.
func (s *CatalogService) RenameFolder(ctx context.Context, folderID, newName string) (*models.Folder, error) {
	ctx = ensureContext(ctx)

	folder, err := s.GetFolder(ctx, folderID)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(newName)
	if name == "" {
		name = untitledFolderName
	}

	if err := s.db.WithContext(ctx).Model(folder).Update("name", name).Error; err != nil {
		return nil, apperrors.NewPersistence(fmt.Errorf("catalog service: rename folder: %w", err))
	}
	folder.Name = name
	return folder, nil
}

// DuplicateFolder creates a copy of the folder, deep-copying all of its
// screenshot assignments with fresh ids and timestamps. The copy and its
// assignments commit in one transaction.
func (s *CatalogService) DuplicateFolder(ctx context.Context, folderID string) (*models.Folder, error) {
	ctx = ensureContext(ctx)

	var copied models.Folder
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var source models.Folder
		if err := tx.Preload("Screenshots").First(&source, "id = ?", strings.TrimSpace(folderID)).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrFolderNotFound
			}
			return fmt.Errorf("catalog service: load folder: %w", err)
		}

		copied = models.Folder{
			Name:     source.Name + duplicateNameSuffix,
			Metadata: source.Metadata,
		}
		if err := tx.Create(&copied).Error; err != nil {
			return fmt.Errorf("catalog service: create duplicate: %w", err)
		}

		for _, shot := range source.Screenshots {
			record := models.Screenshot{
				AssetRef: shot.AssetRef,
				FolderID: copied.ID,
			}
			if err := tx.Create(&record).Error; err != nil {
				return fmt.Errorf("catalog service: copy assignment: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrFolderNotFound) {
			return nil, ErrFolderNotFound
		}
		return nil, apperrors.NewPersistence(err)
	}
	return &copied, nil
}

// DeleteFolder removes the folder and cascades delete of its assignments.
func (s *CatalogService) DeleteFolder(ctx context.Context, folderID string) error {
	ctx = ensureContext(ctx)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var folder models.Folder
		if err := tx.First(&folder, "id = ?", strings.TrimSpace(folderID)).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrFolderNotFound
			}
			return fmt.Errorf("catalog service: load folder: %w", err)
		}

		if err := tx.Where("folder_id = ?", folder.ID).Delete(&models.Screenshot{}).Error; err != nil {
			return fmt.Errorf("catalog service: delete assignments: %w", err)
		}

		if err := tx.Delete(&folder).Error; err != nil {
			return fmt.Errorf("catalog service: delete folder: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrFolderNotFound) {
			return ErrFolderNotFound
		}
		return apperrors.NewPersistence(err)
	}
	return nil
}

// GetFolder retrieves a folder by identifier.
func (s *CatalogService) GetFolder(ctx context.Context, folderID string) (*models.Folder, error) {
	ctx = ensureContext(ctx)

	folderID = strings.TrimSpace(folderID)
	if folderID == "" {
		return nil, ErrFolderNotFound
	}

	var folder models.Folder
	if err := s.db.WithContext(ctx).First(&folder, "id = ?", folderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFolderNotFound
		}
		return nil, apperrors.NewPersistence(fmt.Errorf("catalog service: load folder: %w", err))
	}
	return &folder, nil
}

// ListFolders returns all folders ordered by creation time ascending, ties
// broken by id, with per-folder assignment counts.
func (s *CatalogService) ListFolders(ctx context.Context) ([]FolderDTO, error) {
	ctx = ensureContext(ctx)

	var folders []models.Folder
	if err := s.db.WithContext(ctx).
		Order("created_at ASC, id ASC").
		Find(&folders).Error; err != nil {
		return nil, apperrors.NewPersistence(fmt.Errorf("catalog service: list folders: %w", err))
	}

	counts, err := s.assignmentCounts(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]FolderDTO, 0, len(folders))
	for _, folder := range folders {
		out = append(out, FolderDTO{
			ID:              folder.ID,
			Name:            folder.Name,
			Metadata:        decodeJSONMap(folder.Metadata),
			ScreenshotCount: counts[folder.ID],
			CreatedAt:       folder.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		})
	}
	return out, nil
}

// FolderSummaries returns the compact folder projection used in activity snapshots.
func (s *CatalogService) FolderSummaries(ctx context.Context) ([]FolderSummary, error) {
	folders, err := s.ListFolders(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]FolderSummary, 0, len(folders))
	for _, folder := range folders {
		out = append(out, FolderSummary{
			ID:              folder.ID,
			Name:            folder.Name,
			ScreenshotCount: folder.ScreenshotCount,
		})
	}
	return out, nil
}

// Assign inserts a new assignment record. Callers are responsible for the
// dedup check; the unique index rejects racing duplicates.
func (s *CatalogService) Assign(ctx context.Context, assetRef, folderID string) (*models.Screenshot, error) {
	ctx = ensureContext(ctx)

	assetRef = strings.TrimSpace(assetRef)
	if assetRef == "" {
		return nil, errors.New("catalog service: asset ref is required")
	}

	record := models.Screenshot{
		AssetRef: assetRef,
		FolderID: strings.TrimSpace(folderID),
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, err
		}
		return nil, apperrors.NewPersistence(fmt.Errorf("catalog service: create assignment: %w", err))
	}
	return &record, nil
}

// FindAssignment performs the point lookup used for deduplication. A nil
// record with nil error means no assignment exists for the pair.
func (s *CatalogService) FindAssignment(ctx context.Context, assetRef, folderID string) (*models.Screenshot, error) {
	ctx = ensureContext(ctx)

	var record models.Screenshot
	err := s.db.WithContext(ctx).
		Where("asset_ref = ? AND folder_id = ?", strings.TrimSpace(assetRef), strings.TrimSpace(folderID)).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewPersistence(fmt.Errorf("catalog service: find assignment: %w", err))
	}
	return &record, nil
}

// AllAssignedAssetRefs returns the union of assigned asset refs across all folders.
func (s *CatalogService) AllAssignedAssetRefs(ctx context.Context) (map[string]struct{}, error) {
	ctx = ensureContext(ctx)

	var refs []string
	if err := s.db.WithContext(ctx).
		Model(&models.Screenshot{}).
		Distinct("asset_ref").
		Pluck("asset_ref", &refs).Error; err != nil {
		return nil, apperrors.NewPersistence(fmt.Errorf("catalog service: assigned refs: %w", err))
	}

	out := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		out[ref] = struct{}{}
	}
	return out, nil
}

// DeleteAssignmentsForAsset removes every assignment referencing the asset,
// across all folders. Used by maintenance when an asset vanished externally.
func (s *CatalogService) DeleteAssignmentsForAsset(ctx context.Context, assetRef string) (int64, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Where("asset_ref = ?", strings.TrimSpace(assetRef)).
		Delete(&models.Screenshot{})
	if result.Error != nil {
		return 0, apperrors.NewPersistence(fmt.Errorf("catalog service: delete assignments: %w", result.Error))
	}
	return result.RowsAffected, nil
}

func (s *CatalogService) assignmentCounts(ctx context.Context) (map[string]int64, error) {
	type row struct {
		FolderID string
		Total    int64
	}

	var rows []row
	if err := s.db.WithContext(ctx).
		Model(&models.Screenshot{}).
		Select("folder_id AS folder_id, COUNT(*) AS total").
		Group("folder_id").
		Find(&rows).Error; err != nil {
		return nil, apperrors.NewPersistence(fmt.Errorf("catalog service: count assignments: %w", err))
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.FolderID] = r.Total
	}
	return counts, nil
}

func decodeJSONMap(data datatypes.JSON) map[string]any {
	if len(data) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

func mapScreenshot(record models.Screenshot) ScreenshotDTO {
	return ScreenshotDTO{
		ID:        record.ID,
		AssetRef:  record.AssetRef,
		FolderID:  record.FolderID,
		CreatedAt: record.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
}
