package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/capturecabinet/cabinet/internal/models"
	"github.com/capturecabinet/cabinet/internal/photos"
	"github.com/capturecabinet/cabinet/internal/realtime"
	apperrors "github.com/capturecabinet/cabinet/pkg/errors"
	"github.com/capturecabinet/cabinet/pkg/logger"
	"github.com/capturecabinet/cabinet/pkg/metrics"
)

// AssignStatus classifies the outcome of a single assignment attempt.
type AssignStatus string

const (
	AssignStatusAssigned        AssignStatus = "assigned"
	AssignStatusAlreadyAssigned AssignStatus = "already_assigned"
	AssignStatusFailed          AssignStatus = "failed"
)

// AssignOutcome reports the result of one assignment attempt, keyed by asset ref.
type AssignOutcome struct {
	AssetRef   string         `json:"asset_ref"`
	Status     AssignStatus   `json:"status"`
	Screenshot *ScreenshotDTO `json:"screenshot,omitempty"`
	Reason     string         `json:"reason,omitempty"`
}

// AssignmentService is the single authoritative path for filing a screenshot
// asset into a folder. It guarantees idempotence per (asset ref, folder) and
// owns the in-memory unassigned-recent view exposed to UI surfaces.
type AssignmentService struct {
	catalog *CatalogService
	source  photos.Source
	hub     *realtime.Hub
	log     *zap.Logger

	mu         sync.Mutex
	unassigned map[string]time.Time
}

// NewAssignmentService constructs the assignment engine. The hub is optional;
// without it change signals are skipped.
func NewAssignmentService(catalog *CatalogService, source photos.Source, hub *realtime.Hub) (*AssignmentService, error) {
	if catalog == nil {
		return nil, errors.New("assignment service: catalog is required")
	}
	if source == nil {
		return nil, errors.New("assignment service: photo source is required")
	}
	return &AssignmentService{
		catalog:    catalog,
		source:     source,
		hub:        hub,
		log:        logger.WithModule("assignment"),
		unassigned: make(map[string]time.Time),
	}, nil
}

// AssignToFolder files one asset into a folder. Running the same assignment
// twice produces one record; the second call reports already_assigned.
func (s *AssignmentService) AssignToFolder(ctx context.Context, assetRef, folderID string) (AssignOutcome, error) {
	ctx = ensureContext(ctx)

	assetRef = strings.TrimSpace(assetRef)
	outcome := AssignOutcome{AssetRef: assetRef, Status: AssignStatusFailed}
	if assetRef == "" {
		outcome.Reason = "asset ref is required"
		return outcome, apperrors.NewBadRequest("asset ref is required")
	}

	folder, err := s.catalog.GetFolder(ctx, folderID)
	if err != nil {
		if errors.Is(err, ErrFolderNotFound) {
			outcome.Reason = "folder not found"
			return outcome, apperrors.ErrNotFound
		}
		outcome.Reason = "catalog unavailable"
		return outcome, err
	}

	existing, err := s.catalog.FindAssignment(ctx, assetRef, folder.ID)
	if err != nil {
		outcome.Reason = "catalog unavailable"
		return outcome, err
	}
	if existing != nil {
		dto := mapScreenshot(*existing)
		outcome.Status = AssignStatusAlreadyAssigned
		outcome.Screenshot = &dto
		metrics.Assignments.WithLabelValues(string(AssignStatusAlreadyAssigned)).Inc()
		return outcome, nil
	}

	if _, err := s.source.Resolve(ctx, assetRef); err != nil {
		if errors.Is(err, photos.ErrNotFound) {
			outcome.Reason = apperrors.ErrAssetNotFound.Code
			metrics.Assignments.WithLabelValues(string(AssignStatusFailed)).Inc()
			return outcome, apperrors.ErrAssetNotFound
		}
		outcome.Reason = "photo source unavailable"
		return outcome, apperrors.Wrap(err, "photo source unavailable")
	}

	record, err := s.catalog.Assign(ctx, assetRef, folder.ID)
	if err != nil {
		if isUniqueConstraintError(err) {
			// Racing writer won; reload and report already assigned.
			if existing, lookupErr := s.catalog.FindAssignment(ctx, assetRef, folder.ID); lookupErr == nil && existing != nil {
				dto := mapScreenshot(*existing)
				outcome.Status = AssignStatusAlreadyAssigned
				outcome.Screenshot = &dto
				metrics.Assignments.WithLabelValues(string(AssignStatusAlreadyAssigned)).Inc()
				return outcome, nil
			}
		}
		// Unassigned set stays untouched on a failed save.
		outcome.Reason = apperrors.ErrPersistence.Code
		metrics.Assignments.WithLabelValues(string(AssignStatusFailed)).Inc()
		return outcome, err
	}

	s.dropUnassigned(assetRef)

	dto := mapScreenshot(*record)
	outcome.Status = AssignStatusAssigned
	outcome.Screenshot = &dto
	metrics.Assignments.WithLabelValues(string(AssignStatusAssigned)).Inc()

	s.broadcast("assignment.created", map[string]any{
		"asset_ref": assetRef,
		"folder_id": folder.ID,
	})
	return outcome, nil
}

// AssignBatch files each asset independently; a failure for one element does
// not abort the rest. Outcomes are keyed by asset ref, not position.
func (s *AssignmentService) AssignBatch(ctx context.Context, assetRefs []string, folderID string) ([]AssignOutcome, error) {
	ctx = ensureContext(ctx)

	if _, err := s.catalog.GetFolder(ctx, folderID); err != nil {
		if errors.Is(err, ErrFolderNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}

	refs := normaliseRefs(assetRefs)
	outcomes := make([]AssignOutcome, 0, len(refs))
	for _, ref := range refs {
		outcome, err := s.AssignToFolder(ctx, ref, folderID)
		if err != nil && outcome.Reason == "" {
			outcome.Reason = err.Error()
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

// UnassignedRecent recomputes the unassigned view: assets captured since the
// cutoff minus every assigned ref, ordered by capture time descending.
func (s *AssignmentService) UnassignedRecent(ctx context.Context, cutoff time.Time) ([]photos.Asset, error) {
	ctx = ensureContext(ctx)

	access, err := s.source.RequestAccess(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, "photo source unavailable")
	}
	if !access.Readable() {
		return nil, apperrors.ErrAccessDenied
	}

	fetched, err := s.source.FetchSince(ctx, cutoff)
	if err != nil {
		return nil, apperrors.Wrap(err, "fetch recent screenshots")
	}

	assigned, err := s.catalog.AllAssignedAssetRefs(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]photos.Asset, 0, len(fetched))
	for _, asset := range fetched {
		if _, ok := assigned[asset.Ref]; ok {
			continue
		}
		out = append(out, asset)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CapturedAt.After(out[j].CapturedAt)
	})

	s.mu.Lock()
	s.unassigned = make(map[string]time.Time, len(out))
	for _, asset := range out {
		s.unassigned[asset.Ref] = asset.CapturedAt
	}
	size := len(s.unassigned)
	s.mu.Unlock()

	metrics.UnassignedScreenshots.Set(float64(size))
	s.broadcast("unassigned.refreshed", map[string]any{"count": size})

	return out, nil
}

// CreateFolderAndAssign composes folder creation with assignment for the
// quick-create path. The folder survives a failed assign step.
func (s *AssignmentService) CreateFolderAndAssign(ctx context.Context, name, assetRef string) (*models.Folder, AssignOutcome, error) {
	ctx = ensureContext(ctx)

	folder, err := s.catalog.CreateFolder(ctx, CreateFolderInput{Name: name})
	if err != nil {
		return nil, AssignOutcome{AssetRef: strings.TrimSpace(assetRef), Status: AssignStatusFailed}, err
	}

	outcome, err := s.AssignToFolder(ctx, assetRef, folder.ID)
	return folder, outcome, err
}

// DeleteAsset removes the asset from the photo source and drops it from the
// unassigned view.
func (s *AssignmentService) DeleteAsset(ctx context.Context, assetRef string) error {
	ctx = ensureContext(ctx)

	assetRef = strings.TrimSpace(assetRef)
	if assetRef == "" {
		return apperrors.NewBadRequest("asset ref is required")
	}

	if err := s.source.Delete(ctx, assetRef); err != nil {
		if errors.Is(err, photos.ErrNotFound) {
			return apperrors.ErrAssetNotFound
		}
		return apperrors.Wrap(err, "delete asset")
	}

	s.dropUnassigned(assetRef)
	s.broadcast("asset.deleted", map[string]any{"asset_ref": assetRef})
	return nil
}

// PruneMissingAssets removes assignment records whose assets no longer
// resolve in the photo source. Returns the number of records removed.
func (s *AssignmentService) PruneMissingAssets(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)

	assigned, err := s.catalog.AllAssignedAssetRefs(ctx)
	if err != nil {
		return 0, err
	}

	var removed int64
	for ref := range assigned {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		_, err := s.source.Resolve(ctx, ref)
		if err == nil {
			continue
		}
		if !errors.Is(err, photos.ErrNotFound) {
			return removed, fmt.Errorf("assignment service: resolve %s: %w", ref, err)
		}

		count, err := s.catalog.DeleteAssignmentsForAsset(ctx, ref)
		if err != nil {
			return removed, err
		}
		removed += count
		s.log.Info("pruned assignments for missing asset",
			zap.String("asset_ref", ref),
			zap.Int64("records", count))
	}
	return removed, nil
}

// FolderSummaries exposes the catalog projection used by activity snapshots.
func (s *AssignmentService) FolderSummaries(ctx context.Context) ([]FolderSummary, error) {
	return s.catalog.FolderSummaries(ctx)
}

func (s *AssignmentService) dropUnassigned(assetRef string) {
	s.mu.Lock()
	_, present := s.unassigned[assetRef]
	if present {
		delete(s.unassigned, assetRef)
	}
	size := len(s.unassigned)
	s.mu.Unlock()

	if present {
		metrics.UnassignedScreenshots.Set(float64(size))
		s.broadcast("unassigned.changed", map[string]any{"count": size})
	}
}

func (s *AssignmentService) broadcast(event string, data map[string]any) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(realtime.StreamLibrary, realtime.Message{
		Stream: realtime.StreamLibrary,
		Event:  event,
		Data:   data,
	})
}
