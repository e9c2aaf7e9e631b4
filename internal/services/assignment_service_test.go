package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/capturecabinet/cabinet/internal/database/testutil"
	"github.com/capturecabinet/cabinet/internal/photos"
	apperrors "github.com/capturecabinet/cabinet/pkg/errors"
)

func newTestEngine(t *testing.T) (*AssignmentService, *CatalogService, *photos.MemorySource) {
	t.Helper()

	db := testutil.MustOpenTestDB(t)
	catalog, err := NewCatalogService(db)
	require.NoError(t, err)

	source := photos.NewMemorySource()
	engine, err := NewAssignmentService(catalog, source, nil)
	require.NoError(t, err)

	return engine, catalog, source
}

func TestAssignToFolderIsIdempotent(t *testing.T) {
	engine, catalog, source := newTestEngine(t)
	ctx := context.Background()

	folder, err := catalog.CreateFolder(ctx, CreateFolderInput{Name: "Receipts"})
	require.NoError(t, err)
	source.Add("asset-1", time.Now())

	first, err := engine.AssignToFolder(ctx, "asset-1", folder.ID)
	require.NoError(t, err)
	require.Equal(t, AssignStatusAssigned, first.Status)
	require.NotNil(t, first.Screenshot)

	second, err := engine.AssignToFolder(ctx, "asset-1", folder.ID)
	require.NoError(t, err)
	require.Equal(t, AssignStatusAlreadyAssigned, second.Status)
	require.NotNil(t, second.Screenshot)
	require.Equal(t, first.Screenshot.ID, second.Screenshot.ID)

	folders, err := catalog.ListFolders(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), folders[0].ScreenshotCount)
}

func TestAssignToFolderAcrossFoldersKeepsBoth(t *testing.T) {
	engine, catalog, source := newTestEngine(t)
	ctx := context.Background()

	one, err := catalog.CreateFolder(ctx, CreateFolderInput{Name: "One"})
	require.NoError(t, err)
	two, err := catalog.CreateFolder(ctx, CreateFolderInput{Name: "Two"})
	require.NoError(t, err)
	source.Add("asset-1", time.Now())

	outcome, err := engine.AssignToFolder(ctx, "asset-1", one.ID)
	require.NoError(t, err)
	require.Equal(t, AssignStatusAssigned, outcome.Status)

	outcome, err = engine.AssignToFolder(ctx, "asset-1", two.ID)
	require.NoError(t, err)
	require.Equal(t, AssignStatusAssigned, outcome.Status)
}

func TestAssignToFolderMissingAsset(t *testing.T) {
	engine, catalog, _ := newTestEngine(t)
	ctx := context.Background()

	folder, err := catalog.CreateFolder(ctx, CreateFolderInput{Name: "Empty"})
	require.NoError(t, err)

	outcome, err := engine.AssignToFolder(ctx, "vanished", folder.ID)
	require.ErrorIs(t, err, apperrors.ErrAssetNotFound)
	require.Equal(t, AssignStatusFailed, outcome.Status)

	refs, err := catalog.AllAssignedAssetRefs(ctx)
	require.NoError(t, err)
	require.Empty(t, refs)
}

func TestAssignToFolderMissingFolder(t *testing.T) {
	engine, _, source := newTestEngine(t)
	source.Add("asset-1", time.Now())

	outcome, err := engine.AssignToFolder(context.Background(), "asset-1", "missing")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	require.Equal(t, AssignStatusFailed, outcome.Status)
}

func TestAssignBatchIsolatesFailures(t *testing.T) {
	engine, catalog, source := newTestEngine(t)
	ctx := context.Background()

	folder, err := catalog.CreateFolder(ctx, CreateFolderInput{Name: "Mixed"})
	require.NoError(t, err)

	now := time.Now()
	source.Add("asset-a", now)
	source.Add("asset-c", now)

	// asset-b is unknown to the source; asset-a appears twice in the request.
	outcomes, err := engine.AssignBatch(ctx, []string{"asset-a", "asset-b", "asset-c", "asset-a"}, folder.ID)
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	byRef := make(map[string]AssignOutcome, len(outcomes))
	for _, outcome := range outcomes {
		byRef[outcome.AssetRef] = outcome
	}
	require.Equal(t, AssignStatusAssigned, byRef["asset-a"].Status)
	require.Equal(t, AssignStatusFailed, byRef["asset-b"].Status)
	require.Equal(t, AssignStatusAssigned, byRef["asset-c"].Status)

	folders, err := catalog.ListFolders(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), folders[0].ScreenshotCount)
}

func TestAssignBatchRepeatedIsAlreadyAssigned(t *testing.T) {
	engine, catalog, source := newTestEngine(t)
	ctx := context.Background()

	folder, err := catalog.CreateFolder(ctx, CreateFolderInput{Name: "Repeat"})
	require.NoError(t, err)
	source.Add("asset-a", time.Now())

	first, err := engine.AssignBatch(ctx, []string{"asset-a"}, folder.ID)
	require.NoError(t, err)
	require.Equal(t, AssignStatusAssigned, first[0].Status)

	second, err := engine.AssignBatch(ctx, []string{"asset-a"}, folder.ID)
	require.NoError(t, err)
	require.Equal(t, AssignStatusAlreadyAssigned, second[0].Status)
}

func TestAssignBatchMissingFolder(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	_, err := engine.AssignBatch(context.Background(), []string{"asset-a"}, "missing")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUnassignedRecentSubtractsAssignedAndSorts(t *testing.T) {
	engine, catalog, source := newTestEngine(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	source.Add("asset-a", base.Add(1*time.Minute))
	source.Add("asset-b", base.Add(2*time.Minute))
	source.Add("asset-c", base.Add(3*time.Minute))

	folder, err := catalog.CreateFolder(ctx, CreateFolderInput{Name: "Trip"})
	require.NoError(t, err)
	_, err = engine.AssignToFolder(ctx, "asset-b", folder.ID)
	require.NoError(t, err)

	recent, err := engine.UnassignedRecent(ctx, base)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, "asset-c", recent[0].Ref)
	require.Equal(t, "asset-a", recent[1].Ref)
}

func TestUnassignedRecentHonoursCutoff(t *testing.T) {
	engine, _, source := newTestEngine(t)
	ctx := context.Background()

	cutoff := time.Now().Add(-30 * time.Minute)
	source.Add("old", cutoff.Add(-time.Hour))
	source.Add("new", cutoff.Add(time.Minute))

	recent, err := engine.UnassignedRecent(ctx, cutoff)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	require.Equal(t, "new", recent[0].Ref)
}

func TestUnassignedRecentDeniedAccess(t *testing.T) {
	engine, _, source := newTestEngine(t)
	source.SetAccess(photos.AccessDenied)

	_, err := engine.UnassignedRecent(context.Background(), time.Now().Add(-time.Hour))
	require.ErrorIs(t, err, apperrors.ErrAccessDenied)
}

func TestUnassignedRecentLimitedAccessStillReads(t *testing.T) {
	engine, _, source := newTestEngine(t)
	source.SetAccess(photos.AccessLimited)
	source.Add("asset-a", time.Now())

	recent, err := engine.UnassignedRecent(context.Background(), time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, recent, 1)
}

func TestCreateFolderAndAssign(t *testing.T) {
	engine, catalog, source := newTestEngine(t)
	ctx := context.Background()

	source.Add("asset-1", time.Now())

	folder, outcome, err := engine.CreateFolderAndAssign(ctx, "Quick", "asset-1")
	require.NoError(t, err)
	require.Equal(t, "Quick", folder.Name)
	require.Equal(t, AssignStatusAssigned, outcome.Status)

	record, err := catalog.FindAssignment(ctx, "asset-1", folder.ID)
	require.NoError(t, err)
	require.NotNil(t, record)
}

func TestCreateFolderAndAssignKeepsFolderOnFailure(t *testing.T) {
	engine, catalog, _ := newTestEngine(t)
	ctx := context.Background()

	folder, outcome, err := engine.CreateFolderAndAssign(ctx, "Orphan", "vanished")
	require.ErrorIs(t, err, apperrors.ErrAssetNotFound)
	require.Equal(t, AssignStatusFailed, outcome.Status)
	require.NotNil(t, folder)

	// The folder creation is not rolled back by the failed assignment.
	kept, err := catalog.GetFolder(ctx, folder.ID)
	require.NoError(t, err)
	require.Equal(t, "Orphan", kept.Name)
}

func TestDeleteAsset(t *testing.T) {
	engine, _, source := newTestEngine(t)
	ctx := context.Background()

	source.Add("asset-1", time.Now())
	require.NoError(t, engine.DeleteAsset(ctx, "asset-1"))

	_, err := source.Resolve(ctx, "asset-1")
	require.ErrorIs(t, err, photos.ErrNotFound)

	require.ErrorIs(t, engine.DeleteAsset(ctx, "asset-1"), apperrors.ErrAssetNotFound)
}

func TestPruneMissingAssets(t *testing.T) {
	engine, catalog, source := newTestEngine(t)
	ctx := context.Background()

	one, err := catalog.CreateFolder(ctx, CreateFolderInput{Name: "One"})
	require.NoError(t, err)
	two, err := catalog.CreateFolder(ctx, CreateFolderInput{Name: "Two"})
	require.NoError(t, err)

	now := time.Now()
	source.Add("kept", now)
	source.Add("vanishing", now)

	_, err = engine.AssignToFolder(ctx, "kept", one.ID)
	require.NoError(t, err)
	_, err = engine.AssignToFolder(ctx, "vanishing", one.ID)
	require.NoError(t, err)
	_, err = engine.AssignToFolder(ctx, "vanishing", two.ID)
	require.NoError(t, err)

	source.Remove("vanishing")

	removed, err := engine.PruneMissingAssets(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), removed)

	refs, err := catalog.AllAssignedAssetRefs(ctx)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	require.Contains(t, refs, "kept")
}
