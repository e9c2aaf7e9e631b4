package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/capturecabinet/cabinet/internal/database/testutil"
	"github.com/capturecabinet/cabinet/internal/photos"
	"github.com/capturecabinet/cabinet/internal/services"
)

func TestRunOncePrunesVanishedAssets(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	catalog, err := services.NewCatalogService(db)
	require.NoError(t, err)

	source := photos.NewMemorySource()
	engine, err := services.NewAssignmentService(catalog, source, nil)
	require.NoError(t, err)

	ctx := context.Background()
	folder, err := catalog.CreateFolder(ctx, services.CreateFolderInput{Name: "Trip"})
	require.NoError(t, err)

	source.Add("kept", time.Now())
	source.Add("vanishing", time.Now())
	_, err = engine.AssignToFolder(ctx, "kept", folder.ID)
	require.NoError(t, err)
	_, err = engine.AssignToFolder(ctx, "vanishing", folder.ID)
	require.NoError(t, err)

	source.Remove("vanishing")

	cleaner := NewCleaner(engine)
	require.NoError(t, cleaner.RunOnce(ctx))

	refs, err := catalog.AllAssignedAssetRefs(ctx)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	require.Contains(t, refs, "kept")
}

func TestRunOnceWithoutEngineIsNoop(t *testing.T) {
	cleaner := NewCleaner(nil)
	require.NoError(t, cleaner.RunOnce(context.Background()))
}

func TestStartAndStop(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	catalog, err := services.NewCatalogService(db)
	require.NoError(t, err)

	engine, err := services.NewAssignmentService(catalog, photos.NewMemorySource(), nil)
	require.NoError(t, err)

	cleaner := NewCleaner(engine, WithPruneSchedule("@every 1h"), WithRefreshSchedule("@every 1h"))
	require.NoError(t, cleaner.Start())

	done := cleaner.Stop()
	select {
	case <-done.Done():
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
