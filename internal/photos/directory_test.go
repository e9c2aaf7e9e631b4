package photos

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("img"), 0o644))
	return path
}

func TestDirectorySourceFetchSince(t *testing.T) {
	dir := t.TempDir()
	source, err := NewDirectorySource(dir)
	require.NoError(t, err)

	writeFile(t, dir, "shot-1.png")
	writeFile(t, dir, "shot-2.jpg")
	writeFile(t, dir, "notes.txt")

	old := writeFile(t, dir, "ancient.png")
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	assets, err := source.FetchSince(context.Background(), time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, assets, 2)

	refs := map[string]bool{}
	for _, asset := range assets {
		refs[asset.Ref] = true
	}
	require.True(t, refs["shot-1.png"])
	require.True(t, refs["shot-2.jpg"])
}

func TestDirectorySourceResolveAndDelete(t *testing.T) {
	dir := t.TempDir()
	source, err := NewDirectorySource(dir)
	require.NoError(t, err)

	writeFile(t, dir, "shot.png")

	asset, err := source.Resolve(context.Background(), "shot.png")
	require.NoError(t, err)
	require.Equal(t, "shot.png", asset.Ref)

	require.NoError(t, source.Delete(context.Background(), "shot.png"))

	_, err = source.Resolve(context.Background(), "shot.png")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, source.Delete(context.Background(), "shot.png"), ErrNotFound)
}

func TestDirectorySourceRejectsPathTraversal(t *testing.T) {
	dir := t.TempDir()
	source, err := NewDirectorySource(dir)
	require.NoError(t, err)

	_, err = source.Resolve(context.Background(), "../escape.png")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, source.Delete(context.Background(), "sub/escape.png"), ErrNotFound)
}

func TestDirectorySourceRequestAccess(t *testing.T) {
	dir := t.TempDir()
	source, err := NewDirectorySource(dir)
	require.NoError(t, err)

	level, err := source.RequestAccess(context.Background())
	require.NoError(t, err)
	require.Equal(t, AccessGranted, level)
	require.True(t, level.Readable())

	missing, err := NewDirectorySource(filepath.Join(dir, "absent"))
	require.NoError(t, err)

	level, err = missing.RequestAccess(context.Background())
	require.NoError(t, err)
	require.Equal(t, AccessDenied, level)
	require.False(t, level.Readable())
}

func TestDirectorySourceWatcherEmitsCaptures(t *testing.T) {
	dir := t.TempDir()
	source, err := NewDirectorySource(dir)
	require.NoError(t, err)

	require.NoError(t, source.Start())
	t.Cleanup(func() { _ = source.Close() })

	writeFile(t, dir, "fresh.png")
	writeFile(t, dir, "ignored.txt")

	select {
	case asset := <-source.Events():
		require.Equal(t, "fresh.png", asset.Ref)
	case <-time.After(2 * time.Second):
		t.Fatal("no capture event received")
	}
}

func TestDirectorySourceCustomExtensions(t *testing.T) {
	dir := t.TempDir()
	source, err := NewDirectorySource(dir, WithExtensions([]string{"webp"}))
	require.NoError(t, err)

	writeFile(t, dir, "shot.webp")
	writeFile(t, dir, "shot.png")

	assets, err := source.FetchSince(context.Background(), time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, assets, 1)
	require.Equal(t, "shot.webp", assets[0].Ref)
}

func TestMemorySourceLifecycle(t *testing.T) {
	source := NewMemorySource()
	ctx := context.Background()

	level, err := source.RequestAccess(ctx)
	require.NoError(t, err)
	require.Equal(t, AccessGranted, level)

	source.Add("a", time.Now())
	asset, err := source.Resolve(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, "a", asset.Ref)

	require.NoError(t, source.Delete(ctx, "a"))
	require.ErrorIs(t, source.Delete(ctx, "a"), ErrNotFound)

	source.SetAccess(AccessDenied)
	level, err = source.RequestAccess(ctx)
	require.NoError(t, err)
	require.False(t, level.Readable())
}
