package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sma-face-api/pkg/errors"
	"github.com/noah-isme/sma-face-api/pkg/storage"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return NewFileStore(files, 4, zap.NewNop())
}

func TestFileStorePutAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	set := [][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}}
	require.NoError(t, store.Put(ctx, "student-1", set))

	got, err := store.Get(ctx, "student-1")
	require.NoError(t, err)
	assert.Equal(t, set, got)
}

func TestFileStorePutReplacesWholeSet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "student-1", [][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 1, 0}}))
	require.NoError(t, store.Put(ctx, "student-1", [][]float32{{0, 0, 0, 1}}))

	got, err := store.Get(ctx, "student-1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, [][]float32{{0, 0, 0, 1}}, got)
}

func TestFileStorePutRejectsWrongDimension(t *testing.T) {
	store := newTestStore(t)

	err := store.Put(context.Background(), "student-1", [][]float32{{1, 0}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestFileStorePutRejectsEmptySet(t *testing.T) {
	store := newTestStore(t)

	err := store.Put(context.Background(), "student-1", nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestFileStoreGetNotEnrolled(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotEnrolled.Code, appErrors.FromError(err).Code)
}

func TestFileStoreAllSkipsEmptyDirs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "a", [][]float32{{1, 0, 0, 0}}))
	require.NoError(t, store.Put(ctx, "b", [][]float32{{0, 1, 0, 0}}))
	// A deleted student leaves the directory but no set file.
	require.NoError(t, store.Put(ctx, "c", [][]float32{{0, 0, 1, 0}}))
	require.NoError(t, store.Delete(ctx, "c"))

	sets, err := store.All(ctx)
	require.NoError(t, err)
	assert.Len(t, sets, 2)

	ids := []string{sets[0].StudentID, sets[1].StudentID}
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestFileStoreDeleteIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Delete(ctx, "never-enrolled"))

	require.NoError(t, store.Put(ctx, "student-1", [][]float32{{1, 0, 0, 0}}))
	require.NoError(t, store.Delete(ctx, "student-1"))
	require.NoError(t, store.Delete(ctx, "student-1"))

	_, err := store.Get(ctx, "student-1")
	assert.Equal(t, appErrors.ErrNotEnrolled.Code, appErrors.FromError(err).Code)
}
