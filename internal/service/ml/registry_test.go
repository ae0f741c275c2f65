package ml

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/mlapi/core/model"
	"github.com/YuminosukeSato/mlapi/internal/store"
	"github.com/YuminosukeSato/mlapi/pkg/errors"
)

func newRegistry(dir string, persist bool) *Registry {
	return NewRegistry(store.NewMemory[*Record]("Model", store.ModelIDs), dir, persist, nil)
}

func trainedRecord(t *testing.T) Record {
	t.Helper()
	rec, err := NewTrainer(WithNEstimators(5)).Train(readFrame(t, exampleCSV), "target", []string{"a", "b"}, Classification, 0.2)
	require.NoError(t, err)
	rec.DatasetID = "1"
	return *rec
}

func TestRegistry_SaveAssignsIDsAndPersists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	r := newRegistry(dir, true)
	rec := trainedRecord(t)

	first, err := r.Save(ctx, rec)
	require.NoError(t, err)
	second, err := r.Save(ctx, rec)
	require.NoError(t, err)

	assert.Equal(t, "model_1", first.ID)
	assert.Equal(t, "model_2", second.ID)
	assert.Empty(t, rec.ID)
	assert.FileExists(t, filepath.Join(dir, "model_1.gob"))
	assert.FileExists(t, filepath.Join(dir, "model_2.gob"))

	got, err := r.Get(ctx, "model_2")
	require.NoError(t, err)
	assert.Same(t, second, got)
	assert.Len(t, r.List(ctx), 2)
}

func TestRegistry_ReloadOnMiss(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	saved, err := newRegistry(dir, true).Save(ctx, trainedRecord(t))
	require.NoError(t, err)

	fresh := newRegistry(dir, true)
	got, err := fresh.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.Features, got.Features)
	assert.Equal(t, saved.Classes, got.Classes)
	assert.Equal(t, saved.Metrics, got.Metrics)
	assert.True(t, got.Estimator.IsFitted())
	_, ok := got.Estimator.(model.Classifier)
	assert.True(t, ok)

	// the reloaded id is reserved
	next, err := fresh.Save(ctx, trainedRecord(t))
	require.NoError(t, err)
	assert.Equal(t, "model_2", next.ID)

	_, err = fresh.Get(ctx, "model_99")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))

	_, err = fresh.Get(ctx, "../etc/passwd")
	assert.True(t, errors.IsNotFound(err))
}

func TestRegistry_Restore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	r := newRegistry(dir, true)
	for range 3 {
		_, err := r.Save(ctx, trainedRecord(t))
		require.NoError(t, err)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model_7.gob"), []byte("garbage"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Rename(filepath.Join(dir, "model_3.gob"), filepath.Join(dir, "model_4.gob")))

	fresh := newRegistry(dir, true)
	n, err := fresh.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ids := make([]string, 0)
	for _, rec := range fresh.List(ctx) {
		ids = append(ids, rec.ID)
	}
	assert.Equal(t, []string{"model_1", "model_2"}, ids)

	_, err = fresh.Get(ctx, "model_4")
	assert.Error(t, err)
	assert.False(t, errors.IsNotFound(err))
}

func TestRegistry_RestoreMissingDir(t *testing.T) {
	r := newRegistry(filepath.Join(t.TempDir(), "absent"), true)
	n, err := r.Restore(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRegistry_PersistDisabled(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	r := newRegistry(dir, false)

	saved, err := r.Save(ctx, trainedRecord(t))
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(dir, saved.ID+".gob"))

	n, err := r.Restore(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRegistry_SaveRollsBackWhenWriteFails(t *testing.T) {
	ctx := context.Background()
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	r := newRegistry(filepath.Join(blocker, "models"), true)

	_, err := r.Save(ctx, trainedRecord(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model_1")

	assert.Empty(t, r.List(ctx))
	_, err = r.store.Get(ctx, "model_1")
	assert.True(t, errors.IsNotFound(err))
	_, err = r.Get(ctx, "model_1")
	assert.Error(t, err)
}
