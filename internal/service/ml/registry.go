package ml

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/YuminosukeSato/mlapi/core/model"
	"github.com/YuminosukeSato/mlapi/internal/store"
	"github.com/YuminosukeSato/mlapi/internal/telemetry"
	"github.com/YuminosukeSato/mlapi/pkg/errors"
	"github.com/YuminosukeSato/mlapi/pkg/log"
)

const (
	fileExt       = ".gob"
	bundleVersion = 1
	storeName     = "models"
)

// bundle is the on-disk form of a Record.
type bundle struct {
	Version int
	Record  Record
}

// Registry assigns model identifiers and keeps records in memory. When
// persistence is enabled every record is also written to
// <dir>/<id>.gob and records missing from memory are loaded from there.
type Registry struct {
	store   store.Store[*Record]
	dir     string
	persist bool
	loads   singleflight.Group
	metrics *telemetry.Metrics
	logger  log.Logger
}

// NewRegistry creates a Registry. An empty dir disables persistence.
func NewRegistry(s store.Store[*Record], dir string, persist bool, metrics *telemetry.Metrics) *Registry {
	return &Registry{
		store:   s,
		dir:     dir,
		persist: persist && dir != "",
		metrics: metrics,
		logger:  log.GetLoggerWithName("ml.registry"),
	}
}

func (r *Registry) path(id string) string {
	return filepath.Join(r.dir, id+fileExt)
}

// Save registers rec under a new model_N identifier and persists it. When
// the file cannot be written the record is removed again and its
// identifier is not reused. The stored record is returned; rec itself is
// not modified.
func (r *Registry) Save(ctx context.Context, rec Record) (*Record, error) {
	var saved *Record
	id, err := r.store.InsertFunc(ctx, func(id string) *Record {
		rec.ID = id
		saved = &rec
		return saved
	})
	if err != nil {
		return nil, err
	}

	if r.persist {
		if err := model.SaveModel(&bundle{Version: bundleVersion, Record: *saved}, r.path(id)); err != nil {
			if derr := r.store.Delete(context.WithoutCancel(ctx), id); derr != nil {
				r.logger.Error("Failed to roll back model", derr, log.ModelIDKey, id)
			}
			return nil, errors.Wrapf(err, "failed to persist model %s", id)
		}
	}
	r.metrics.SetStoreSize(storeName, r.store.Len(ctx))
	r.logger.Info("Model saved",
		log.OperationKey, log.OperationSave,
		log.ModelIDKey, id,
		log.TaskTypeKey, string(saved.TaskType),
	)
	return saved, nil
}

// Get returns the record for id, loading it from disk when it is not in
// memory.
func (r *Registry) Get(ctx context.Context, id string) (*Record, error) {
	rec, err := r.store.Get(ctx, id)
	if err == nil || !errors.IsNotFound(err) || !r.persist {
		return rec, err
	}
	if _, perr := store.ModelIDs.Parse(id); perr != nil {
		return nil, err
	}

	v, lerr, _ := r.loads.Do(id, func() (any, error) {
		if rec, err := r.store.Get(ctx, id); err == nil {
			return rec, nil
		}
		return r.load(ctx, id)
	})
	if lerr != nil {
		if errors.Is(lerr, fs.ErrNotExist) {
			return nil, err
		}
		return nil, lerr
	}
	return v.(*Record), nil
}

// List returns every record in memory in identifier order.
func (r *Registry) List(ctx context.Context) []*Record {
	ids := r.store.List(ctx)
	out := make([]*Record, 0, len(ids))
	for _, id := range ids {
		if rec, err := r.store.Get(ctx, id); err == nil {
			out = append(out, rec)
		}
	}
	return out
}

// Restore loads every valid model file of the directory into memory.
// Invalid files are logged and skipped. It returns the number of models
// restored.
func (r *Registry) Restore(ctx context.Context) (int, error) {
	if !r.persist {
		return 0, nil
	}
	entries, err := os.ReadDir(r.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrapf(err, "failed to read models directory %s", r.dir)
	}

	restored := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		id := strings.TrimSuffix(name, fileExt)
		if _, err := store.ModelIDs.Parse(id); err != nil {
			continue
		}
		if _, err := r.load(ctx, id); err != nil {
			r.logger.Warn("Skipping model file",
				log.ModelIDKey, id,
				log.ErrAttr(err),
			)
			continue
		}
		restored++
	}
	r.logger.Info("Models restored", "count", restored, "dir", r.dir)
	return restored, nil
}

// load reads, validates and registers one model file.
func (r *Registry) load(ctx context.Context, id string) (*Record, error) {
	var b bundle
	if err := model.LoadModel(&b, r.path(id)); err != nil {
		return nil, err
	}
	if err := b.validate(id); err != nil {
		return nil, err
	}
	rec := b.Record
	if err := r.store.Put(ctx, id, &rec); err != nil {
		return nil, err
	}
	r.metrics.SetStoreSize(storeName, r.store.Len(ctx))
	r.logger.Info("Model loaded",
		log.OperationKey, log.OperationLoad,
		log.ModelIDKey, id,
	)
	return &rec, nil
}

func (b *bundle) validate(id string) error {
	rec := &b.Record
	switch {
	case b.Version != bundleVersion:
		return errors.Newf("model %s: unsupported file version %d", id, b.Version)
	case rec.ID != id:
		return errors.Newf("model %s: file holds model %q", id, rec.ID)
	case rec.TaskType != Classification && rec.TaskType != Regression:
		return errors.Newf("model %s: unknown model type %q", id, rec.TaskType)
	case len(rec.Features) == 0:
		return errors.Newf("model %s: no features", id)
	case rec.Estimator == nil || !rec.Estimator.IsFitted():
		return errors.Newf("model %s: estimator missing or not fitted", id)
	}
	if rec.TaskType == Classification {
		if _, ok := rec.Estimator.(model.Classifier); !ok {
			return errors.Newf("model %s: estimator is not a classifier", id)
		}
		if len(rec.Classes) == 0 && len(rec.ClassNames) == 0 {
			return errors.Newf("model %s: no class labels", id)
		}
	}
	return nil
}
