// Package dataset manages uploaded datasets and serves their analyses.
package dataset

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/YuminosukeSato/mlapi/internal/dataframe"
	"github.com/YuminosukeSato/mlapi/internal/service/analysis"
	"github.com/YuminosukeSato/mlapi/internal/store"
	"github.com/YuminosukeSato/mlapi/internal/telemetry"
	"github.com/YuminosukeSato/mlapi/pkg/errors"
	"github.com/YuminosukeSato/mlapi/pkg/log"
)

// Dataset is an uploaded, parsed CSV file. It is never modified after
// upload.
type Dataset struct {
	ID         string
	Filename   string
	Frame      *dataframe.Frame
	UploadedAt time.Time
}

// Descriptor is the listing view of a Dataset.
type Descriptor struct {
	ID         string    `json:"dataset_id"`
	Filename   string    `json:"filename"`
	Rows       int       `json:"rows"`
	Columns    int       `json:"columns"`
	UploadedAt time.Time `json:"uploaded_at"`
}

const storeName = "datasets"

// Service is the dataset registry.
type Service struct {
	store   store.Store[*Dataset]
	metrics *telemetry.Metrics
	logger  log.Logger
	now     func() time.Time
}

// NewService creates a Service over the given store. metrics may be nil.
func NewService(s store.Store[*Dataset], metrics *telemetry.Metrics) *Service {
	return &Service{
		store:   s,
		metrics: metrics,
		logger:  log.GetLoggerWithName("dataset"),
		now:     time.Now,
	}
}

// Upload parses r as CSV, registers the result and returns it along with
// its analysis. Only file names ending in ".csv" are accepted.
func (s *Service) Upload(ctx context.Context, filename string, r io.Reader) (*Dataset, *analysis.Summary, error) {
	if !strings.HasSuffix(filename, ".csv") {
		return nil, nil, errors.MarkInvalidInput(errors.New("Only CSV files are allowed"))
	}

	frame, err := dataframe.ReadCSV(r)
	if err != nil {
		return nil, nil, err
	}

	var ds *Dataset
	id, err := s.store.InsertFunc(ctx, func(id string) *Dataset {
		ds = &Dataset{ID: id, Filename: filename, Frame: frame, UploadedAt: s.now().UTC()}
		return ds
	})
	if err != nil {
		return nil, nil, err
	}

	s.metrics.RecordUpload(frame.NRows())
	s.metrics.SetStoreSize(storeName, s.store.Len(ctx))
	s.logger.Info("Dataset uploaded",
		log.OperationKey, log.OperationUpload,
		log.DatasetIDKey, id,
		log.FilenameKey, filename,
		log.SamplesKey, frame.NRows(),
		log.FeaturesKey, frame.NCols(),
	)
	return ds, analysis.Analyze(frame), nil
}

// Get returns the dataset registered under id.
func (s *Service) Get(ctx context.Context, id string) (*Dataset, error) {
	return s.store.Get(ctx, id)
}

// List describes every dataset in upload order.
func (s *Service) List(ctx context.Context) []Descriptor {
	ids := s.store.List(ctx)
	out := make([]Descriptor, 0, len(ids))
	for _, id := range ids {
		ds, err := s.store.Get(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, Descriptor{
			ID:         ds.ID,
			Filename:   ds.Filename,
			Rows:       ds.Frame.NRows(),
			Columns:    ds.Frame.NCols(),
			UploadedAt: ds.UploadedAt,
		})
	}
	return out
}

// Summary recomputes the analysis of a registered dataset.
func (s *Service) Summary(ctx context.Context, id string) (*analysis.Summary, error) {
	ds, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return analysis.Analyze(ds.Frame), nil
}

// Histogram bins one numeric column of a registered dataset.
func (s *Service) Histogram(ctx context.Context, id, column string) (*analysis.HistogramData, error) {
	ds, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return analysis.Histogram(ds.Frame, column)
}
