package log

// Standard attribute keys. Use these instead of ad-hoc strings so that log
// queries work across packages.
const (
	// ComponentKey identifies which package emitted the record ("ml.trainer", "http").
	ComponentKey = "ml.component"
	// OperationKey is the operation being performed ("fit", "predict", "upload").
	OperationKey = "ml.operation"
	// TaskTypeKey is "classification" or "regression".
	TaskTypeKey = "ml.task_type"

	ModelIDKey   = "model.id"
	ModelNameKey = "model.name"
	DatasetIDKey = "dataset.id"
	FilenameKey  = "dataset.filename"

	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"
	ColumnKey   = "data.column"

	DurationMsKey = "perf.duration_ms"

	AccuracyKey = "metrics.accuracy"
	MSEKey      = "metrics.mse"
	R2ScoreKey  = "metrics.r2_score"

	RandomSeedKey = "config.random_seed"
	EstimatorsKey = "hyperparams.n_estimators"
	ErrorTypeKey  = "error.type"
	RequestIDKey  = "http.request_id"
	MethodKey     = "http.method"
	PathKey       = "http.path"
	StatusKey     = "http.status"
	ClientIPKey   = "http.client_ip"
)

// Operation values for OperationKey.
const (
	OperationFit     = "fit"
	OperationPredict = "predict"
	OperationUpload  = "upload"
	OperationSave    = "save"
	OperationLoad    = "load"
)
