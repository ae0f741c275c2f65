// Package mlapi is an HTTP service for exploratory data analysis and
// random-forest modelling of CSV datasets.
//
// The service is started by cmd/mlapi and exposes:
//
//   - dataset upload with a column-level analysis (statistics, missing
//     values, pairwise correlation)
//   - histograms of numeric columns, as JSON or as a rendered PNG
//   - random forest training for classification and regression, with
//     held-out evaluation metrics
//   - prediction from a trained model, including the class probability
//
// Trained models are kept in memory and written to disk so they survive a
// restart.
//
// # Packages
//
//   - internal/dataframe: CSV parsing with dtype inference
//   - internal/service/analysis: summaries, correlation and histograms
//   - internal/service/dataset: dataset registry
//   - internal/service/ml: training, prediction and the model registry
//   - sklearn/tree, sklearn/ensemble: CART trees and random forests
//   - metrics, preprocessing, sklearn/model_selection: evaluation, label
//     encoding, imputation and train/test splitting
//   - pkg/errors, pkg/log: error kinds and structured logging
//
// Configuration is read from configs/config.yaml (or CONFIG_PATH) and
// MLAPI_* environment variables.
package mlapi
