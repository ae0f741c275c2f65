package model

import (
	"encoding/gob"
	"io"
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/mlapi/pkg/errors"
)

// SaveModel はモデルをgobでファイルに保存する
//
// 同じディレクトリの一時ファイルに書き込んでからリネームするため、
// 読み込み側が書きかけのファイルを見ることはない。
//
//	err := model.SaveModel(bundle, "trained_models/model_1.gob")
func SaveModel(model interface{}, filename string) (err error) {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(filename)+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "failed to create file")
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = SaveModelToWriter(model, tmp); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return errors.Wrap(err, "failed to sync file")
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close file")
	}
	if err = os.Rename(tmp.Name(), filename); err != nil {
		return errors.Wrapf(err, "failed to rename to %s", filename)
	}
	return nil
}

// LoadModel はファイルからモデルを読み込む
//
//	forest := ensemble.NewRandomForestClassifier()
//	err := model.LoadModel(forest, "forest.gob")
func LoadModel(model interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.Wrap(err, "failed to open file")
	}
	defer file.Close()

	return LoadModelFromReader(model, file)
}

// SaveModelToWriter はモデルをio.Writerに保存する
func SaveModelToWriter(model interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(model); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader はio.Readerからモデルを読み込む
func LoadModelFromReader(model interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(model); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}
