package model

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/YuminosukeSato/mlapi/pkg/errors"
)

type fakeModel struct {
	State   StateManager
	Weights []float64
	Name    string
}

func TestSaveLoadModel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "model_1.gob")

	m := &fakeModel{Weights: []float64{1.5, -2}, Name: "forest"}
	m.State.SetFitted()
	m.State.SetDimensions(2, 10)

	if err := SaveModel(m, path); err != nil {
		t.Fatalf("SaveModel() error = %v", err)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "model_1.gob" {
		t.Errorf("expected only the final file, got %v", entries)
	}

	var loaded fakeModel
	if err := LoadModel(&loaded, path); err != nil {
		t.Fatalf("LoadModel() error = %v", err)
	}
	if !loaded.State.IsFitted() || loaded.Name != "forest" || len(loaded.Weights) != 2 {
		t.Errorf("loaded model mismatch: %+v", loaded)
	}
	if nf, ns := loaded.State.GetDimensions(); nf != 2 || ns != 10 {
		t.Errorf("dimensions = (%d, %d), want (2, 10)", nf, ns)
	}
}

func TestLoadModel_Missing(t *testing.T) {
	var m fakeModel
	err := LoadModel(&m, filepath.Join(t.TempDir(), "absent.gob"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected not-exist cause, got %v", err)
	}
}

func TestLoadModelFromReader_Corrupt(t *testing.T) {
	var m fakeModel
	if err := LoadModelFromReader(&m, bytes.NewBufferString("not gob")); err == nil {
		t.Error("expected decode error")
	}
}

func TestStateManager(t *testing.T) {
	s := NewStateManager()
	if err := s.RequireFitted("Forest", "Predict"); err == nil {
		t.Error("expected NotFittedError")
	} else {
		var nf *errors.NotFittedError
		if !errors.As(err, &nf) || nf.Method != "Predict" {
			t.Errorf("unexpected error %v", err)
		}
	}

	s.SetFitted()
	s.SetDimensions(3, 20)
	if err := s.RequireFitted("Forest", "Predict"); err != nil {
		t.Errorf("unexpected error %v", err)
	}
	if err := s.CheckFeatures("Predict", 2); err == nil {
		t.Error("expected DimensionError")
	}
	if err := s.CheckFeatures("Predict", 3); err != nil {
		t.Errorf("unexpected error %v", err)
	}

	s.Reset()
	if s.IsFitted() {
		t.Error("Reset should clear fitted state")
	}
}
