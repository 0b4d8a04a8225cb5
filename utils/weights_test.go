package utils

import (
	"os"
	"path/filepath"
	"testing"

	"gradleak/tensor"
)

func TestTensorToWeightData(t *testing.T) {
	// Create a test tensor
	ten := tensor.New(2, 3)
	for i := range ten.Data {
		ten.Data[i] = float64(i) * 0.5
	}

	wd := TensorToWeightData("param.0", ten)

	if wd.Name != "param.0" {
		t.Errorf("Name = %s, want param.0", wd.Name)
	}
	if len(wd.Shape) != 2 || wd.Shape[0] != 2 || wd.Shape[1] != 3 {
		t.Errorf("Shape = %v, want [2, 3]", wd.Shape)
	}
	for i, v := range wd.Data {
		expected := float64(i) * 0.5
		if v != expected {
			t.Errorf("Data[%d] = %f, want %f", i, v, expected)
		}
	}

	// the weight data must not alias the tensor
	ten.Data[0] = 42
	if wd.Data[0] == 42 {
		t.Errorf("weight data shares memory with the tensor")
	}
}

func TestWeightDataToTensor(t *testing.T) {
	wd := &WeightData{
		Name:  "test",
		Shape: []int{3, 4},
		Data:  make([]float64, 12),
	}
	for i := range wd.Data {
		wd.Data[i] = float64(i)
	}

	ten, err := WeightDataToTensor(wd)
	if err != nil {
		t.Fatalf("WeightDataToTensor failed: %v", err)
	}
	if len(ten.Shape) != 2 || ten.Shape[0] != 3 || ten.Shape[1] != 4 {
		t.Errorf("Shape = %v, want [3, 4]", ten.Shape)
	}
	for i, v := range ten.Data {
		if v != float64(i) {
			t.Errorf("Data[%d] = %f, want %f", i, v, float64(i))
		}
	}

	wd.Shape = []int{5, 4}
	if _, err := WeightDataToTensor(wd); err == nil {
		t.Error("Expected error for data that does not fill the shape")
	}
}

func TestSaveLoadWeights(t *testing.T) {
	weightsFile := filepath.Join(t.TempDir(), "test_weights.json")

	weights := &ModelWeights{
		Version: WeightsVersion,
		Params: []*WeightData{
			{Name: "param.0", Shape: []int{12, 3, 5, 5}, Data: make([]float64, 12*3*5*5)},
			{Name: "param.1", Shape: []int{12}, Data: make([]float64, 12)},
		},
	}
	for i := range weights.Params[0].Data {
		weights.Params[0].Data[i] = float64(i) * 0.001
	}

	err := SaveWeights(weightsFile, weights)
	if err != nil {
		t.Fatalf("SaveWeights failed: %v", err)
	}

	loaded, err := LoadWeights(weightsFile)
	if err != nil {
		t.Fatalf("LoadWeights failed: %v", err)
	}

	if loaded.Version != WeightsVersion {
		t.Errorf("Version = %s, want %s", loaded.Version, WeightsVersion)
	}
	if len(loaded.Params) != 2 {
		t.Fatalf("Params count = %d, want 2", len(loaded.Params))
	}
	conv := loaded.Params[0]
	if len(conv.Shape) != 4 || conv.Shape[0] != 12 || conv.Shape[3] != 5 {
		t.Errorf("param.0 shape = %v, want [12, 3, 5, 5]", conv.Shape)
	}
	if conv.Data[1] != 0.001 {
		t.Errorf("param.0 Data[1] = %f, want 0.001", conv.Data[1])
	}
}

func TestLoadWeightsNotFound(t *testing.T) {
	_, err := LoadWeights("/nonexistent/path/weights.json")
	if err == nil {
		t.Error("Expected error for nonexistent file")
	}
}

func TestLoadWeightsInvalidJSON(t *testing.T) {
	badFile := filepath.Join(t.TempDir(), "bad.json")
	err := os.WriteFile(badFile, []byte("not valid json"), 0644)
	if err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	_, err = LoadWeights(badFile)
	if err == nil {
		t.Error("Expected error for invalid JSON")
	}
}
