package utils

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"gradleak/dataset"
	"gradleak/dummy"
	"gradleak/measure"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
num_epochs: 300
batch_size: 2
measure: gaussian
data: CIFAR
data_root: /data
index: [3, 17]
init_type: gaussian_shift
Q: 0.5
val_size: 10
n_images: 1
lr: 1
seed: 9
`

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dlg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 300, cfg.NumEpochs)
	assert.Equal(t, IndexSpec{3, 17}, cfg.Index)
	assert.Equal(t, 0.5, cfg.Q)
	assert.Equal(t, uint64(9), cfg.Seed)
	// defaults survive
	assert.Equal(t, 20, cfg.MaxIter)
	assert.Equal(t, 100, cfg.HistorySize)
	assert.Equal(t, "cpu", cfg.Device)

	require.NoError(t, cfg.Validate())
	assert.Equal(t, measure.Gaussian, cfg.MeasureKind)
	assert.Equal(t, dummy.GaussianShift, cfg.InitDist)
	assert.Equal(t, dataset.CIFAR, cfg.DataKind)
}

func TestIndexScalar(t *testing.T) {
	cfg, err := ParseConfig([]byte("index: 25\n"))
	require.NoError(t, err)
	assert.Equal(t, IndexSpec{25}, cfg.Index)

	_, err = ParseConfig([]byte("index: {a: 1}\n"))
	require.Error(t, err)
}

func TestUnknownKeyRejected(t *testing.T) {
	_, err := ParseConfig([]byte("num_epoch: 3\n"))
	require.True(t, errors.Is(err, ErrInvalidConfiguration))
}

func TestEmptyConfigHasDefaults(t *testing.T) {
	cfg, err := ParseConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), *cfg)
	require.True(t, errors.Is(cfg.Validate(), ErrInvalidConfiguration))
}

func TestValidateRejects(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"measure":    func(c *Config) { c.Measure = "l1" },
		"init":       func(c *Config) { c.InitType = "bimodal" },
		"data":       func(c *Config) { c.Data = "SVHN" },
		"epochs":     func(c *Config) { c.NumEpochs = 0 },
		"val_size":   func(c *Config) { c.ValSize = -1 },
		"q":          func(c *Config) { c.Q = 0 },
		"lr":         func(c *Config) { c.LR = 0 },
		"device":     func(c *Config) { c.Device = "tpu" },
		"index_list": func(c *Config) { c.Index = IndexSpec{1, 2, 3} },
	} {
		t.Run(name, func(t *testing.T) {
			cfg, err := ParseConfig([]byte(sampleYAML))
			require.NoError(t, err)
			mutate(cfg)
			require.True(t, errors.Is(cfg.Validate(), ErrInvalidConfiguration))
		})
	}
}

func TestApplyOverrides(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleYAML))
	require.NoError(t, err)
	cfg.ApplyOverrides(Overrides{NumEpochs: 5, Measure: "euclidean", LR: 0.1})
	assert.Equal(t, 5, cfg.NumEpochs)
	assert.Equal(t, "euclidean", cfg.Measure)
	assert.Equal(t, 0.1, cfg.LR)
	// untouched
	assert.Equal(t, 2, cfg.BatchSize)
	assert.Equal(t, "gaussian_shift", cfg.InitType)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, measure.Euclidean, cfg.MeasureKind)
}
