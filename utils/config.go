package utils

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gradleak/dataset"
	"gradleak/dummy"
	"gradleak/measure"
	"gradleak/metrics"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfiguration tags every configuration problem.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// IndexSpec is the ground-truth selection: a single entry or a list.
type IndexSpec []int

// UnmarshalYAML accepts either an integer or a sequence of integers.
func (s *IndexSpec) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var i int
		if err := value.Decode(&i); err != nil {
			return fmt.Errorf("index: %w", err)
		}
		*s = IndexSpec{i}
	case yaml.SequenceNode:
		var list []int
		if err := value.Decode(&list); err != nil {
			return fmt.Errorf("index: %w", err)
		}
		*s = list
	default:
		return fmt.Errorf("index: expected an integer or a list, line %d", value.Line)
	}
	return nil
}

// Config holds the attack configuration
type Config struct {
	NumEpochs int       `yaml:"num_epochs"`
	BatchSize int       `yaml:"batch_size"`
	Measure   string    `yaml:"measure"`
	Data      string    `yaml:"data"`
	DataRoot  string    `yaml:"data_root"`
	Index     IndexSpec `yaml:"index"`
	InitType  string    `yaml:"init_type"`
	Q         float64   `yaml:"Q"`
	ValSize   int       `yaml:"val_size"`
	NImages   int       `yaml:"n_images"`
	LR        float64   `yaml:"lr"`

	Seed        uint64 `yaml:"seed"`
	MaxIter     int    `yaml:"max_iter"`
	HistorySize int    `yaml:"history_size"`
	Device      string `yaml:"device"`
	Classes     int    `yaml:"classes"`
	ImageSize   int    `yaml:"image_size"`
	Width       int    `yaml:"width"`
	Weights     string `yaml:"weights"`

	// Resolved by Validate.
	MeasureKind measure.Kind       `yaml:"-"`
	InitDist    dummy.Distribution `yaml:"-"`
	DataKind    dataset.Kind       `yaml:"-"`
}

// DefaultConfig fills the optional fields only; the attack parameters
// themselves have no defaults.
func DefaultConfig() Config {
	return Config{
		MaxIter:     20,
		HistorySize: 100,
		Device:      "cpu",
		Classes:     100,
		ImageSize:   32,
		Width:       12,
	}
}

// LoadConfig reads a YAML file over DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(raw)
}

// ParseConfig decodes YAML over DefaultConfig. Unknown keys are rejected.
func ParseConfig(raw []byte) (*Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	return &cfg, nil
}

// Overrides are command-line values; zero values leave the config untouched.
type Overrides struct {
	NumEpochs int
	BatchSize int
	Measure   string
	Data      string
	DataRoot  string
	InitType  string
	Q         float64
	ValSize   int
	LR        float64
	Seed      uint64
	Device    string
	Weights   string
}

// ApplyOverrides copies every non-zero override into c.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.NumEpochs != 0 {
		c.NumEpochs = o.NumEpochs
	}
	if o.BatchSize != 0 {
		c.BatchSize = o.BatchSize
	}
	if o.Measure != "" {
		c.Measure = o.Measure
	}
	if o.Data != "" {
		c.Data = o.Data
	}
	if o.DataRoot != "" {
		c.DataRoot = o.DataRoot
	}
	if o.InitType != "" {
		c.InitType = o.InitType
	}
	if o.Q != 0 {
		c.Q = o.Q
	}
	if o.ValSize != 0 {
		c.ValSize = o.ValSize
	}
	if o.LR != 0 {
		c.LR = o.LR
	}
	if o.Seed != 0 {
		c.Seed = o.Seed
	}
	if o.Device != "" {
		c.Device = o.Device
	}
	if o.Weights != "" {
		c.Weights = o.Weights
	}
}

// Validate checks every field and resolves the enum names. All problems are
// reported together, wrapped in ErrInvalidConfiguration.
func (c *Config) Validate() error {
	var problems []string
	bad := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.NumEpochs <= 0 {
		bad("num_epochs must be positive, got %d", c.NumEpochs)
	}
	if c.BatchSize <= 0 {
		bad("batch_size must be positive, got %d", c.BatchSize)
	}
	if c.ValSize <= 0 {
		bad("val_size must be positive, got %d", c.ValSize)
	}
	if c.Q <= 0 {
		bad("Q must be positive, got %g", c.Q)
	}
	if c.LR <= 0 {
		bad("lr must be positive, got %g", c.LR)
	}
	if c.NImages < 0 {
		bad("n_images must not be negative, got %d", c.NImages)
	}
	if c.MaxIter <= 0 {
		bad("max_iter must be positive, got %d", c.MaxIter)
	}
	if c.HistorySize <= 0 {
		bad("history_size must be positive, got %d", c.HistorySize)
	}
	if c.Classes <= 0 || c.Width <= 0 {
		bad("classes and width must be positive")
	}
	if c.ImageSize < metrics.WindowSize {
		bad("image_size must be at least %d, got %d", metrics.WindowSize, c.ImageSize)
	}
	if c.Device != "cpu" && c.Device != "cuda" {
		bad("device must be 'cpu' or 'cuda', got %q", c.Device)
	}
	if len(c.Index) > 1 && len(c.Index) != c.BatchSize {
		bad("index lists %d entries for batch_size %d", len(c.Index), c.BatchSize)
	}

	var err error
	if c.MeasureKind, err = measure.ParseKind(c.Measure); err != nil {
		bad("%v", err)
	}
	if c.InitDist, err = dummy.ParseDistribution(c.InitType); err != nil {
		bad("%v", err)
	}
	if c.DataKind, err = dataset.ParseKind(c.Data); err != nil {
		bad("%v", err)
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfiguration, strings.Join(problems, "; "))
	}
	return nil
}
