// Package attack reconstructs private training images and labels from the
// parameter gradients they produced (Deep Leakage from Gradients).
//
// An Experiment intercepts the gradients of one honest training step once,
// then repeatedly optimizes a dummy batch until the gradients it induces in
// the same classifier match the intercepted ones.
package attack

import (
	"errors"
	"fmt"
	"time"

	"gradleak/autograd"
	"gradleak/dataset"
	"gradleak/measure"
	"gradleak/nn"
	"gradleak/split"
	"gradleak/tensor"
	"gradleak/tracker"
	"gradleak/utils"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/rand"
)

// ErrDeviceUnavailable reports a requested accelerator that cannot be used.
// It is never fatal: the experiment falls back to the CPU.
var ErrDeviceUnavailable = errors.New("device unavailable")

// resolveDevice picks the device the run will use. Only the CPU backend is
// built in.
func resolveDevice(name string) (string, error) {
	switch name {
	case "", "cpu":
		return "cpu", nil
	default:
		return "cpu", fmt.Errorf("%w: %q, no accelerator backend is available", ErrDeviceUnavailable, name)
	}
}

// Experiment holds everything fixed for the lifetime of an attack: the
// classifier, the ground truth it was trained on, the intercepted gradients
// and the measure comparing them. Train can be called repeatedly; History
// and Losses keep growing across calls.
type Experiment struct {
	cfg     *utils.Config
	net     nn.Module
	device  string
	rng     *rand.Rand
	indices []int

	images *tensor.Tensor
	labels []int
	onehot *tensor.Tensor

	original autograd.GradientList
	measure  measure.Measure
	tracker  *tracker.Tracker
	stats    utils.TimingStats

	dummyData  *autograd.Variable
	dummyLabel *autograd.Variable
}

// New validates cfg, draws the ground-truth batch from src and intercepts
// the gradients it produces in net. Configuration errors are reported before
// any data is read or any gradient computed.
func New(cfg *utils.Config, net nn.Module, src dataset.Source, rng *rand.Rand) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	indices, err := dataset.SelectIndices(cfg.Index, cfg.BatchSize, src.Len(), rng)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrInvalidConfiguration, err)
	}
	images, labels, err := dataset.LoadBatch(src, indices, cfg.ImageSize)
	if err != nil {
		return nil, err
	}
	e, err := newExperiment(cfg, net, images, labels, rng)
	if err != nil {
		return nil, err
	}
	e.indices = indices
	e.stats.SetupTime += time.Since(start)
	return e, nil
}

// NewFromBatch builds an experiment around an already prepared ground-truth
// batch of shape [batch_size, C, H, W].
func NewFromBatch(cfg *utils.Config, net nn.Module, images *tensor.Tensor, labels []int, rng *rand.Rand) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	e, err := newExperiment(cfg, net, images, labels, rng)
	if err != nil {
		return nil, err
	}
	e.stats.SetupTime += time.Since(start)
	return e, nil
}

func newExperiment(cfg *utils.Config, net nn.Module, images *tensor.Tensor, labels []int, rng *rand.Rand) (*Experiment, error) {
	if len(images.Shape) != 4 || images.Shape[0] != cfg.BatchSize || len(labels) != cfg.BatchSize {
		return nil, fmt.Errorf("%w: ground truth %v with %d labels does not match batch_size %d",
			utils.ErrInvalidConfiguration, images.Shape, len(labels), cfg.BatchSize)
	}
	device, err := resolveDevice(cfg.Device)
	if err != nil {
		utils.Log.WithError(err).Warn("falling back to cpu")
	}
	utils.Log.WithField("device", device).Info("running")

	onehot, err := nn.LabelToOnehot(labels, cfg.Classes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrInvalidConfiguration, err)
	}
	tr, err := tracker.New(cfg.ValSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrInvalidConfiguration, err)
	}

	e := &Experiment{
		cfg:     cfg,
		net:     net,
		device:  device,
		rng:     rng,
		images:  images,
		labels:  labels,
		onehot:  onehot,
		tracker: tr,
	}

	shared, err := OriginalGradient(net, images, onehot)
	if err != nil {
		return nil, err
	}
	if len(shared) == 0 {
		utils.Log.Warn("classifier has no trainable parameters, nothing will leak")
	}
	if e.original, err = interceptGradients(shared); err != nil {
		return nil, err
	}
	if e.measure, err = measure.New(cfg.MeasureKind, e.original, cfg.Q); err != nil {
		return nil, err
	}
	if g, ok := e.measure.(*measure.GaussianMeasure); ok {
		utils.Log.WithFields(logrus.Fields{"sigma": g.Sigma, "Q": g.Q}).Info("gaussian measure")
	}
	return e, nil
}

// OriginalGradient runs one honest training step of net on the given batch
// and returns the detached gradient of the cross-entropy loss with respect
// to every parameter, in parameter order. The parameters' own Grad fields
// are left untouched.
func OriginalGradient(net nn.Module, images, onehot *tensor.Tensor) (autograd.GradientList, error) {
	pred, err := net.Forward(autograd.Constant(images))
	if err != nil {
		return nil, fmt.Errorf("original forward: %w", err)
	}
	loss, err := nn.CrossEntropyForOnehot(pred, autograd.Constant(onehot))
	if err != nil {
		return nil, err
	}
	grads, err := autograd.Grad(loss, net.Parameters(), false)
	if err != nil {
		return nil, fmt.Errorf("original gradient: %w", err)
	}
	return grads, nil
}

// interceptGradients relays the participant's update through the exchange
// protocol; what comes out is the attacker's private copy.
func interceptGradients(grads autograd.GradientList) (autograd.GradientList, error) {
	received, err := split.Intercept(0, grads.Tensors())
	if err != nil {
		return nil, fmt.Errorf("intercept gradients: %w", err)
	}
	out := make(autograd.GradientList, len(received))
	for i, t := range received {
		out[i] = autograd.Constant(t)
	}
	return out, nil
}

// Config returns the validated configuration.
func (e *Experiment) Config() *utils.Config { return e.cfg }

// Device is the device the run executes on after fallback.
func (e *Experiment) Device() string { return e.device }

// Indices lists the dataset entries of the ground-truth batch, nil when the
// batch was supplied directly.
func (e *Experiment) Indices() []int { return e.indices }

// GroundTruth returns the private batch and its labels.
func (e *Experiment) GroundTruth() (*tensor.Tensor, []int) { return e.images, e.labels }

// OriginalGradients returns the intercepted gradients.
func (e *Experiment) OriginalGradients() autograd.GradientList { return e.original }

// Measure returns the configured gradient measure.
func (e *Experiment) Measure() measure.Measure { return e.measure }

// History returns every snapshot recorded so far, across runs.
func (e *Experiment) History() []tracker.Snapshot { return e.tracker.History() }

// Losses returns the PSNR, SSIM and MSE series of every finished run.
func (e *Experiment) Losses() tracker.Losses { return e.tracker.Losses() }

// Tracker exposes the convergence record.
func (e *Experiment) Tracker() *tracker.Tracker { return e.tracker }

// DummyData is the reconstructed batch of the latest run.
func (e *Experiment) DummyData() *autograd.Variable { return e.dummyData }

// DummyLabel holds the label logits of the latest run.
func (e *Experiment) DummyLabel() *autograd.Variable { return e.dummyLabel }

// RecoveredLabels is the most probable class of every dummy label.
func (e *Experiment) RecoveredLabels() []int {
	if e.dummyLabel == nil {
		return nil
	}
	return nn.RecoveredLabels(e.dummyLabel.Value)
}

// Stats returns the accumulated timing statistics.
func (e *Experiment) Stats() *utils.TimingStats { return &e.stats }
