package attack

import (
	"fmt"
	"time"

	"gradleak/autograd"
	"gradleak/dataset"
	"gradleak/dummy"
	"gradleak/metrics"
	"gradleak/tensor"
	"gradleak/utils"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/optimize"
)

// Train draws a fresh dummy batch and label with the configured initializer
// and reconstructs from it.
func (e *Experiment) Train() error {
	data, label, err := dummy.Init(e.images.Shape, e.onehot.Shape, e.cfg.InitDist, e.rng)
	if err != nil {
		return fmt.Errorf("%w: %v", utils.ErrInvalidConfiguration, err)
	}
	return e.TrainWith(data, label)
}

// TrainWith reconstructs starting from the given dummy batch and label
// logits, which are updated in place. Every val_size epochs, epoch 0
// included, the current batch is recorded and scored against the first
// ground-truth image. The series of the run are published to Losses even
// when an epoch fails.
func (e *Experiment) TrainWith(data, label *autograd.Variable) error {
	if !tensor.SameShape(data.Value, e.images) || !tensor.SameShape(label.Value, e.onehot) {
		return fmt.Errorf("dummy shapes %v/%v, want %v/%v", data.Shape(), label.Shape(), e.images.Shape, e.onehot.Shape)
	}
	e.dummyData, e.dummyLabel = data, label

	e.tracker.BeginRun()
	defer e.tracker.EndRun()

	start := time.Now()
	defer func() { e.stats.TotalTime += time.Since(start) }()

	obj := newObjective(e.net, e.measure, e.original, data, label, &e.stats)
	opt := newLBFGS(e.cfg.LR, e.cfg.MaxIter, e.cfg.HistorySize)
	x := obj.point()
	for epoch := 0; epoch < e.cfg.NumEpochs; epoch++ {
		var err error
		if x, err = e.step(obj, opt, x); err != nil {
			return fmt.Errorf("epoch %d: %w", epoch, err)
		}
		if e.tracker.Due(epoch) {
			if err := e.snapshot(obj, x, epoch); err != nil {
				return fmt.Errorf("snapshot at epoch %d: %w", epoch, err)
			}
		}
	}

	utils.Log.WithFields(logrus.Fields{
		"recovered": e.RecoveredLabels(),
		"truth":     e.labels,
	}).Info("labels")
	return nil
}

// step runs one optimizer step of at most max_iter quasi-Newton iterations
// and leaves the dummy variables at the point it reached. opt carries its
// curvature history from one step to the next.
func (e *Experiment) step(obj *objective, opt *lbfgs, x []float64) ([]float64, error) {
	start := time.Now()
	before := e.evaluationTime()
	defer func() {
		if overhead := time.Since(start) - (e.evaluationTime() - before); overhead > 0 {
			e.stats.OptimizerTime += overhead
		}
	}()

	obj.err = nil
	settings := &optimize.Settings{Converger: optimize.NeverTerminate{}}
	_, err := optimize.Minimize(obj.problem(), x, settings, opt)
	if obj.err != nil {
		return nil, obj.err
	}
	if err != nil {
		return nil, err
	}
	x = opt.Point()
	obj.load(x)
	return x, nil
}

func (e *Experiment) evaluationTime() time.Duration {
	return e.stats.ForwardTime + e.stats.InnerGradTime + e.stats.MeasureTime + e.stats.OuterGradTime
}

// snapshot re-evaluates the objective at x for the reported loss and records
// the dummy batch with its scores.
func (e *Experiment) snapshot(obj *objective, x []float64, epoch int) error {
	obj.invalidate()
	loss, _, err := obj.evaluate(x)
	if err != nil {
		return err
	}

	start := time.Now()
	defer func() { e.stats.SnapshotTime += time.Since(start) }()

	images, err := dataset.BatchToImages(e.dummyData.Value)
	if err != nil {
		return err
	}
	scores, err := metrics.Compare(firstImage(e.images), firstImage(e.dummyData.Value))
	if err != nil {
		return err
	}
	e.tracker.Record(epoch, loss, images, scores)
	utils.Log.WithFields(logrus.Fields{
		"epoch": epoch,
		"loss":  fmt.Sprintf("%.10f", loss),
		"psnr":  scores.PSNR,
		"ssim":  scores.SSIM,
		"mse":   scores.MSE,
	}).Info("snapshot")
	return nil
}

// firstImage views image 0 of a [N, C, H, W] batch as [C, H, W].
func firstImage(batch *tensor.Tensor) *tensor.Tensor {
	shape := batch.Shape[1:]
	return &tensor.Tensor{Data: batch.Data[:tensor.Size(shape)], Shape: shape}
}
