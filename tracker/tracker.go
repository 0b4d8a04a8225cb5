// Package tracker keeps the convergence record of reconstruction runs: image
// snapshots and per-run quality series. It never touches training state.
package tracker

import (
	"fmt"
	"image"

	"gradleak/metrics"

	"golang.org/x/exp/slices"
)

// Snapshot is the dummy batch as it looked after a recorded epoch.
type Snapshot struct {
	Run    int
	Epoch  int
	Loss   float64
	Images []image.Image
}

// Losses holds one series per run for each quality metric. Series of
// successive runs are appended, never replaced.
type Losses struct {
	PSNR [][]float64
	SSIM [][]float64
	MSE  [][]float64
}

// Runs reports how many completed runs have been recorded.
func (l Losses) Runs() int { return len(l.PSNR) }

// Tracker decides which epochs are sampled and accumulates what they show.
type Tracker struct {
	interval int

	history []Snapshot
	losses  Losses

	run     int
	open    bool
	current struct{ psnr, ssim, mse []float64 }
}

// New returns a tracker sampling every interval epochs, starting at epoch 0.
func New(interval int) (*Tracker, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("tracker: snapshot interval must be positive, got %d", interval)
	}
	return &Tracker{interval: interval}, nil
}

// Interval is the snapshot spacing in epochs.
func (t *Tracker) Interval() int { return t.interval }

// Due reports whether epoch is a snapshot epoch.
func (t *Tracker) Due(epoch int) bool { return epoch%t.interval == 0 }

// Expected is the number of snapshots a run of numEpochs produces.
func (t *Tracker) Expected(numEpochs int) int {
	if numEpochs <= 0 {
		return 0
	}
	return (numEpochs + t.interval - 1) / t.interval
}

// BeginRun opens a new per-run series. A run left open is closed first.
func (t *Tracker) BeginRun() {
	if t.open {
		t.EndRun()
	}
	t.open = true
	t.current.psnr = []float64{}
	t.current.ssim = []float64{}
	t.current.mse = []float64{}
}

// Record appends a snapshot and its scores to the open run.
func (t *Tracker) Record(epoch int, loss float64, images []image.Image, s metrics.Scores) {
	if !t.open {
		t.BeginRun()
	}
	t.history = append(t.history, Snapshot{Run: t.run, Epoch: epoch, Loss: loss, Images: images})
	t.current.psnr = append(t.current.psnr, s.PSNR)
	t.current.ssim = append(t.current.ssim, s.SSIM)
	t.current.mse = append(t.current.mse, s.MSE)
}

// EndRun publishes the open run's series into Losses. It is a no-op when no
// run is open.
func (t *Tracker) EndRun() {
	if !t.open {
		return
	}
	t.losses.PSNR = append(t.losses.PSNR, t.current.psnr)
	t.losses.SSIM = append(t.losses.SSIM, t.current.ssim)
	t.losses.MSE = append(t.losses.MSE, t.current.mse)
	t.open = false
	t.run++
}

// History returns a copy of every snapshot recorded so far, across runs.
func (t *Tracker) History() []Snapshot {
	out := slices.Clone(t.history)
	for i := range out {
		out[i].Images = slices.Clone(out[i].Images)
	}
	return out
}

// Losses returns a copy of the per-run metric series of every closed run.
func (t *Tracker) Losses() Losses {
	return Losses{
		PSNR: cloneSeries(t.losses.PSNR),
		SSIM: cloneSeries(t.losses.SSIM),
		MSE:  cloneSeries(t.losses.MSE),
	}
}

func cloneSeries(runs [][]float64) [][]float64 {
	out := make([][]float64, len(runs))
	for i, r := range runs {
		out[i] = slices.Clone(r)
	}
	return out
}

// RunHistory returns the snapshots of a single run.
func (t *Tracker) RunHistory(run int) []Snapshot {
	var out []Snapshot
	for _, s := range t.history {
		if s.Run == run {
			s.Images = slices.Clone(s.Images)
			out = append(out, s)
		}
	}
	return out
}
