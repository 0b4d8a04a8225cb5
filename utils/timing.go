package utils

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Verbose controls whether timing statistics are printed.
// Set to false to suppress output.
var Verbose = true

// TimingStats holds timing information for the phases of a reconstruction
type TimingStats struct {
	TotalTime     time.Duration
	SetupTime     time.Duration
	ForwardTime   time.Duration
	InnerGradTime time.Duration
	MeasureTime   time.Duration
	OuterGradTime time.Duration
	OptimizerTime time.Duration
	SnapshotTime  time.Duration
	// Evaluations counts objective evaluations, line-search trials included.
	Evaluations int
}

// Add accumulates other into s.
func (s *TimingStats) Add(other *TimingStats) {
	s.TotalTime += other.TotalTime
	s.SetupTime += other.SetupTime
	s.ForwardTime += other.ForwardTime
	s.InnerGradTime += other.InnerGradTime
	s.MeasureTime += other.MeasureTime
	s.OuterGradTime += other.OuterGradTime
	s.OptimizerTime += other.OptimizerTime
	s.SnapshotTime += other.SnapshotTime
	s.Evaluations += other.Evaluations
}

func percent(part, whole time.Duration) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

// PrintTimingStats logs detailed timing statistics.
// Respects the Verbose flag - does nothing if Verbose is false.
func PrintTimingStats(stats *TimingStats, epochs int) {
	if !Verbose {
		return
	}
	avg := time.Duration(0)
	if epochs > 0 {
		avg = stats.TotalTime / time.Duration(epochs)
	}
	Log.WithFields(logrus.Fields{
		"total":       stats.TotalTime,
		"per_epoch":   avg,
		"epochs":      epochs,
		"evaluations": stats.Evaluations,
	}).Info("timing statistics")
	for _, phase := range []struct {
		name string
		d    time.Duration
	}{
		{"setup", stats.SetupTime},
		{"forward", stats.ForwardTime},
		{"inner_grad", stats.InnerGradTime},
		{"measure", stats.MeasureTime},
		{"outer_grad", stats.OuterGradTime},
		{"optimizer", stats.OptimizerTime},
		{"snapshot", stats.SnapshotTime},
	} {
		Log.WithFields(logrus.Fields{
			"phase":   phase.name,
			"time":    phase.d,
			"percent": percent(phase.d, stats.TotalTime),
		}).Info("timing breakdown")
	}
	if stats.Evaluations > 0 {
		Log.WithField("avg_evaluation_us", DurationUS(
			(stats.ForwardTime+stats.InnerGradTime+stats.MeasureTime+stats.OuterGradTime)/time.Duration(stats.Evaluations),
		)).Info("objective cost")
	}
}

// DurationUS converts any time.Duration to micro-seconds as float64
func DurationUS(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1_000.0
}
