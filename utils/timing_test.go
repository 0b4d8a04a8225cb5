package utils

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"
)

func TestDurationUS(t *testing.T) {
	d := 1234*time.Microsecond + 567*time.Nanosecond
	got := DurationUS(d)
	if math.Abs(got-1234.567) > 0.001 {
		t.Fatalf("want 1234.567µs, got %.3f", got)
	}
}

func TestTimingStatsAdd(t *testing.T) {
	a := &TimingStats{ForwardTime: time.Second, Evaluations: 3}
	a.Add(&TimingStats{ForwardTime: 2 * time.Second, MeasureTime: time.Millisecond, Evaluations: 4})
	if a.ForwardTime != 3*time.Second || a.MeasureTime != time.Millisecond || a.Evaluations != 7 {
		t.Fatalf("unexpected sum %+v", a)
	}
}

func TestPrintTimingStatsRespectsVerbose(t *testing.T) {
	var buf bytes.Buffer
	prev := Log.Out
	SetOutput(&buf)
	defer SetOutput(prev)
	defer SetVerbose(true)

	stats := &TimingStats{TotalTime: time.Second, ForwardTime: 500 * time.Millisecond, Evaluations: 2}
	SetVerbose(false)
	PrintTimingStats(stats, 4)
	if buf.Len() != 0 {
		t.Fatalf("expected no output when not verbose, got %q", buf.String())
	}

	SetVerbose(true)
	PrintTimingStats(stats, 4)
	out := buf.String()
	if !strings.Contains(out, "timing statistics") || !strings.Contains(out, "phase=forward") {
		t.Fatalf("missing timing lines in %q", out)
	}

	// zero totals must not divide by zero
	PrintTimingStats(&TimingStats{}, 0)
}
