package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewTimer(t *testing.T) {
	timer := NewTimer()
	if timer == nil {
		t.Fatal("NewTimer() returned nil")
	}
	if timer.start.IsZero() {
		t.Error("NewTimer() start time is zero")
	}
	if time.Since(timer.start) > time.Second {
		t.Error("NewTimer() start time is not recent")
	}
}

func TestTimerDuration(t *testing.T) {
	timer := NewTimer()
	const sleep = 100 * time.Millisecond
	time.Sleep(sleep)

	duration := timer.Duration()
	if duration < sleep {
		t.Errorf("Duration() = %v, want >= %v", duration, sleep)
	}
	if duration > 2*sleep {
		t.Errorf("Duration() = %v, want < %v", duration, 2*sleep)
	}
}

func TestTimerObserveDuration(t *testing.T) {
	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_duration_seconds",
		Help:    "test duration histogram",
		Buckets: prometheus.DefBuckets,
	})

	timer := NewTimer()
	time.Sleep(50 * time.Millisecond)
	timer.ObserveDuration(histogram)

	if timer.Duration() == 0 {
		t.Error("ObserveDuration() left a zero elapsed duration")
	}
}

func TestTimerObserveDurationVec(t *testing.T) {
	histogramVec := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "test_duration_vec_seconds",
			Help:    "test duration histogram vec",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	timer := NewTimer()
	time.Sleep(50 * time.Millisecond)
	timer.ObserveDurationVec(histogramVec, "test_operation")

	if timer.Duration() == 0 {
		t.Error("ObserveDurationVec() left a zero elapsed duration")
	}
}

func TestTimerDurationIsMonotonic(t *testing.T) {
	timer := NewTimer()

	var last time.Duration
	for i := 0; i < 5; i++ {
		time.Sleep(10 * time.Millisecond)
		cur := timer.Duration()
		if cur <= last {
			t.Errorf("iteration %d: Duration() not increasing: last=%v, current=%v", i, last, cur)
		}
		last = cur
	}
}

func TestTimerZeroDuration(t *testing.T) {
	timer := NewTimer()
	duration := timer.Duration()
	if duration < 0 {
		t.Errorf("Duration() = %v, want >= 0", duration)
	}
	if duration > time.Millisecond {
		t.Errorf("Duration() = %v, want < 1ms for an immediate call", duration)
	}
}

func TestMultipleTimersAreIndependent(t *testing.T) {
	timer1 := NewTimer()
	time.Sleep(50 * time.Millisecond)
	timer2 := NewTimer()
	time.Sleep(50 * time.Millisecond)

	d1, d2 := timer1.Duration(), timer2.Duration()
	if d1 <= d2 {
		t.Errorf("timer1 should have a longer elapsed duration: timer1=%v, timer2=%v", d1, d2)
	}
	if d1 == 0 || d2 == 0 {
		t.Error("both timers should report a non-zero duration")
	}
}
