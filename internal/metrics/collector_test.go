package metrics

import (
	"testing"
	"time"
)

func TestCollector_Counts(t *testing.T) {
	c := NewCollector("test", "lo")

	c.RunCompleted()
	c.RunCompleted()
	c.RunFailed()

	s := c.Summary()
	if s.Completed != 2 {
		t.Errorf("Completed = %d, want 2", s.Completed)
	}
	if s.Failed != 1 {
		t.Errorf("Failed = %d, want 1", s.Failed)
	}
	if s.Elapsed <= 0 {
		t.Error("Elapsed should be positive")
	}
}

func TestCollector_UptimePercentiles(t *testing.T) {
	c := NewCollector("test", "lo")

	for i := 1; i <= 100; i++ {
		c.RecordUptime(time.Duration(i) * time.Second)
	}

	s := c.Summary()
	if s.UptimeP50 <= 0 {
		t.Fatal("p50 should be populated")
	}
	if s.UptimeP50 > s.UptimeP95 || s.UptimeP95 > s.UptimeP99 {
		t.Errorf("percentiles out of order: p50=%v p95=%v p99=%v",
			s.UptimeP50, s.UptimeP95, s.UptimeP99)
	}

	// p50 of 1..100 seconds should land near 50s.
	if s.UptimeP50 < 40*time.Second || s.UptimeP50 > 60*time.Second {
		t.Errorf("p50 = %v, want ~50s", s.UptimeP50)
	}
}

func TestCollector_NoSamples(t *testing.T) {
	c := NewCollector("test", "lo")

	s := c.Summary()
	if s.UptimeP50 != 0 || s.UptimeP95 != 0 || s.UptimeP99 != 0 {
		t.Errorf("percentiles without samples should be zero: %+v", s)
	}
}

func TestCollector_GaugesDoNotPanic(t *testing.T) {
	// Multiple collectors in one process must not double-register.
	c := NewCollector("test", "lo")
	c2 := NewCollector("test2", "lo")

	c.RunStarted("baseline", 1)
	c.ProcessStarted("server")
	c.ProcessStarted("client")
	c.SetActiveProcesses(5)
	c.SetBatchProgress(0.5)
	c.RecordCapture(1024, 10)
	c2.RunStarted("loss_2pct", 2)
}
