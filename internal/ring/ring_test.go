package ring

import "testing"

func TestManager_BufferBounds(t *testing.T) {
	m := NewManager(3)
	for i := int64(0); i < 10; i++ {
		m.Update(map[string]float64{"temperature": float64(i)}, i*100)
	}
	if size := m.Size("temperature"); size != 3 {
		t.Fatalf("expected capacity-bounded size 3, got %d", size)
	}
	window := m.Window("temperature", 10000, 900)
	if len(window) != 3 {
		t.Fatalf("expected 3 retained samples, got %d", len(window))
	}
	for i := 1; i < len(window); i++ {
		if window[i].TimestampMS < window[i-1].TimestampMS {
			t.Fatalf("timestamps not monotonically non-decreasing: %+v", window)
		}
	}
}

func TestManager_MonotonicityViolationDropped(t *testing.T) {
	m := NewManager(10)
	m.Update(map[string]float64{"x": 1}, 1000)
	m.Update(map[string]float64{"x": 2}, 500) // earlier than last stored

	if m.Size("x") != 1 {
		t.Fatalf("expected out-of-order sample to be dropped, size=%d", m.Size("x"))
	}
	if m.MonotonicityViolations() != 1 {
		t.Fatalf("expected 1 monotonicity violation, got %d", m.MonotonicityViolations())
	}
}

func TestManager_WindowCorrectness(t *testing.T) {
	m := NewManager(100)
	for i := int64(0); i <= 1000; i += 100 {
		m.Update(map[string]float64{"s": float64(i)}, i)
	}

	window := m.Window("s", 300, 1000)
	wantTimestamps := []int64{700, 800, 900, 1000}
	if len(window) != len(wantTimestamps) {
		t.Fatalf("expected %d samples, got %d: %+v", len(wantTimestamps), len(window), window)
	}
	for i, ts := range wantTimestamps {
		if window[i].TimestampMS != ts {
			t.Errorf("window[%d].TimestampMS = %d, want %d", i, window[i].TimestampMS, ts)
		}
	}
}

func TestManager_EmptyWindow(t *testing.T) {
	m := NewManager(10)
	window := m.Window("never-seen", 500, 1000)
	if len(window) != 0 {
		t.Fatalf("expected empty window for unseen sensor, got %+v", window)
	}
}

func TestManager_Clear(t *testing.T) {
	m := NewManager(10)
	m.Update(map[string]float64{"x": 1}, 100)
	m.Clear()
	if m.Size("x") != 0 {
		t.Fatalf("expected empty buffer after Clear")
	}
}

func TestManager_HorizonPruning(t *testing.T) {
	m := NewManager(1000)
	m.RegisterHorizon("temperature", 500)
	for i := int64(0); i <= 2000; i += 100 {
		m.Update(map[string]float64{"temperature": float64(i)}, i)
	}
	// At now=2000 with horizon 500ms, nothing older than 1500ms should remain.
	for _, s := range m.Window("temperature", 10000, 2000) {
		if s.TimestampMS < 1500 {
			t.Fatalf("found sample older than horizon: %+v", s)
		}
	}
}
