package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Sensors.CycleTimeMS != 100 {
		t.Errorf("expected default cycle_time_ms 100, got %d", cfg.Sensors.CycleTimeMS)
	}
	if cfg.Sensors.BufferCapacity != 100 {
		t.Errorf("expected default buffer_capacity 100, got %d", cfg.Sensors.BufferCapacity)
	}
	if cfg.Orchestrator.MaxFaultRetries != 3 {
		t.Errorf("expected default max_fault_retries 3, got %d", cfg.Orchestrator.MaxFaultRetries)
	}
	if cfg.Sensors.CyclePeriod() != 100*time.Millisecond {
		t.Errorf("expected CyclePeriod 100ms, got %v", cfg.Sensors.CyclePeriod())
	}
	if cfg.Orchestrator.OverrunWarnPeriod() != time.Minute {
		t.Errorf("expected OverrunWarnPeriod 1m, got %v", cfg.Orchestrator.OverrunWarnPeriod())
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("BEACON_SENSORS_CYCLE_TIME_MS", "250")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Sensors.CycleTimeMS != 250 {
		t.Errorf("expected env override to set cycle_time_ms 250, got %d", cfg.Sensors.CycleTimeMS)
	}
}
