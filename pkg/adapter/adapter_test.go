package adapter

import (
	"context"
	"testing"

	"github.com/pulsar-beacon/beacon/pkg/model"
)

func TestMemoryAdapter_ReadUnknownSensorIsAbsentNotError(t *testing.T) {
	m := NewMemoryAdapter()
	m.SeedNumber("temperature", 72, 1000)

	got, err := m.Read(context.Background(), []string{"temperature", "nonexistent"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := got["nonexistent"]; ok {
		t.Fatalf("expected unknown sensor to be absent, not an error")
	}
	if got["temperature"].Value.Number != 72 {
		t.Fatalf("expected temperature=72, got %+v", got["temperature"])
	}
}

func TestMemoryAdapter_WriteThenRead(t *testing.T) {
	m := NewMemoryAdapter()
	err := m.Write(context.Background(), map[string]model.ScalarValue{
		"alert_state": {Kind: model.ScalarString, String: "critical"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := m.Read(context.Background(), []string{"alert_state"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["alert_state"].Value.String != "critical" {
		t.Fatalf("expected round-tripped write, got %+v", got["alert_state"])
	}
}

func TestFaultyAdapter_FailsScheduledCallsThenRecovers(t *testing.T) {
	inner := NewMemoryAdapter()
	inner.SeedNumber("s", 1, 0)
	faulty := NewFaultyAdapter(inner)
	faulty.FailNextReads(2)

	if _, err := faulty.Read(context.Background(), []string{"s"}); err != ErrInjectedFault {
		t.Fatalf("expected first read to fail, got %v", err)
	}
	if _, err := faulty.Read(context.Background(), []string{"s"}); err != ErrInjectedFault {
		t.Fatalf("expected second read to fail, got %v", err)
	}
	if _, err := faulty.Read(context.Background(), []string{"s"}); err != nil {
		t.Fatalf("expected third read to succeed after failure budget exhausted, got %v", err)
	}
}

func TestFaultyAdapter_Unhealthy(t *testing.T) {
	inner := NewMemoryAdapter()
	faulty := NewFaultyAdapter(inner)
	faulty.SetUnhealthy(true)
	if faulty.Healthy(context.Background()) {
		t.Fatalf("expected forced-unhealthy adapter to report unhealthy")
	}
}
