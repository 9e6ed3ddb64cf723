// Command beacon is a thin composition root: it wires system config,
// a data-store adapter, and a compiled plan into a running cycle
// orchestrator, and exposes the orchestrator's health/status/metrics
// over HTTP. It is not the rule-authoring CLI named as out of scope
// in spec.md §1 — there is no flag parsing and no rule-set file I/O
// here; the example plan below stands in for what pulsarc would
// normally hand it.
//
// Grounded on cmd/betrace-backend/main.go's wiring and
// graceful-shutdown-signal style, trimmed of its HTTP API surface
// (violations/rules/spans handlers) down to the health/status/metrics
// endpoints this process actually needs.
package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pulsar-beacon/beacon/internal/clock"
	"github.com/pulsar-beacon/beacon/internal/config"
	"github.com/pulsar-beacon/beacon/internal/layer"
	"github.com/pulsar-beacon/beacon/internal/observability"
	"github.com/pulsar-beacon/beacon/internal/orchestrator"
	"github.com/pulsar-beacon/beacon/internal/plan"
	"github.com/pulsar-beacon/beacon/internal/ring"
	"github.com/pulsar-beacon/beacon/pkg/adapter"
	"github.com/pulsar-beacon/beacon/pkg/model"
)

var orch *orchestrator.Orchestrator

func main() {
	cfgPath := getEnv("BEACON_CONFIG_FILE", "")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	shutdown, err := observability.InitTracing("beacon", version)
	if err != nil {
		log.Printf("warning: tracing init failed: %v", err)
	} else {
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Printf("error shutting down tracer: %v", err)
			}
		}()
	}

	store := adapter.NewMemoryAdapter()
	seedExampleReadings(store)

	p, sensors := buildExamplePlan()

	buf := ring.NewManager(cfg.Sensors.BufferCapacity)
	sink := observability.NewMessageSink(64, func(m plan.Message) {
		log.Printf("message[%s]: %s", m.Channel, m.Text)
	})

	orch = orchestrator.New(sensors, cfg.Sensors.CyclePeriod(), cfg.Orchestrator, store, p, buf, clock.Real{}, sink)

	ctx := context.Background()
	if err := orch.Start(ctx); err != nil {
		log.Fatalf("orchestrator start: %v", err)
	}
	log.Println("orchestrator running")

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /status", handleStatus)
	mux.Handle("GET /metrics", observability.MetricsHandler())

	port := getEnv("PORT", "8090")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("beacon %s listening on http://localhost:%s", version, port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-stop
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Orchestrator.ShutdownGrace()+5*time.Second)
	defer cancel()

	if err := orch.Stop(shutdownCtx); err != nil {
		log.Printf("orchestrator stop error: %v", err)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("http server shutdown error: %v", err)
	}
	log.Println("stopped")
}

var version = "dev"

// buildExamplePlan compiles the Fahrenheit→Celsius rule from spec.md
// §8 S1, standing in for a plan pulsarc would normally hand this
// process. Wiring a real rule-set document through pkg/ruleset is the
// CLI front-end's job.
func buildExamplePlan() (*plan.Plan, []string) {
	rule := model.Rule{
		Name:      "f_to_c",
		Condition: &model.Comparison{Sensor: "temperature_f", Operator: model.OpGT, Value: 100},
		Actions: []model.Action{&model.SetValue{
			Key:             "temperature_c",
			ValueExpression: "(temperature_f - 32) * 5 / 9",
		}},
	}
	cs, err := layer.Build([]model.Rule{rule})
	if err != nil {
		log.Fatalf("layer.Build: %v", err)
	}
	p, err := plan.Build(cs)
	if err != nil {
		log.Fatalf("plan.Build: %v", err)
	}
	return p, []string{"temperature_f"}
}

func seedExampleReadings(store *adapter.MemoryAdapter) {
	store.SeedNumber("temperature_f", 212, 0)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

func handleStatus(w http.ResponseWriter, r *http.Request) {
	status := orch.Status()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"state":          status.State.String(),
		"last_cycle_ms":  status.LastCycleMS,
		"skipped_cycles": status.SkippedCycles,
		"overrun_cycles": status.OverrunCycles,
	})
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
