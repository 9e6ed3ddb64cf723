// Package config holds the system-config document (spec.md §6):
// the sensor namespace, cycle timing, and buffer sizing the cycle
// orchestrator needs at startup, plus the orchestrator's own tuning
// knobs (fault backoff, shutdown grace) that the wire format leaves
// implementation-defined.
//
// Grounded on the teacher's internal/config/config.go: same
// viper.New → setDefaults → ReadInConfig → env-override → Unmarshal
// pipeline, narrowed from the teacher's HTTP/gRPC/storage/limits
// surface to the orchestrator's actual inputs.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the fully-resolved system configuration (spec.md §6
// system-config document, plus orchestrator tuning not named in the
// wire format).
type Config struct {
	Sensors      SensorConfig       `mapstructure:"sensors"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
}

// SensorConfig mirrors the system-config document's top-level
// fields directly: version, valid_sensors, cycle_time_ms,
// buffer_capacity (spec.md §6).
type SensorConfig struct {
	Version        int      `mapstructure:"version"`
	ValidSensors   []string `mapstructure:"valid_sensors"`
	CycleTimeMS    int      `mapstructure:"cycle_time_ms"`   // default 100
	BufferCapacity int      `mapstructure:"buffer_capacity"` // default 100
}

// OrchestratorConfig holds the fault/deadline tuning spec.md §4.H
// requires ("base delay and max attempts configured") but the
// system-config document doesn't name a wire shape for.
type OrchestratorConfig struct {
	BackoffBaseMS      int `mapstructure:"backoff_base_ms"`       // default 50
	MaxFaultRetries    int `mapstructure:"max_fault_retries"`     // default 3
	ShutdownGraceMS    int `mapstructure:"shutdown_grace_ms"`     // default 2000
	OverrunWarnEveryMS int `mapstructure:"overrun_warn_every_ms"` // default 60000 (spec.md §4.H: once per minute)
}

func (s SensorConfig) CyclePeriod() time.Duration {
	return time.Duration(s.CycleTimeMS) * time.Millisecond
}

func (o OrchestratorConfig) BackoffBase() time.Duration {
	return time.Duration(o.BackoffBaseMS) * time.Millisecond
}

func (o OrchestratorConfig) ShutdownGrace() time.Duration {
	return time.Duration(o.ShutdownGraceMS) * time.Millisecond
}

func (o OrchestratorConfig) OverrunWarnPeriod() time.Duration {
	return time.Duration(o.OverrunWarnEveryMS) * time.Millisecond
}

// Load reads configuration from an optional config file plus
// environment variables. Priority: env vars > config file > defaults.
// This is the only place in the module that touches viper's file
// loader; cmd/beacon is the sole caller.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// BEACON_SENSORS_CYCLE_TIME_MS, BEACON_ORCHESTRATOR_MAX_FAULT_RETRIES, etc.
	v.SetEnvPrefix("BEACON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("sensors.version", 1)
	v.SetDefault("sensors.cycle_time_ms", 100)
	v.SetDefault("sensors.buffer_capacity", 100)

	v.SetDefault("orchestrator.backoff_base_ms", 50)
	v.SetDefault("orchestrator.max_fault_retries", 3)
	v.SetDefault("orchestrator.shutdown_grace_ms", 2000)
	v.SetDefault("orchestrator.overrun_warn_every_ms", 60000)
}
