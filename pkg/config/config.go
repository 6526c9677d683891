// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/user/decodebench/pkg/driver"
	"github.com/user/decodebench/pkg/harness"
	"gopkg.in/yaml.v3"
)

// Config represents the full configuration for a decodebench run.
type Config struct {
	// Input
	Videos string `yaml:"videos"`

	// Concurrency
	Instances    int `yaml:"instances"`
	InFlight     int `yaml:"in_flight"`
	PlayThroughs int `yaml:"play_throughs"`

	// Lifecycle
	ResetPoint          string `yaml:"reset_point"`
	DestroyAt           string `yaml:"destroy_at"`
	DestroyAfterDecodes int    `yaml:"destroy_after_decodes"`

	// Rendering
	RenderingFPS         int  `yaml:"rendering_fps"`
	DisableRendering     bool `yaml:"disable_rendering"`
	Thumbnails           bool `yaml:"thumbnails"`
	DelayReuseAfterFrame int  `yaml:"delay_reuse_after_frame"`

	// Decode backend
	DecodeLatencyMs  int `yaml:"decode_latency_ms"`
	PlatformCapacity int `yaml:"platform_capacity"`

	// Output
	FrameDeliveryLog string `yaml:"frame_delivery_log"`
	PageDumpDir      string `yaml:"page_dump_dir"`

	// Run control
	WaitTimeoutMs int `yaml:"wait_timeout_ms"`

	// Logging
	LogLevel string `yaml:"log_level"`
	Quiet    bool   `yaml:"quiet"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	return Config{
		Instances:    1,
		InFlight:     8,
		PlayThroughs: 1,

		ResetPoint: "end",

		RenderingFPS: 60,

		DecodeLatencyMs: 2,

		WaitTimeoutMs: 30000,

		LogLevel: "info",
	}
}

// LoadFromFile loads configuration from a YAML file over the defaults.
func LoadFromFile(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// ResetPointValue maps the textual reset point to the driver's constant.
func (c Config) ResetPointValue() (int, error) {
	switch c.ResetPoint {
	case "", "end":
		return driver.EndOfStreamReset, nil
	case "mid":
		return driver.MidStreamReset, nil
	case "start":
		return driver.StartOfStreamReset, nil
	}
	return 0, fmt.Errorf("unknown reset point %q (want end, mid or start)", c.ResetPoint)
}

// DestroyAtValue maps the textual teardown point to a driver state. Empty
// means the normal end of the lifecycle.
func (c Config) DestroyAtValue() (driver.State, error) {
	switch c.DestroyAt {
	case "":
		return 0, nil
	case "bound":
		return driver.StateDecoderBound, nil
	case "initialized":
		return driver.StateInitialized, nil
	case "flushing":
		return driver.StateFlushing, nil
	case "flushed":
		return driver.StateFlushed, nil
	case "resetting":
		return driver.StateResetting, nil
	case "reset":
		return driver.StateReset, nil
	}
	return 0, fmt.Errorf("unknown destroy point %q", c.DestroyAt)
}

// DecodeLatency returns the simulated per-unit decode time.
func (c Config) DecodeLatency() time.Duration {
	return time.Duration(c.DecodeLatencyMs) * time.Millisecond
}

// ToHarnessOptions converts Config to harness.Options. The caller supplies
// the loaded videos, the decoder factory and the presenter.
func (c Config) ToHarnessOptions() (harness.Options, error) {
	resetPoint, err := c.ResetPointValue()
	if err != nil {
		return harness.Options{}, err
	}
	destroyAt, err := c.DestroyAtValue()
	if err != nil {
		return harness.Options{}, err
	}

	fps := c.RenderingFPS
	if c.DisableRendering {
		fps = 0
	}

	return harness.Options{
		Instances:            c.Instances,
		MaxInFlight:          c.InFlight,
		PlayThroughs:         c.PlayThroughs,
		ResetPoint:           resetPoint,
		RenderingFPS:         fps,
		DelayReuseAfterFrame: c.DelayReuseAfterFrame,
		DestroyAt:            destroyAt,
		DestroyAfterDecodes:  c.DestroyAfterDecodes,
		WaitTimeout:          time.Duration(c.WaitTimeoutMs) * time.Millisecond,
	}, nil
}
