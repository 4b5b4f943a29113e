package main

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Protocol timing constants. Tests shorten these through Config overrides.
const (
	// DefaultBringUpTimeout bounds the primary's wait for a secondary to come
	// online after the backend accepted the boot request.
	DefaultBringUpTimeout = 1000 * time.Millisecond

	// DefaultDeathTimeout bounds the wait for a dying core to report death.
	DefaultDeathTimeout = 5 * time.Second

	// DefaultStopWait bounds the stop initiator's poll for other cores to go
	// inactive.
	DefaultStopWait = 1 * time.Second

	// DefaultBacktraceWait bounds a backtrace session's poll for the target
	// set to empty.
	DefaultBacktraceWait = 10 * time.Second

	// DefaultPollQuantum is the sleep between checks in the diagnostic
	// busy-wait loops.
	DefaultPollQuantum = 1 * time.Millisecond

	// ConfigHashLength is the length of the config hash in hex characters.
	ConfigHashLength = 16
)

// SystemState tracks the coarse phase of the whole system. The stop handler
// only prints diagnostics while the system is still booting or running.
type SystemState int32

const (
	SystemBooting SystemState = iota
	SystemRunning
	SystemHalting
)

func (s SystemState) String() string {
	switch s {
	case SystemBooting:
		return "booting"
	case SystemRunning:
		return "running"
	case SystemHalting:
		return "halting"
	default:
		return fmt.Sprintf("SystemState(%d)", int32(s))
	}
}

// Config holds system configuration values.
type Config struct {
	// Platform names the platform description to run on.
	Platform *PlatformConfig

	// MaxCores caps the number of logical cores actually enabled; topology
	// entries beyond it are clipped with a warning. Zero means no extra cap.
	MaxCores int

	// Timeout overrides; zero selects the default.
	BringUpTimeout time.Duration
	DeathTimeout   time.Duration
	StopWait       time.Duration
	BacktraceWait  time.Duration
	PollQuantum    time.Duration

	// TracePlugins lists instrumentation plugins to activate by name.
	TracePlugins []string

	// Headless disables the interactive control loop.
	Headless bool
}

func (c *Config) bringUpTimeout() time.Duration {
	if c == nil || c.BringUpTimeout <= 0 {
		return DefaultBringUpTimeout
	}
	return c.BringUpTimeout
}

func (c *Config) deathTimeout() time.Duration {
	if c == nil || c.DeathTimeout <= 0 {
		return DefaultDeathTimeout
	}
	return c.DeathTimeout
}

func (c *Config) stopWait() time.Duration {
	if c == nil || c.StopWait <= 0 {
		return DefaultStopWait
	}
	return c.StopWait
}

func (c *Config) backtraceWait() time.Duration {
	if c == nil || c.BacktraceWait <= 0 {
		return DefaultBacktraceWait
	}
	return c.BacktraceWait
}

func (c *Config) pollQuantum() time.Duration {
	if c == nil || c.PollQuantum <= 0 {
		return DefaultPollQuantum
	}
	return c.PollQuantum
}

// computeConfigHash computes a hash of the configuration to detect platform
// changes between runs. The hash is based on the fields that affect topology.
func computeConfigHash(cfg *Config) string {
	if cfg == nil || cfg.Platform == nil {
		return ""
	}
	p := cfg.Platform
	hashInput := fmt.Sprintf("%s-%s-%d-%d", p.Name, p.EnableMethod, len(p.Cores), cfg.MaxCores)
	for _, c := range p.Cores {
		hashInput += fmt.Sprintf("-%x", c.HWID)
	}

	hash := sha256.Sum256([]byte(hashInput))
	return hex.EncodeToString(hash[:])[:ConfigHashLength]
}
