package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/Readm/smp_sim/core"
)

// CoreDesc describes one core entry of a platform description. The mapping
// from hardware ids to logical indices, duplicate rejection and boot-core
// validation happen during topology enumeration; the description itself is
// raw collaborator input.
type CoreDesc struct {
	HWID uint64 `yaml:"hwid"`

	// RunLevel the core starts the kernel at; zero inherits the platform
	// default. A core disagreeing with the boot core is a fatal mismatch.
	RunLevel int `yaml:"run_level,omitempty"`

	// MissingCaps lists system-wide capability names this core lacks. A core
	// that cannot tick every committed capability fails bring-up.
	MissingCaps []string `yaml:"missing_caps,omitempty"`
}

// PlatformConfig represents a platform description: the possible core set and
// the enable method controlling them.
type PlatformConfig struct {
	Name         string `yaml:"name"`
	Description  string `yaml:"description,omitempty"`
	EnableMethod string `yaml:"enable_method"`

	// BootHWID is the hardware id the boot core reports for itself. The
	// description must contain a matching entry or no secondary is enabled.
	// Unset means the first described core.
	BootHWID     *uint64    `yaml:"boot_hwid,omitempty"`
	RunLevel     int        `yaml:"run_level,omitempty"`
	Capabilities []string   `yaml:"capabilities,omitempty"`
	Cores        []CoreDesc `yaml:"cores"`
}

// Validate performs the structural checks that do not need a running system.
func (p *PlatformConfig) Validate() error {
	if p == nil {
		return fmt.Errorf("platform config is nil")
	}
	if p.EnableMethod == "" {
		return fmt.Errorf("platform %q: enable method missing", p.Name)
	}
	if len(p.Cores) == 0 {
		return fmt.Errorf("platform %q: no cores described", p.Name)
	}
	return nil
}

// bootRunLevel returns the run level the boot core commits the system to.
func (p *PlatformConfig) bootRunLevel() core.RunLevel {
	if p == nil || p.RunLevel == 0 {
		return core.RunLevelNormal
	}
	return core.RunLevel(p.RunLevel)
}

func (c CoreDesc) runLevel(platform *PlatformConfig) core.RunLevel {
	if c.RunLevel != 0 {
		return core.RunLevel(c.RunLevel)
	}
	return platform.bootRunLevel()
}

// GetPredefinedPlatforms returns all built-in platform descriptions.
func GetPredefinedPlatforms() []*PlatformConfig {
	return []*PlatformConfig{
		{
			Name:         "quad",
			Description:  "Four identical cores, full hotplug support",
			EnableMethod: "sim-psci",
			Capabilities: []string{"fp", "asimd"},
			Cores: []CoreDesc{
				{HWID: 0x000},
				{HWID: 0x001},
				{HWID: 0x002},
				{HWID: 0x003},
			},
		},
		{
			Name:         "big-little",
			Description:  "Two clusters of two cores on separate affinity levels",
			EnableMethod: "sim-psci",
			Capabilities: []string{"fp", "asimd"},
			Cores: []CoreDesc{
				{HWID: 0x000},
				{HWID: 0x001},
				{HWID: 0x100},
				{HWID: 0x101},
			},
		},
		{
			Name:         "dual-spin-table",
			Description:  "Two cores released from a spin table: no die/kill, no hot removal",
			EnableMethod: "sim-spin-table",
			Cores: []CoreDesc{
				{HWID: 0x000},
				{HWID: 0x001},
			},
		},
	}
}

// GetPlatformByName returns the predefined platform with the given name.
func GetPlatformByName(name string) *PlatformConfig {
	for _, p := range GetPredefinedPlatforms() {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// LoadPlatformFile reads a platform description from a YAML file.
func LoadPlatformFile(path string) (*PlatformConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read platform file: %w", err)
	}
	return ParsePlatform(data)
}

// ParsePlatform decodes a YAML platform description.
func ParsePlatform(data []byte) (*PlatformConfig, error) {
	var p PlatformConfig
	if err := yaml.UnmarshalStrict(data, &p); err != nil {
		return nil, fmt.Errorf("parse platform description: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}
