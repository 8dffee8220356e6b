// machine_config.go - YAML machine description and System assembly
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

var ErrInvalidConfig = errors.New("invalid machine config")

type MemoryConfig struct {
	RAMKiB     uint32 `yaml:"ram_kib"`
	ROM        string `yaml:"rom"`
	ROMBase    uint32 `yaml:"rom_base"`
	ROMSizeKiB uint32 `yaml:"rom_size_kib"`
	// ROMWritable lets the guest write the EEPROM, for flashing tests.
	ROMWritable bool `yaml:"rom_writable"`
}

type CPUConfig struct {
	Features []string `yaml:"features"`
	Trace    bool     `yaml:"trace"`
}

type PortsConfig struct {
	Unmapped string `yaml:"unmapped"`
}

type LuaDeviceConfig struct {
	Name   string `yaml:"name"`
	Script string `yaml:"script"`
}

type DevicesConfig struct {
	CMOS    bool              `yaml:"cmos"`
	PIC     bool              `yaml:"pic"`
	PIT     bool              `yaml:"pit"`
	Speaker bool              `yaml:"speaker"`
	Console bool              `yaml:"console"`
	Lua     []LuaDeviceConfig `yaml:"lua"`

	PITTicksPerStep int `yaml:"pit_ticks_per_step"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Modules string `yaml:"modules"`
}

// MachineConfig describes one machine: memory layout, CPU features and the
// devices on the port bus.
type MachineConfig struct {
	Memory  MemoryConfig  `yaml:"memory"`
	CPU     CPUConfig     `yaml:"cpu"`
	Ports   PortsConfig   `yaml:"ports"`
	Devices DevicesConfig `yaml:"devices"`
	Log     LogConfig     `yaml:"log"`
}

// DefaultMachineConfig is the reference PC layout: 640KB RAM, a 256KB ROM
// window at 0xC0000, the 186 extensions, and the RTC, PIC, PIT and debug
// console attached.
func DefaultMachineConfig() *MachineConfig {
	return &MachineConfig{
		Memory: MemoryConfig{
			RAMKiB:     DEFAULT_RAM_SIZE / 1024,
			ROMBase:    DEFAULT_ROM_BASE,
			ROMSizeKiB: DEFAULT_ROM_SIZE / 1024,
		},
		CPU:   CPUConfig{Features: []string{"186"}},
		Ports: PortsConfig{Unmapped: "ignore"},
		Devices: DevicesConfig{
			CMOS:    true,
			PIC:     true,
			PIT:     true,
			Console: true,
		},
		Log: LogConfig{Level: "warn"},
	}
}

// LoadMachineConfig reads a YAML file over the defaults and validates it.
func LoadMachineConfig(path string) (*MachineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read machine config: %w", err)
	}
	return ParseMachineConfig(data)
}

// ParseMachineConfig decodes YAML over the defaults and validates it.
func ParseMachineConfig(data []byte) (*MachineConfig, error) {
	cfg := DefaultMachineConfig()
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *MachineConfig) Validate() error {
	ram := uint64(cfg.Memory.RAMKiB) * 1024
	if ram == 0 || ram > X86_MEMORY_SIZE {
		return fmt.Errorf("%w: ram_kib %d must be 1..1024", ErrInvalidConfig, cfg.Memory.RAMKiB)
	}
	rom := uint64(cfg.Memory.ROMSizeKiB) * 1024
	if cfg.Memory.ROM != "" {
		if rom == 0 {
			return fmt.Errorf("%w: rom_size_kib must be set with a rom image", ErrInvalidConfig)
		}
		if uint64(cfg.Memory.ROMBase)+rom > X86_MEMORY_SIZE {
			return fmt.Errorf("%w: rom %05X+%dKB runs past 1MB", ErrInvalidConfig, cfg.Memory.ROMBase, cfg.Memory.ROMSizeKiB)
		}
	}
	for _, f := range cfg.CPU.Features {
		if _, err := ParseFeature(f); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	if _, err := ParseUnmappedPolicy(cfg.Ports.Unmapped); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if cfg.Log.Level != "" {
		if _, err := ParseLevel(cfg.Log.Level); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	seen := map[string]bool{}
	for i, l := range cfg.Devices.Lua {
		if l.Script == "" {
			return fmt.Errorf("%w: lua device %d has no script", ErrInvalidConfig, i)
		}
		if l.Name == "" {
			cfg.Devices.Lua[i].Name = fmt.Sprintf("lua%d", i)
		}
		if seen[cfg.Devices.Lua[i].Name] {
			return fmt.Errorf("%w: duplicate lua device %q", ErrInvalidConfig, l.Name)
		}
		seen[cfg.Devices.Lua[i].Name] = true
	}
	if cfg.Devices.Speaker && !cfg.Devices.PIT {
		return fmt.Errorf("%w: speaker needs the pit", ErrInvalidConfig)
	}
	return nil
}

// ApplyLogging installs the configured level and module filter.
func (cfg *MachineConfig) ApplyLogging() error {
	if cfg.Log.Level != "" {
		lvl, err := ParseLevel(cfg.Log.Level)
		if err != nil {
			return err
		}
		SetLogLevel(lvl)
	}
	EnableModules(cfg.Log.Modules)
	return nil
}

// Machine is a System plus handles on the devices the front ends talk to.
type Machine struct {
	*System

	Config  *MachineConfig
	ROM     *EEPROM
	Console *Console
	Speaker *Speaker
	Lua     []*LuaDevice
}

// Build assembles the System described by cfg. player may be nil when no
// speaker output is wanted.
func (cfg *MachineConfig) Build(player SpeakerPlayer) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	mem := NewAddressSpace(X86_MEMORY_SIZE)
	ram := cfg.Memory.RAMKiB * 1024
	if err := mem.Map("ram", 0, ram-1, NewRAM(ram)); err != nil {
		return nil, err
	}

	m := &Machine{Config: cfg}
	if cfg.Memory.ROM != "" {
		size := cfg.Memory.ROMSizeKiB * 1024
		rom, err := LoadEEPROM(cfg.Memory.ROM, size)
		if err != nil {
			return nil, err
		}
		rom.SetWritable(cfg.Memory.ROMWritable)
		base := cfg.Memory.ROMBase
		if err := mem.Map("rom", base, base+size-1, rom); err != nil {
			return nil, err
		}
		m.ROM = rom
	}

	policy, _ := ParseUnmappedPolicy(cfg.Ports.Unmapped)
	var features []Feature
	for _, name := range cfg.CPU.Features {
		f, _ := ParseFeature(name)
		features = append(features, f)
	}
	m.System = NewSystem(mem, policy, features...)

	// The PIC goes first so it claims the interrupt source slot.
	if cfg.Devices.PIC {
		m.AddDevice(NewDualPIC())
	}
	if cfg.Devices.CMOS {
		m.AddDevice(NewCMOS(nil))
	}
	if cfg.Devices.PIT {
		m.AddDevice(NewPIT(cfg.Devices.PITTicksPerStep))
	}
	if cfg.Devices.Speaker {
		m.Speaker = NewSpeaker(player)
		m.AddDevice(m.Speaker)
	}
	if cfg.Devices.Console {
		m.Console = NewConsole()
		m.AddDevice(m.Console)
	}
	for _, l := range cfg.Devices.Lua {
		dev, err := LoadLuaDevice(l.Name, l.Script)
		if err != nil {
			return nil, err
		}
		m.Lua = append(m.Lua, dev)
		m.AddDevice(dev)
	}
	if cfg.CPU.Trace {
		EnableTrace(m.CPU)
	}
	return m, nil
}

// Close releases the audio player and Lua interpreters.
func (m *Machine) Close() {
	if m.Speaker != nil {
		m.Speaker.Close()
	}
	for _, l := range m.Lua {
		l.Close()
	}
}
