// Package config loads the bridge's TOML configuration: the
// mountpoint plus the table of backing device images.
package config

import (
	"fmt"
	"io"

	"github.com/BurntSushi/toml"
	"github.com/horazont/ext4bridge/internal/blockdev"
)

type Device struct {
	ID       int    `toml:"id"`
	Image    string `toml:"image"`
	ReadOnly bool   `toml:"read_only"`
}

type Config struct {
	Mountpoint string   `toml:"mountpoint"`
	AllowOther bool     `toml:"allow_other"`
	Devices    []Device `toml:"devices"`
}

// Read decodes a configuration document and validates it.
func Read(r io.Reader) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.DecodeReader(r, cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (m *Config) validate() error {
	if len(m.Devices) == 0 {
		return fmt.Errorf("no devices configured")
	}

	seen := make(map[int]bool)
	for _, dev := range m.Devices {
		if dev.Image == "" {
			return fmt.Errorf("device %d: no image path", dev.ID)
		}
		if seen[dev.ID] {
			return fmt.Errorf("device %d: duplicate id", dev.ID)
		}
		seen[dev.ID] = true
	}
	return nil
}

// RegisterDevices opens every configured image and registers it in the
// device registry. On failure, devices registered so far are
// unregistered again.
func (m *Config) RegisterDevices() error {
	registered := []blockdev.DeviceID{}
	for _, dev := range m.Devices {
		fdev, err := blockdev.OpenFileDevice(dev.Image, dev.ReadOnly)
		if err != nil {
			for _, id := range registered {
				blockdev.UnregisterDevice(id)
			}
			return fmt.Errorf("device %d: %s", dev.ID, err)
		}
		blockdev.RegisterDevice(blockdev.DeviceID(dev.ID), fdev)
		registered = append(registered, blockdev.DeviceID(dev.ID))
	}
	return nil
}
