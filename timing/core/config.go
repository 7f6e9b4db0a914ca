package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/sarchlab/vldusim/timing/addrgen"
	"github.com/sarchlab/vldusim/timing/mem"
	"github.com/sarchlab/vldusim/timing/vldu"
	"github.com/sarchlab/vldusim/timing/vrf"
)

// Config holds the configuration of every block in the system.
type Config struct {
	VLDU    vldu.Config    `json:"vldu" yaml:"vldu"`
	AddrGen addrgen.Config `json:"addrgen" yaml:"addrgen"`
	Memory  mem.Config     `json:"memory" yaml:"memory"`
	VRF     vrf.Config     `json:"vrf" yaml:"vrf"`
}

// DefaultConfig returns a consistent four-lane system.
func DefaultConfig() *Config {
	c := &Config{
		VLDU:    *vldu.DefaultConfig(),
		AddrGen: addrgen.DefaultConfig(),
		Memory:  mem.DefaultConfig(),
		VRF:     vrf.DefaultConfig(),
	}
	c.Harmonize()
	return c
}

// Harmonize copies the load unit's geometry into the other blocks.
func (c *Config) Harmonize() {
	c.AddrGen.BusBytes = c.VLDU.BusBytes
	c.Memory.BusBytes = c.VLDU.BusBytes
	c.VRF.Lanes = c.VLDU.Lanes
}

// Validate checks every block and their agreement.
func (c *Config) Validate() error {
	if err := c.VLDU.Validate(); err != nil {
		return fmt.Errorf("vldu: %w", err)
	}
	if err := c.AddrGen.Validate(); err != nil {
		return fmt.Errorf("addrgen: %w", err)
	}
	if err := c.Memory.Validate(); err != nil {
		return fmt.Errorf("memory: %w", err)
	}
	if err := c.VRF.Validate(); err != nil {
		return fmt.Errorf("vrf: %w", err)
	}

	if c.AddrGen.BusBytes != c.VLDU.BusBytes || c.Memory.BusBytes != c.VLDU.BusBytes {
		return fmt.Errorf("bus widths disagree: vldu=%d addrgen=%d memory=%d",
			c.VLDU.BusBytes, c.AddrGen.BusBytes, c.Memory.BusBytes)
	}
	if c.VRF.Lanes != c.VLDU.Lanes {
		return fmt.Errorf("lane counts disagree: vldu=%d vrf=%d", c.VLDU.Lanes, c.VRF.Lanes)
	}
	return nil
}

// LoadConfig loads a Config from a JSON or YAML file, starting from the
// defaults. The load unit's bus width and lane count win over those given for
// the other blocks.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()
	if err := decodeFile(path, config); err != nil {
		return nil, fmt.Errorf("failed to load system config: %w", err)
	}
	config.Harmonize()
	return config, nil
}

func decodeFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		return yaml.Unmarshal(data, v)
	}
	return json.Unmarshal(data, v)
}
