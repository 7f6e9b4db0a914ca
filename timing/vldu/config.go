package vldu

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/sarchlab/vldusim/timing/shuffle"
)

// MaxLanes is the widest register file the model supports.
const MaxLanes = 16

// MaxInsnIDs bounds the instruction id space; completion is a 64-bit bitmap.
const MaxInsnIDs = 64

// Config holds the geometry of the load unit.
type Config struct {
	// Lanes is the number of register-file lanes. Must be a power of two.
	// Default: 4.
	Lanes int `json:"lanes" yaml:"lanes"`

	// InsnQueueDepth is the number of vector loads that can be in flight.
	// Default: 4.
	InsnQueueDepth int `json:"insn_queue_depth" yaml:"insn_queue_depth"`

	// ResultQueueDepth is the number of register-file words that can wait
	// for the register file. Default: 2.
	ResultQueueDepth int `json:"result_queue_depth" yaml:"result_queue_depth"`

	// BusBytes is the width of the memory read-data bus in bytes.
	// Default: 8 * Lanes.
	BusBytes int `json:"bus_bytes" yaml:"bus_bytes"`

	// NumInsnIDs is the size of the instruction id space. Ids are in
	// [0, NumInsnIDs). Default: 8.
	NumInsnIDs int `json:"num_insn_ids" yaml:"num_insn_ids"`
}

// DefaultConfig returns the four-lane configuration.
func DefaultConfig() *Config {
	return &Config{
		Lanes:            4,
		InsnQueueDepth:   4,
		ResultQueueDepth: 2,
		BusBytes:         32,
		NumInsnIDs:       8,
	}
}

// WordBytes returns the size of a register-file word spanning all lanes.
func (c *Config) WordBytes() int {
	return c.Lanes * shuffle.BytesPerLane
}

// LoadConfig loads a Config from a JSON or YAML file. The format is chosen by
// file extension; fields missing from the file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vldu config file: %w", err)
	}

	config := DefaultConfig()
	if isYAML(path) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse vldu config: %w", err)
	}

	return config, nil
}

// SaveConfig writes the Config to a JSON or YAML file.
func (c *Config) SaveConfig(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to serialize vldu config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write vldu config file: %w", err)
	}

	return nil
}

// Validate checks that the geometry can be modeled.
func (c *Config) Validate() error {
	if c.Lanes <= 0 || c.Lanes&(c.Lanes-1) != 0 || c.Lanes > MaxLanes {
		return fmt.Errorf("lanes must be a power of two in [1, %d], got %d", MaxLanes, c.Lanes)
	}
	if c.InsnQueueDepth <= 0 {
		return fmt.Errorf("insn_queue_depth must be > 0")
	}
	if c.ResultQueueDepth <= 0 {
		return fmt.Errorf("result_queue_depth must be > 0")
	}
	if c.BusBytes < shuffle.BytesPerLane || c.BusBytes&(c.BusBytes-1) != 0 {
		return fmt.Errorf("bus_bytes must be a power of two >= %d, got %d",
			shuffle.BytesPerLane, c.BusBytes)
	}
	if c.NumInsnIDs <= 0 || c.NumInsnIDs > MaxInsnIDs {
		return fmt.Errorf("num_insn_ids must be in [1, %d]", MaxInsnIDs)
	}
	if c.NumInsnIDs < c.InsnQueueDepth {
		return fmt.Errorf("num_insn_ids must be >= insn_queue_depth")
	}
	return nil
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
