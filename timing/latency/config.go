// Package latency provides timing and microarchitecture parameters for the
// PQR5 core model, loadable from a JSON configuration file.
package latency

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config holds latency values and predictor geometry for the core model.
// Defaults follow the PQR5 subsystem build: single-cycle tightly coupled
// instruction and data memories, a 256-entry Gshare BHT, and an 8-deep
// return-address stack.
type Config struct {
	// IMemLatency is the instruction memory access latency in cycles.
	// Values above 1 model a stalling fetch interface. Default: 1.
	IMemLatency uint64 `json:"imem_latency"`

	// DMemLatency is the data memory access latency in cycles. Values
	// above 1 model multi-cycle loads and stores that back-pressure the
	// pipeline. Default: 1.
	DMemLatency uint64 `json:"dmem_latency"`

	// Predictor selects the branch predictor: "none", "static", or
	// "gshare". Default: "gshare".
	Predictor string `json:"predictor"`

	// BHTSize is the number of 2-bit counters in the branch history
	// table. Must be a power of 2. Default: 256.
	BHTSize uint32 `json:"bht_size"`

	// GHRWidth is the global history register width in bits.
	// Default: 8.
	GHRWidth uint8 `json:"ghr_width"`

	// RASDepth is the return-address stack depth. Must be a power of 2.
	// Zero disables return-address prediction. Default: 8.
	RASDepth uint32 `json:"ras_depth"`

	// ResetPC is the program counter value driven out of reset.
	// Default: 0x0.
	ResetPC uint32 `json:"reset_pc"`
}

// DefaultConfig returns a Config with PQR5 default values.
func DefaultConfig() *Config {
	return &Config{
		IMemLatency: 1,
		DMemLatency: 1,
		Predictor:   "gshare",
		BHTSize:     256,
		GHRWidth:    8,
		RASDepth:    8,
		ResetPC:     0x0,
	}
}

// LoadConfig reads a Config from a JSON file. Missing fields keep their
// default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading timing config: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing timing config %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid timing config %s: %w", path, err)
	}

	return config, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.IMemLatency == 0 {
		return fmt.Errorf("imem_latency must be at least 1")
	}
	if c.DMemLatency == 0 {
		return fmt.Errorf("dmem_latency must be at least 1")
	}
	switch c.Predictor {
	case "none", "static", "gshare":
	default:
		return fmt.Errorf("unknown predictor %q", c.Predictor)
	}
	if c.BHTSize == 0 || c.BHTSize&(c.BHTSize-1) != 0 {
		return fmt.Errorf("bht_size must be a power of 2, got %d", c.BHTSize)
	}
	if c.GHRWidth == 0 || c.GHRWidth > 32 {
		return fmt.Errorf("ghr_width must be in [1,32], got %d", c.GHRWidth)
	}
	if c.RASDepth != 0 && c.RASDepth&(c.RASDepth-1) != 0 {
		return fmt.Errorf("ras_depth must be a power of 2, got %d", c.RASDepth)
	}
	if c.ResetPC%4 != 0 {
		return fmt.Errorf("reset_pc must be word-aligned, got %#x", c.ResetPC)
	}
	return nil
}

// Save writes the configuration to a JSON file.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding timing config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing timing config: %w", err)
	}
	return nil
}
