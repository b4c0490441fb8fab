package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// CflowConfig is the optional YAML configuration. Command line flags take
// precedence over it.
type CflowConfig struct {
	Arch    string   `yaml:"arch" json:"arch,omitempty" jsonschema:"title=Architecture,description=Decoder to use; defaults to the ELF machine,enum=amd64,enum=arm64,enum=avr,enum=atmega8,enum=atmega88,enum=atmega103,enum=mos6502"`
	Entries []string `yaml:"entries" json:"entries,omitempty" jsonschema:"title=Entries,description=Addresses or symbol names to disassemble from"`
	Base    uint64   `yaml:"base" json:"base,omitempty" jsonschema:"title=Base,description=Load address of raw images"`
	PRG     bool     `yaml:"prg" json:"prg,omitempty" jsonschema:"title=PRG,description=Treat the input as a C64 PRG file"`
	Format  string   `yaml:"format" json:"format,omitempty" jsonschema:"title=Format,enum=listing,enum=dot,enum=tree,enum=html,enum=json,enum=report"`
	PCBits  int      `yaml:"pcBits" json:"pcBits,omitempty" jsonschema:"title=PC bits,description=Program counter width for AVR devices without a preset,minimum=1,maximum=22"`
	Debug   bool     `yaml:"debug" json:"debug,omitempty" jsonschema:"title=Debug,description=Enable debug logging"`
	Color   string   `yaml:"color" json:"color,omitempty" jsonschema:"title=Color,enum=auto,enum=always,enum=never,default=auto"`
}

// LoadConfig reads a YAML configuration. Unknown keys are an error.
func LoadConfig(path string) (CflowConfig, error) {
	var cfg CflowConfig
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// resolveConfig loads --config if given and applies the flags that were
// set explicitly.
func resolveConfig(cmd *cobra.Command) (CflowConfig, error) {
	cfg := CflowConfig{Format: "listing", Color: "auto"}
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := LoadConfig(path)
		if err != nil {
			return cfg, err
		}
		if loaded.Format == "" {
			loaded.Format = cfg.Format
		}
		if loaded.Color == "" {
			loaded.Color = cfg.Color
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("arch") {
		cfg.Arch, _ = flags.GetString("arch")
	}
	if flags.Changed("entry") {
		cfg.Entries, _ = flags.GetStringSlice("entry")
	}
	if flags.Changed("base") {
		cfg.Base, _ = flags.GetUint64("base")
	}
	if flags.Changed("prg") {
		cfg.PRG, _ = flags.GetBool("prg")
	}
	if flags.Changed("format") {
		cfg.Format, _ = flags.GetString("format")
	}
	if flags.Changed("pc-bits") {
		cfg.PCBits, _ = flags.GetInt("pc-bits")
	}
	if flags.Changed("debug") {
		cfg.Debug, _ = flags.GetBool("debug")
	}
	if flags.Changed("color") {
		cfg.Color, _ = flags.GetString("color")
	}
	if cfg.Debug {
		os.Setenv("CFLOW_LOG_LEVEL", "debug")
	}
	return cfg, nil
}
