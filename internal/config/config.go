package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "MULTICORDER"

// Config is the resolved process configuration. Device sections map a device
// kind to numeric indexes to kind-specific parameter sets; unknown parameter
// fields are passed through opaquely to the concrete device implementation.
type Config struct {
	Devices map[string]map[int]map[string]any `yaml:"devices"`
	Output  OutputConfig                      `yaml:"output"`
	Listen  ListenConfig                      `yaml:"listen"`
}

type OutputConfig struct {
	Directory string `mapstructure:"directory" yaml:"directory"`
}

type ListenConfig struct {
	Address string `mapstructure:"address" yaml:"address"`
	NATSURL string `mapstructure:"nats_url" yaml:"nats_url,omitempty"`
	Subject string `mapstructure:"subject" yaml:"subject"`
}

// Default returns the configuration used when a section is absent from the
// file.
func Default() *Config {
	return &Config{
		Devices: map[string]map[int]map[string]any{},
		Output: OutputConfig{
			Directory: filepath.Join(os.Getenv("HOME"), "Recordings", "Multicorder"),
		},
		Listen: ListenConfig{
			Address: ":8080",
			Subject: "multicorder.control",
		},
	}
}

// Load reads and validates the configuration file. Top-level keys other than
// "output" and "listen" are device kind sections.
func Load(configFile string) (*Config, error) {
	if configFile == "" {
		return nil, fmt.Errorf("no config file specified, use --config flag")
	}

	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	cfg := Default()
	settings := v.AllSettings()

	if raw, ok := settings["output"]; ok {
		if err := decodeSection(raw, &cfg.Output); err != nil {
			return nil, fmt.Errorf("invalid output section: %w", err)
		}
		delete(settings, "output")
	}
	if raw, ok := settings["listen"]; ok {
		if err := decodeSection(raw, &cfg.Listen); err != nil {
			return nil, fmt.Errorf("invalid listen section: %w", err)
		}
		delete(settings, "listen")
	}

	for kind, raw := range settings {
		byIndex, err := parseDeviceSection(kind, raw)
		if err != nil {
			return nil, err
		}
		cfg.Devices[kind] = byIndex
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	cfg.Output.Directory = expandPath(cfg.Output.Directory)
	return cfg, nil
}

// parseDeviceSection turns one kind section into an index → parameters map.
func parseDeviceSection(kind string, raw any) (map[int]map[string]any, error) {
	entries, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("device section %q must map device indexes to parameter sets", kind)
	}

	byIndex := make(map[int]map[string]any, len(entries))
	for key, rawParams := range entries {
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 {
			return nil, fmt.Errorf("device section %q: index %q must be a non-negative integer", kind, key)
		}

		params, ok := rawParams.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("device section %q index %d: parameters must be a mapping", kind, idx)
		}
		byIndex[idx] = params
	}
	return byIndex, nil
}

func decodeSection(raw any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

func validate(cfg *Config) error {
	if cfg.Output.Directory == "" {
		return fmt.Errorf("output.directory must not be empty")
	}
	if cfg.Listen.Address == "" {
		return fmt.Errorf("listen.address must not be empty")
	}
	return nil
}

// Kinds returns the configured device kinds, sorted.
func (c *Config) Kinds() []string {
	kinds := make([]string, 0, len(c.Devices))
	for k := range c.Devices {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// DeviceCount returns the total number of configured devices.
func (c *Config) DeviceCount() int {
	n := 0
	for _, byIndex := range c.Devices {
		n += len(byIndex)
	}
	return n
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[2:])
	}
	return path
}
