package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds CLI defaults that would otherwise have to be repeated on
// every invocation. A flag explicitly passed on the command line always
// overrides the value loaded here.
type Config struct {
	Window int    `yaml:"window"`
	Show   string `yaml:"show"`
	Format string `yaml:"format"`
	DBPath string `yaml:"db"`
}

// defaultConfig mirrors runDiffCmd's own flag defaults, so loading no
// config file at all behaves identically to today's hardcoded defaults.
func defaultConfig() Config {
	return Config{Window: 5, Show: "both", Format: "text", DBPath: "forkline.db"}
}

// loadConfig reads a YAML config file at path. A missing file is not an
// error (it simply yields defaultConfig()), but a malformed one is.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("forkline: read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("forkline: parse config %q: %w", path, err)
	}
	return cfg, nil
}
