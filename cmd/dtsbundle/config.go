package main

import (
	"os"

	"gopkg.in/yaml.v3"
)

// ProjectConfig holds the contents of .dtsbundle/config.yaml.
type ProjectConfig struct {
	Version         string   `yaml:"version"`
	Entries         []string `yaml:"entries"`
	OutDir          string   `yaml:"out_dir"`
	Tsconfig        string   `yaml:"tsconfig"`
	Resolve         bool     `yaml:"resolve"`
	ResolvePackages []string `yaml:"resolve_packages"`
	InferTypes      bool     `yaml:"infer_types"`
	Tsgo            bool     `yaml:"tsgo"`
	Splitting       bool     `yaml:"splitting"`
	Minify          bool     `yaml:"minify"`
	Naming          string   `yaml:"naming"`
}

// loadProjectConfig reads .dtsbundle/config.yaml from the current directory.
// Returns nil (no error) if the file does not exist.
func loadProjectConfig() (*ProjectConfig, error) {
	data, err := os.ReadFile(".dtsbundle/config.yaml")
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
