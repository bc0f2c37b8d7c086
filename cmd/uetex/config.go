package main

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"

	"github.com/pkg/errors"

	"github.com/goopsie/uetextools/pkg/version"
)

// exportFormats are the values accepted by --export-as.
var exportFormats = []string{"dds", "tga", "png", "jpg", "bmp", "hdr"}

// Config holds the defaults read from config.json. Flags override every field.
type Config struct {
	Version     string `json:"version"`
	SaveFolder  string `json:"save_folder"`
	Texconv     string `json:"texconv"`
	Texassemble string `json:"texassemble"`
	Workers     int    `json:"workers"`
	ExportAs    string `json:"export_as"`
	ImageFilter string `json:"image_filter"`
}

func defaultConfig() Config {
	return Config{
		Version:    "4.27",
		SaveFolder: "output",
		Workers:    runtime.NumCPU(),
		ExportAs:   "dds",
	}
}

// defaultConfigPath is config.json next to the executable.
func defaultConfigPath() string {
	exe, err := os.Executable()
	if err != nil {
		return "config.json"
	}
	return filepath.Join(filepath.Dir(exe), "config.json")
}

// loadConfig decodes path over the defaults. A missing file is not an error.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, errors.Wrap(err, "failed to read config")
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "failed to parse %s", filepath.Base(path))
	}
	return cfg, nil
}

// flagSource is the part of *cli.Context the config layer reads.
type flagSource interface {
	IsSet(name string) bool
	String(name string) string
	Int(name string) int
}

func (c *Config) applyFlags(f flagSource) {
	for name, dst := range map[string]*string{
		"version":      &c.Version,
		"save-folder":  &c.SaveFolder,
		"texconv":      &c.Texconv,
		"texassemble":  &c.Texassemble,
		"export-as":    &c.ExportAs,
		"image-filter": &c.ImageFilter,
	} {
		if f.IsSet(name) {
			*dst = f.String(name)
		}
	}
	if f.IsSet("workers") {
		c.Workers = f.Int("workers")
	}
}

func (c Config) validate() error {
	if !version.IsSupported(c.Version) {
		return errors.Errorf("unsupported version %q (supported: %v)", c.Version, version.Supported())
	}
	if c.Workers < 1 {
		return errors.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if !slices.Contains(exportFormats, c.ExportAs) {
		return errors.Errorf("unsupported format to export %q", c.ExportAs)
	}
	if fi, err := os.Stat(c.SaveFolder); err == nil && !fi.IsDir() {
		return errors.Errorf("output path %s is not a folder", c.SaveFolder)
	}
	return nil
}
