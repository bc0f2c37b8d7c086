package main

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFlags struct {
	strings map[string]string
	ints    map[string]int
}

func (f fakeFlags) IsSet(name string) bool {
	_, s := f.strings[name]
	_, i := f.ints[name]
	return s || i
}

func (f fakeFlags) String(name string) string { return f.strings[name] }
func (f fakeFlags) Int(name string) int       { return f.ints[name] }

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name string
		data string
		want Config
		err  bool
	}{
		{"missing file", "", defaultConfig(), false},
		{
			"partial",
			`{"version": "5.1", "texconv": "C:/tools/texconv.exe"}`,
			Config{Version: "5.1", SaveFolder: "output", Texconv: "C:/tools/texconv.exe", Workers: runtime.NumCPU(), ExportAs: "dds"},
			false,
		},
		{
			"full",
			`{"version": "ff7r", "save_folder": "out", "texconv": "a", "texassemble": "b", "workers": 2, "export_as": "png", "image_filter": "CUBIC"}`,
			Config{Version: "ff7r", SaveFolder: "out", Texconv: "a", Texassemble: "b", Workers: 2, ExportAs: "png", ImageFilter: "CUBIC"},
			false,
		},
		{"malformed", `{"version": 4.27`, Config{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json")
			if tt.data != "" {
				require.NoError(t, os.WriteFile(path, []byte(tt.data), 0644))
			}
			cfg, err := loadConfig(path)
			if tt.err {
				assert.ErrorContains(t, err, "config.json")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg)
		})
	}
}

func TestApplyFlags(t *testing.T) {
	cfg := Config{Version: "4.27", SaveFolder: "output", Workers: 8, ExportAs: "dds", Texconv: "from-config"}
	cfg.applyFlags(fakeFlags{
		strings: map[string]string{"version": "5.4", "export-as": "tga"},
		ints:    map[string]int{"workers": 1},
	})
	assert.Equal(t, Config{Version: "5.4", SaveFolder: "output", Workers: 1, ExportAs: "tga", Texconv: "from-config"}, cfg)
}

func TestConfigValidate(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0644))

	tests := []struct {
		name   string
		modify func(*Config)
		err    string
	}{
		{"defaults", func(*Config) {}, ""},
		{"alias version", func(c *Config) { c.Version = "borderlands3" }, ""},
		{"unknown version", func(c *Config) { c.Version = "3.9" }, "unsupported version"},
		{"no workers", func(c *Config) { c.Workers = 0 }, "workers"},
		{"bad export", func(c *Config) { c.ExportAs = "gif" }, "unsupported format"},
		{"save folder is a file", func(c *Config) { c.SaveFolder = file }, "not a folder"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.SaveFolder = t.TempDir()
			tt.modify(&cfg)
			err := cfg.validate()
			if tt.err == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.err)
		})
	}
}
