package config

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/odvcencio/regionfocus/pkg/errors"
)

// loadAndMerge loads a YAML file and merges it into cfg. A missing file is
// returned as a CONFIG_LOAD error wrapping fs.ErrNotExist.
func loadAndMerge(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigLoad, "reading config").
			WithContext("path", path)
	}
	return mergeYAML(cfg, data, path)
}

// mergeYAML merges a YAML document into cfg. Only keys present in the
// document override, so an explicit false or zero is honoured.
func mergeYAML(cfg *Config, data []byte, source string) error {
	var override Config
	if err := yaml.Unmarshal(data, &override); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigParse, "parsing YAML").
			WithContext("path", source)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigParse, "parsing YAML").
			WithContext("path", source)
	}

	mergeConfigs(cfg, &override, raw)
	return nil
}

// mergeConfigs merges override into base.
func mergeConfigs(base, override *Config, raw map[string]any) {
	if override == nil {
		return
	}

	if override.Log.Level != "" {
		base.Log.Level = override.Log.Level
	}
	if fieldSet(raw, "log", "path") {
		base.Log.Path = override.Log.Path
	}

	if fieldSet(raw, "metrics", "enabled") {
		base.Metrics.Enabled = override.Metrics.Enabled
	}
	if override.Metrics.Namespace != "" {
		base.Metrics.Namespace = override.Metrics.Namespace
	}
	if fieldSet(raw, "metrics", "listen") {
		base.Metrics.Listen = override.Metrics.Listen
	}

	if fieldSet(raw, "tracing", "enabled") {
		base.Tracing.Enabled = override.Tracing.Enabled
	}
	if fieldSet(raw, "tracing", "pretty") {
		base.Tracing.Pretty = override.Tracing.Pretty
	}
	if fieldSet(raw, "tracing", "path") {
		base.Tracing.Path = override.Tracing.Path
	}

	if override.Bus.Driver != "" {
		base.Bus.Driver = override.Bus.Driver
	}
	if override.Bus.URL != "" {
		base.Bus.URL = override.Bus.URL
	}
	if override.Bus.Subject != "" {
		base.Bus.Subject = override.Bus.Subject
	}
	if override.Bus.Name != "" {
		base.Bus.Name = override.Bus.Name
	}
	if override.Bus.ConnectTimeout != 0 {
		base.Bus.ConnectTimeout = override.Bus.ConnectTimeout
	}

	if override.Inspector.Width != 0 {
		base.Inspector.Width = override.Inspector.Width
	}
	if override.Inspector.Height != 0 {
		base.Inspector.Height = override.Inspector.Height
	}
}

// fieldSet reports whether the nested key path is present in raw.
func fieldSet(raw map[string]any, path ...string) bool {
	if len(path) == 0 || raw == nil {
		return false
	}
	current := any(raw)
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return false
		}
		val, ok := m[key]
		if !ok {
			return false
		}
		current = val
	}
	return true
}

func expandHomeDir(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if path == "~" {
		if home, err := os.UserHomeDir(); err == nil && strings.TrimSpace(home) != "" {
			return home
		}
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil && strings.TrimSpace(home) != "" {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
