package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dgnsrekt/twintype/internal/provider"
)

// StartupTab is one provider tab to open when the browser is launched.
// Either Provider or URL is set; a bare provider opens its start page.
type StartupTab struct {
	Provider string `yaml:"provider,omitempty"`
	URL      string `yaml:"url,omitempty"`
}

// StartupConfig is the top-level YAML configuration for startup tabs.
type StartupConfig struct {
	Tabs []StartupTab `yaml:"tabs"`
}

// LoadStartup reads and validates a startup YAML file. Returns an
// os.ErrNotExist-wrapped error if the file is absent (caller silently skips
// in that case).
func LoadStartup(path string) (*StartupConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("startup config: %w", err)
	}
	var cfg StartupConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("startup config: %w", err)
	}
	for i, t := range cfg.Tabs {
		switch {
		case t.URL == "" && t.Provider == "":
			return nil, fmt.Errorf("startup config: tabs[%d] needs provider or url", i)
		case t.Provider != "":
			if _, ok := provider.Parse(t.Provider); !ok {
				return nil, fmt.Errorf("startup config: tabs[%d] unknown provider %q", i, t.Provider)
			}
		default:
			if _, ok := provider.Classify(t.URL); !ok {
				return nil, fmt.Errorf("startup config: tabs[%d] url %q matches no provider", i, t.URL)
			}
		}
	}
	return &cfg, nil
}

// URLs resolves every entry to the URL to open.
func (c *StartupConfig) URLs() []string {
	out := make([]string, 0, len(c.Tabs))
	for _, t := range c.Tabs {
		if t.URL != "" {
			out = append(out, t.URL)
			continue
		}
		name, _ := provider.Parse(t.Provider)
		out = append(out, provider.StartURL(name))
	}
	return out
}

// DefaultStartupURLs opens one tab per provider.
func DefaultStartupURLs() []string {
	names := provider.Names()
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, provider.StartURL(n))
	}
	return out
}
