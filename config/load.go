package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// Load reads the YAML file at path when it exists and applies DRDESK_* overrides.
// An empty path falls back to DRDESK_CONFIG, then to environment only.
func Load(path string) (*AppConfig, error) {
	if strings.TrimSpace(path) == "" {
		path = os.Getenv("DRDESK_CONFIG")
	}
	var cfg AppConfig
	if strings.TrimSpace(path) != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cleanenv.ReadConfig(path, &cfg); err != nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
			return normalize(&cfg), nil
		}
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env config: %w", err)
	}
	return normalize(&cfg), nil
}

func normalize(cfg *AppConfig) *AppConfig {
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	cfg.Incidents.DefaultSite = strings.ToUpper(strings.TrimSpace(cfg.Incidents.DefaultSite))
	exts := make([]string, 0, len(cfg.Attachments.AllowedExt))
	for _, ext := range cfg.Attachments.AllowedExt {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			exts = append(exts, ext)
		}
	}
	cfg.Attachments.AllowedExt = exts
	return cfg
}
