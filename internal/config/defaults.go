package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/kurabe/data/db/kurabe.db"
	}

	applyProviderDefaults(&cfg.Providers.Primary, ProviderConfig{
		Name:      "mistral",
		BaseURL:   "https://api.mistral.ai/v1",
		Model:     "mistral-small",
		APIKeyEnv: "MISTRAL_API_KEY",
	})
	applyProviderDefaults(&cfg.Providers.Secondary, ProviderConfig{
		Name:      "openrouter",
		BaseURL:   "https://openrouter.ai/api/v1",
		Model:     "deepseek/deepseek-r1-distill-llama-70b:free",
		APIKeyEnv: "OPENROUTER_API_KEY",
		Headers:   map[string]string{"HTTP-Referer": "http://localhost"},
	})

	if cfg.Scan.MatchThreshold == 0 {
		cfg.Scan.MatchThreshold = 0.5
	}
	if cfg.Scan.TopK == 0 {
		cfg.Scan.TopK = 5
	}
	if cfg.Scan.Workers == 0 {
		cfg.Scan.Workers = 4
	}
	if cfg.Scan.PromptChars == 0 {
		cfg.Scan.PromptChars = 1500
	}
	if cfg.Statistical.MaxFeatures == 0 {
		cfg.Statistical.MaxFeatures = 5000
	}
	if cfg.Credits.DailyAllowance == 0 {
		cfg.Credits.DailyAllowance = 20
	}
	if cfg.Credits.ResetInterval == 0 {
		cfg.Credits.ResetInterval = 24 * time.Hour
	}
	if cfg.Credits.CheckInterval == 0 {
		cfg.Credits.CheckInterval = time.Hour
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".txt", ".md", ".pdf", ".docx", ".doc", ".xlsx"}
	}
}

func applyProviderDefaults(p *ProviderConfig, def ProviderConfig) {
	if p.Name == "" {
		p.Name = def.Name
	}
	if p.BaseURL == "" {
		p.BaseURL = def.BaseURL
	}
	if p.Model == "" {
		p.Model = def.Model
	}
	if p.APIKey == "" && p.APIKeyEnv == "" {
		p.APIKeyEnv = def.APIKeyEnv
	}
	if p.Timeout == 0 {
		p.Timeout = 30 * time.Second
	}
	if p.RequestsPerSecond == 0 {
		p.RequestsPerSecond = 5
	}
	if p.Burst == 0 {
		p.Burst = 1
	}
	if p.Headers == nil && def.Headers != nil {
		p.Headers = make(map[string]string, len(def.Headers))
		for k, v := range def.Headers {
			p.Headers[k] = v
		}
	}
}
