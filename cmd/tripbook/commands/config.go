package commands

import (
	"context"
	"time"
	"tripbook-backend/lib/configutil"
	"tripbook-backend/lib/serviceutil"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	DatabaseUrl  string        `json:"database_url" env:"DATABASE_URL"`
	SiteUrl      string        `json:"site_url" env:"SITE_URL"`
	SiteUsername string        `json:"site_username" env:"SITE_USERNAME"`
	SitePassword string        `json:"site_password" env:"SITE_PASSWORD"`
	Browser      string        `json:"browser" env:"BROWSER"`
	BrowserPath  string        `json:"browser_path" env:"BROWSER_PATH"`
	ScrapeDelay  time.Duration `json:"scrape_delay" env:"SCRAPE_DELAY"`
	// run the browser with a visible window, useful when debugging
	// selectors against the live site
	Headful bool `json:"headful" env:"HEADFUL"`
}

// loadConfig reads the optional config file, overlays any environment
// variables set on top of it and fills in defaults last.
func loadConfig(ctx context.Context) Config {
	var cfg Config
	if *configPath != "" {
		var err error
		cfg, err = configutil.ReadConfig[Config](*configPath)
		if err != nil {
			serviceutil.Fatal("failed to read config file", err)
		}
	}

	err := envconfig.Process(ctx, &cfg)
	if err != nil {
		serviceutil.Fatal("failed to read config from environment", err)
	}

	if cfg.DatabaseUrl == "" {
		cfg.DatabaseUrl = "tripbook.db"
	}
	if cfg.SiteUrl == "" {
		cfg.SiteUrl = "https://www.mountaineers.org"
	}
	if cfg.Browser == "" {
		cfg.Browser = "chrome"
	}
	if cfg.ScrapeDelay <= 0 {
		cfg.ScrapeDelay = time.Second
	}
	return cfg
}
