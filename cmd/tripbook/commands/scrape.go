package commands

import (
	"errors"
	"log/slog"
	"os"
	"time"
	"tripbook-backend/lib/scrapers/clubsite"
	"tripbook-backend/lib/serviceutil"
	"tripbook-backend/services/trips/db"
	"tripbook-backend/services/trips/scraper"

	"github.com/spf13/cobra"
)

var (
	scrapeProfiles *[]string
	scrapeFuture   *bool
)

func init() {
	scrapeProfiles = scrapeCmd.Flags().StringArray("profile", nil, "Profile url to scrape. Repeatable, forces a scrape even when fresh. Defaults to everyone already known.")
	scrapeFuture = scrapeCmd.Flags().Bool("future", false, "Also re-scrape future activity pages regardless of their schedule.")
	rootCmd.AddCommand(scrapeCmd)
}

func openSession(cfg Config) clubsite.Session {
	session, err := clubsite.NewSession(clubsite.Credentials{
		Username: cfg.SiteUsername,
		Password: cfg.SitePassword,
	}, clubsite.Options{
		BaseURL:     cfg.SiteUrl,
		Browser:     cfg.Browser,
		BrowserPath: cfg.BrowserPath,
		Headless:    !cfg.Headful,
	})
	if err != nil {
		serviceutil.Fatal("failed to create session", err)
	}
	return session
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape [--profile <url>]... [--future]",
	Short: "Scrapes member profiles and their trip history into the database.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd.Context())

		session := openSession(cfg)
		defer session.Close()

		database, err := db.OpenDB(cfg.DatabaseUrl)
		if err != nil {
			serviceutil.Fatal("failed to open db", err)
		}
		defer database.Close()

		t1 := time.Now()
		summary, err := scraper.New(scraper.Options{
			Session:       session,
			Database:      database,
			Delay:         cfg.ScrapeDelay,
			IncludeFuture: *scrapeFuture,
			Profiles:      *scrapeProfiles,
		}).Run(cmd.Context())
		t2 := time.Now()

		for _, unit := range summary.Failed() {
			slog.Warn("unit failed",
				"kind", unit.Kind, "url", unit.Url,
				"state", unit.State, "err", unit.Err)
		}
		slog.Info("scrape finished",
			"seconds", t2.Sub(t1).Seconds(),
			"succeeded", summary.Succeeded(),
			"skipped", summary.Skipped(),
			"failed", len(summary.Failed()))

		if errors.Is(err, clubsite.ErrAuthenticationFailed) {
			serviceutil.Fatal("failed to authenticate against the site", err)
		}
		if err != nil {
			slog.Error("scrape aborted", "err", err)
			os.Exit(1)
		}
	},
}
