package trips

import (
	"testing"
	"time"
	"tripbook-backend/lib/scrapers/clubsite"

	"github.com/stretchr/testify/require"
)

func TestNextScrapeTime(t *testing.T) {
	now := time.Date(2025, time.August, 1, 12, 0, 0, 0, time.UTC)

	t.Run("future", func(t *testing.T) {
		next := nextScrapeTime(clubsite.ActivityStatusFuture,
			now.Add(time.Hour*24*10), now, 0)
		require.Equal(t, now.Add(futureInterval).Unix(), next)
	})

	t.Run("past tiers", func(t *testing.T) {
		next := nextScrapeTime(clubsite.ActivityStatusPast,
			now.Add(-time.Hour*24*2), now, 0)
		require.Equal(t, now.Add(recentPastInterval).Unix(), next)

		next = nextScrapeTime(clubsite.ActivityStatusPast,
			now.Add(-time.Hour*24*14), now, 0)
		require.Equal(t, now.Add(stalePastInterval).Unix(), next)

		next = nextScrapeTime(clubsite.ActivityStatusPast,
			now.Add(-time.Hour*24*60), now, 0)
		require.Equal(t, now.Add(oldPastInterval).Unix(), next)
	})

	t.Run("past gives up after a year", func(t *testing.T) {
		next := nextScrapeTime(clubsite.ActivityStatusPast,
			now.Add(-time.Hour*24*400), now, 0)
		require.Zero(t, next)
	})

	t.Run("closed doubles up to the cap", func(t *testing.T) {
		next := nextScrapeTime(clubsite.ActivityStatusClosed,
			now.Add(-time.Hour*24), now, 0)
		require.Equal(t, now.Add(closedBaseInterval).Unix(), next)

		next = nextScrapeTime(clubsite.ActivityStatusClosed,
			now.Add(-time.Hour*24), now, closedBaseInterval)
		require.Equal(t, now.Add(closedBaseInterval*2).Unix(), next)

		next = nextScrapeTime(clubsite.ActivityStatusClosed,
			now.Add(-time.Hour*24), now, closedMaxInterval)
		require.Equal(t, now.Add(closedMaxInterval).Unix(), next)
	})

	t.Run("closed gives up after ninety days", func(t *testing.T) {
		next := nextScrapeTime(clubsite.ActivityStatusClosed,
			now.Add(-time.Hour*24*120), now, 0)
		require.Zero(t, next)
	})
}
