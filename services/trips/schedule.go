package trips

import (
	"time"
	"tripbook-backend/lib/scrapers/clubsite"
)

// Re-scrape scheduling. Future activities change often, past ones only
// until the leader closes them out, closed ones only through late
// roster edits. A next scrape time of zero means never again.
const (
	futureInterval = time.Hour * 12

	recentPastInterval = time.Hour * 24
	stalePastInterval  = time.Hour * 24 * 7
	oldPastInterval    = time.Hour * 24 * 30
	pastGiveUpAge      = time.Hour * 24 * 365

	closedBaseInterval = time.Hour * 6
	closedMaxInterval  = time.Hour * 24 * 21
	closedGiveUpAge    = time.Hour * 24 * 90
)

func nextScrapeTime(status string, dateEnd, now time.Time, prevInterval time.Duration) int64 {
	switch status {
	case clubsite.ActivityStatusFuture:
		return now.Add(futureInterval).Unix()

	case clubsite.ActivityStatusPast:
		age := now.Sub(dateEnd)
		switch {
		case age > pastGiveUpAge:
			// never closed out after a year, the leader is not going to
			return 0
		case age > time.Hour*24*30:
			return now.Add(oldPastInterval).Unix()
		case age > time.Hour*24*7:
			return now.Add(stalePastInterval).Unix()
		default:
			return now.Add(recentPastInterval).Unix()
		}

	case clubsite.ActivityStatusClosed:
		if now.Sub(dateEnd) > closedGiveUpAge {
			return 0
		}
		interval := prevInterval * 2
		if interval < closedBaseInterval {
			interval = closedBaseInterval
		}
		if interval > closedMaxInterval {
			interval = closedMaxInterval
		}
		return now.Add(interval).Unix()
	}
	return now.Add(futureInterval).Unix()
}
