package scraper

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"
	"tripbook-backend/lib/scrapers/clubsite"
	"tripbook-backend/services/trips"
	"tripbook-backend/services/trips/db"

	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("services/trips/scraper")

// profiles scraped more recently than this are skipped unless named
// explicitly
const profileFreshness = time.Hour * 24 * 7

type Options struct {
	Session  clubsite.Session
	Database *sql.DB
	// minimum spacing between page fetches
	Delay time.Duration
	// scrape future activity pages even when their schedule says wait
	IncludeFuture bool
	// profile urls to scrape. empty means everyone already known, named
	// profiles are scraped even when fresh
	Profiles []string
	// activity urls to scrape instead of the profile walk
	Activities []string
	// overridable clock for tests
	Now func() time.Time
}

// Scraper walks profiles, their activity listings and due activity
// pages, reconciling each scraped unit into the database. Page-level
// failures are recorded and skipped, only authentication failures and
// context cancellation abort a run.
type Scraper struct {
	session    clubsite.Session
	qry        *db.Queries
	reconciler trips.Reconciler
	limiter    *rate.Limiter
	backoff    time.Duration
	opts       Options
	now        func() time.Time

	// activity urls already scraped in this run
	visited map[string]bool
	summary RunSummary
}

func New(opts Options) *Scraper {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	delay := opts.Delay
	if delay <= 0 {
		delay = time.Second
	}
	return &Scraper{
		session:    opts.Session,
		qry:        db.New(opts.Database),
		reconciler: trips.NewReconciler(opts.Database),
		limiter:    rate.NewLimiter(rate.Every(delay), 1),
		backoff:    delay,
		opts:       opts,
		now:        opts.Now,
		visited:    map[string]bool{},
	}
}

// fatal reports whether an error should end the whole run instead of
// skipping the current unit. Fatality comes from the caller's own
// context, never from the fetch error chain: a page-load timeout
// surfaces as context.DeadlineExceeded inside a FetchError and is
// still just a per-unit failure.
func fatal(ctx context.Context, err error) bool {
	return errors.Is(err, clubsite.ErrAuthenticationFailed) || ctx.Err() != nil
}

func (s *Scraper) Run(ctx context.Context) (RunSummary, error) {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()

	s.summary = RunSummary{Started: s.now()}
	finish := func() RunSummary {
		s.summary.Finished = s.now()
		return s.summary
	}

	err := s.session.Login(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return finish(), err
	}
	slog.InfoContext(ctx, "logged in")

	// explicitly named activities replace the profile walk entirely
	if len(s.opts.Activities) > 0 {
		for _, activityUrl := range s.opts.Activities {
			if ctx.Err() != nil {
				return finish(), ctx.Err()
			}
			_, _, err := s.scrapeActivity(ctx, activityUrl)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return finish(), err
			}
		}
		return finish(), nil
	}

	profiles, forced, err := s.profileUrls(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return finish(), err
	}
	span.SetAttributes(attribute.Int("profiles", len(profiles)))

	for _, profileUrl := range profiles {
		if ctx.Err() != nil {
			return finish(), ctx.Err()
		}
		err := s.scrapeProfile(ctx, profileUrl, forced)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return finish(), err
		}
	}

	due, err := s.qry.ListDueActivities(ctx, s.now().Unix())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return finish(), err
	}
	for _, activity := range due {
		if ctx.Err() != nil {
			return finish(), ctx.Err()
		}
		if s.visited[activity.ActivityUrl] {
			continue
		}
		_, _, err := s.scrapeActivity(ctx, activity.ActivityUrl)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return finish(), err
		}
	}

	return finish(), nil
}

// profileUrls resolves which profiles this run covers. Explicitly named
// profiles are forced, discovered ones respect the freshness window.
func (s *Scraper) profileUrls(ctx context.Context) ([]string, bool, error) {
	if len(s.opts.Profiles) > 0 {
		return s.opts.Profiles, true, nil
	}

	persons, err := s.qry.ListScrapeablePersons(ctx)
	if err != nil {
		return nil, false, err
	}
	var urls []string
	for _, person := range persons {
		urls = append(urls, person.ProfileUrl)
	}
	return urls, false, nil
}

func (s *Scraper) scrapeProfile(ctx context.Context, profileUrl string, forced bool) error {
	ctx, span := tracer.Start(ctx, "scrapeProfile")
	defer span.End()
	span.SetAttributes(attribute.String("url", profileUrl))

	if !forced {
		person, err := s.qry.GetPersonByProfileUrl(ctx, profileUrl)
		if err == nil && person.IsScraped &&
			s.now().Sub(time.Unix(person.LastScraped, 0)) < profileFreshness {
			slog.DebugContext(ctx, "profile is fresh, skipping", "url", profileUrl)
			s.summary.record(UnitProfile, profileUrl, StateSkipped, nil)
			return nil
		}
	}

	slog.InfoContext(ctx, "scraping profile", "url", profileUrl)

	page, err := s.fetchPage(ctx, profileUrl)
	if err != nil {
		if fatal(ctx, err) {
			return err
		}
		slog.WarnContext(ctx, "failed to fetch profile", "url", profileUrl, "err", err)
		s.summary.record(UnitProfile, profileUrl, StateFetching, err)
		return nil
	}

	rec, err := clubsite.ParseProfile(page)
	if err != nil {
		slog.WarnContext(ctx, "failed to parse profile", "url", profileUrl, "err", err)
		s.summary.record(UnitProfile, profileUrl, StateParsing, err)
		return nil
	}

	person, err := s.reconciler.ReconcileProfile(ctx, rec, s.now())
	if err != nil {
		slog.WarnContext(ctx, "failed to reconcile profile", "url", profileUrl, "err", err)
		s.summary.record(UnitProfile, profileUrl, StateReconciling, err)
		return nil
	}
	s.summary.record(UnitProfile, profileUrl, StateDone, nil)

	// activity pages linked straight from the profile body
	for _, link := range rec.ActivityLinks {
		_, _, err := s.ensureActivity(ctx, link)
		if err != nil {
			return err
		}
	}

	return s.scrapeListing(ctx, person)
}

// scrapeListing pages through a member's activity history, pulling in
// unknown or due activities and reconciling the member's part in each.
func (s *Scraper) scrapeListing(ctx context.Context, person db.Person) error {
	ctx, span := tracer.Start(ctx, "scrapeListing")
	defer span.End()

	pageUrl := strings.TrimSuffix(person.ProfileUrl, "/") + "/member-activities"
	for pageUrl != "" {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		page, err := s.fetchPage(ctx, pageUrl)
		if err != nil {
			if fatal(ctx, err) {
				return err
			}
			slog.WarnContext(ctx, "failed to fetch activity listing", "url", pageUrl, "err", err)
			s.summary.record(UnitProfile, pageUrl, StateFetching, err)
			return nil
		}

		entries, next, err := clubsite.ParseActivityListing(page)
		if err != nil {
			slog.WarnContext(ctx, "failed to parse activity listing", "url", pageUrl, "err", err)
			s.summary.record(UnitProfile, pageUrl, StateParsing, err)
			return nil
		}

		for _, entry := range entries {
			err := s.handleEntry(ctx, person, entry)
			if err != nil {
				return err
			}
		}
		pageUrl = next
	}
	return nil
}

func (s *Scraper) handleEntry(ctx context.Context, person db.Person, entry clubsite.ActivityEntry) error {
	activity, err := s.qry.GetActivityByUrl(ctx, entry.ActivityUrl)
	known := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	if entry.IsCanceled && !known {
		// never tracked, nothing to remove
		return nil
	}

	needsScrape := !known ||
		s.isDue(activity) ||
		(entry.IsFuture && s.opts.IncludeFuture)
	if needsScrape {
		scraped, ok, err := s.ensureActivity(ctx, entry.ActivityUrl)
		if err != nil {
			return err
		}
		if !ok {
			if !known {
				return nil
			}
			// keep membership info against the stale copy
		} else {
			activity = scraped
		}
	}

	err = s.reconciler.ReconcileMembership(ctx, person.ID, activity.ID, entry)
	if err != nil {
		slog.WarnContext(ctx, "failed to reconcile membership",
			"person", person.FullName, "activity", entry.ActivityUrl, "err", err)
	}
	return nil
}

func (s *Scraper) isDue(activity db.Activity) bool {
	return activity.NextScrape != 0 && activity.NextScrape <= s.now().Unix()
}

// ensureActivity scrapes an activity page unless this run already did.
// ok is false when the unit was skipped over a page-level failure.
func (s *Scraper) ensureActivity(ctx context.Context, url string) (db.Activity, bool, error) {
	if s.visited[url] {
		activity, err := s.qry.GetActivityByUrl(ctx, url)
		if err != nil {
			return db.Activity{}, false, nil
		}
		return activity, true, nil
	}
	return s.scrapeActivity(ctx, url)
}

func (s *Scraper) scrapeActivity(ctx context.Context, url string) (db.Activity, bool, error) {
	ctx, span := tracer.Start(ctx, "scrapeActivity")
	defer span.End()
	span.SetAttributes(attribute.String("url", url))

	s.visited[url] = true
	slog.InfoContext(ctx, "scraping activity", "url", url)

	page, err := s.fetchPage(ctx, url)
	if err != nil {
		if fatal(ctx, err) {
			return db.Activity{}, false, err
		}
		slog.WarnContext(ctx, "failed to fetch activity", "url", url, "err", err)
		s.summary.record(UnitActivity, url, StateFetching, err)
		return db.Activity{}, false, nil
	}

	detail, err := clubsite.ParseActivityDetail(page, s.now())
	if err != nil {
		slog.WarnContext(ctx, "failed to parse activity", "url", url, "err", err)
		s.summary.record(UnitActivity, url, StateParsing, err)
		return db.Activity{}, false, nil
	}

	activity, err := s.reconciler.ReconcileActivity(ctx, detail, s.now())
	if err != nil {
		slog.WarnContext(ctx, "failed to reconcile activity", "url", url, "err", err)
		s.summary.record(UnitActivity, url, StateReconciling, err)
		return db.Activity{}, false, nil
	}

	s.summary.record(UnitActivity, url, StateDone, nil)
	return activity, true, nil
}

// fetchPage fetches one page, retrying transport failures with backoff
// and re-authenticating once when the session has expired.
func (s *Scraper) fetchPage(ctx context.Context, url string) (clubsite.RawPage, error) {
	page, err := s.fetchWithRetry(ctx, url)
	if errors.Is(err, clubsite.ErrSessionExpired) {
		slog.WarnContext(ctx, "session expired, logging in again", "url", url)
		err = s.session.Login(ctx)
		if err != nil {
			return clubsite.RawPage{}, err
		}
		page, err = s.fetchWithRetry(ctx, url)
	}
	return page, err
}

func (s *Scraper) fetchWithRetry(ctx context.Context, url string) (clubsite.RawPage, error) {
	var page clubsite.RawPage
	backoff := retry.WithMaxRetries(3, retry.NewExponential(s.backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := s.limiter.Wait(ctx)
		if err != nil {
			return err
		}
		fetched, err := s.session.Fetch(ctx, url)
		if err != nil {
			var fetchErr *clubsite.FetchError
			if errors.As(err, &fetchErr) {
				return retry.RetryableError(err)
			}
			return err
		}
		page = fetched
		return nil
	})
	return page, err
}
