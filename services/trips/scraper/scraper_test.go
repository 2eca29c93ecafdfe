package scraper

import (
	"context"
	"fmt"
	"testing"
	"time"
	"tripbook-backend/lib/scrapers/clubsite"
	"tripbook-backend/lib/testutil"
	"tripbook-backend/services/trips/db"

	"github.com/stretchr/testify/require"
)

const (
	janeUrl = "https://club.example.org/members/jane-alpine"
	bobUrl  = "https://club.example.org/members/bob-boulder"
	tripUrl = "https://club.example.org/activities/alpine-scramble-guye-peak"
)

var testNow = time.Date(2025, time.August, 1, 12, 0, 0, 0, time.UTC)

// fakeSession serves recorded pages. Unknown urls yield a page that
// parses as nothing so the unit is skipped, not retried.
type fakeSession struct {
	pages    map[string]string
	logins   int
	fetches  []string
	expireOn map[int]bool
	failWith map[string]error
}

func (f *fakeSession) Login(ctx context.Context) error {
	f.logins++
	return nil
}

func (f *fakeSession) Fetch(ctx context.Context, url string) (clubsite.RawPage, error) {
	f.fetches = append(f.fetches, url)
	if f.expireOn[len(f.fetches)] {
		delete(f.expireOn, len(f.fetches))
		return clubsite.RawPage{}, clubsite.ErrSessionExpired
	}
	if err, ok := f.failWith[url]; ok {
		return clubsite.RawPage{}, err
	}
	html, ok := f.pages[url]
	if !ok {
		html = "<html><body><li class='user menu'></li></body></html>"
	}
	return clubsite.RawPage{Url: url, Html: html}, nil
}

func (f *fakeSession) Close() error { return nil }

func (f *fakeSession) countFetches(url string) int {
	n := 0
	for _, fetched := range f.fetches {
		if fetched == url {
			n++
		}
	}
	return n
}

func profilePage(name string) string {
	return fmt.Sprintf(`<html><body>
		<li class="user menu"></li>
		<div class="profile-wrapper">
			<h1>%s</h1>
			<div class="email"><a href="mailto:x@example.org">x@example.org</a></div>
		</div>
	</body></html>`, name)
}

func listingPage() string {
	return fmt.Sprintf(`<html><body>
		<li class="user menu"></li>
		<table class="listing"><tbody>
			<tr class="activity-listing">
				<td data-th="Activity/Event"><a href="%s">Alpine Scramble - Guye Peak</a></td>
				<td data-th="Role: Result"><span>Leader</span><span>: </span><span>Successful</span></td>
				<td data-th="Registration Status">Registered</td>
				<td data-th="Trip Result">Successful</td>
			</tr>
		</tbody></table>
	</body></html>`, tripUrl)
}

func tripPage() string {
	return fmt.Sprintf(`<html><body>
		<li class="user menu"></li>
		<h1 class="documentFirstHeading">Alpine Scramble - Guye Peak</h1>
		<div class="error">This activity has been closed. The trip was successful.</div>
		<div class="program-core">
			<ul class="details"><li>Sat, Jul 12, 2025</li></ul>
		</div>
		<div data-tab="roster-tab">
			<div class="roster-contact">
				<a href="%s?ajax_load=1">jane q. alpine</a>
				<div class="roster-position">Leader</div>
			</div>
			<div class="roster-contact">
				<a href="%s?ajax_load=1">bob boulder</a>
			</div>
		</div>
	</body></html>`, janeUrl, bobUrl)
}

func testPages() map[string]string {
	return map[string]string{
		janeUrl:                         profilePage("jane q. alpine"),
		janeUrl + "/member-activities":  listingPage(),
		tripUrl:                         tripPage(),
	}
}

func setupScraper(t *testing.T, session clubsite.Session, profiles []string) (*Scraper, *db.Queries) {
	database, cleanup := testutil.SetupDB(t, testutil.DBParams{
		Name:   "services/trips/scraper",
		Schema: db.Schema,
	})
	t.Cleanup(cleanup)

	scraper := New(Options{
		Session:  session,
		Database: database,
		Delay:    time.Millisecond,
		Profiles: profiles,
		Now:      func() time.Time { return testNow },
	})
	return scraper, db.New(database)
}

func TestRun(t *testing.T) {
	session := &fakeSession{pages: testPages()}
	scraper, qry := setupScraper(t, session, []string{janeUrl})

	summary, err := scraper.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, session.logins)
	require.Empty(t, summary.Failed())
	require.Equal(t, 2, summary.Succeeded())

	jane, err := qry.GetPersonByProfileUrl(context.Background(), janeUrl)
	require.NoError(t, err)
	require.True(t, jane.IsScraped)

	// bob only exists because the roster mentioned him
	bob, err := qry.GetPersonByProfileUrl(context.Background(), bobUrl)
	require.NoError(t, err)
	require.False(t, bob.IsScraped)
	require.Equal(t, "Bob Boulder", bob.FullName)

	activity, err := qry.GetActivityByUrl(context.Background(), tripUrl)
	require.NoError(t, err)
	require.Equal(t, clubsite.ActivityStatusClosed, activity.Status)

	// the listing row carried jane's personal result, the roster did not
	membership, err := qry.GetMembership(context.Background(), db.GetMembershipParams{
		PersonID:   jane.ID,
		ActivityID: activity.ID,
		Role:       "Leader",
	})
	require.NoError(t, err)
	require.Equal(t, clubsite.MemberResultSuccess, membership.Result)
}

func TestRunReauthenticatesOnExpiredSession(t *testing.T) {
	session := &fakeSession{
		pages:    testPages(),
		expireOn: map[int]bool{2: true},
	}
	scraper, _ := setupScraper(t, session, []string{janeUrl})

	summary, err := scraper.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, session.logins)
	require.Empty(t, summary.Failed())
}

func TestRunSkipsKnownActivities(t *testing.T) {
	session := &fakeSession{pages: testPages()}
	scraper, _ := setupScraper(t, session, []string{janeUrl})

	_, err := scraper.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, session.countFetches(tripUrl))

	// a second run finds the activity stored with a scheduled re-scrape
	// still in the future and leaves the page alone
	again := New(Options{
		Session:  session,
		Database: scraper.opts.Database,
		Delay:    time.Millisecond,
		Profiles: []string{janeUrl},
		Now:      func() time.Time { return testNow.Add(time.Minute) },
	})
	_, err = again.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, session.countFetches(tripUrl))
}

func TestRunSurvivesPageLoadTimeout(t *testing.T) {
	listingUrl := janeUrl + "/member-activities"
	session := &fakeSession{
		pages: testPages(),
		failWith: map[string]error{
			listingUrl: &clubsite.FetchError{
				Url: listingUrl,
				Err: context.DeadlineExceeded,
			},
		},
	}
	scraper, qry := setupScraper(t, session, []string{janeUrl})

	// a page that keeps timing out costs that page its trip history,
	// not the run
	summary, err := scraper.Run(context.Background())
	require.NoError(t, err)

	failed := summary.Failed()
	require.Len(t, failed, 1)
	require.Equal(t, UnitProfile, failed[0].Kind)
	require.Equal(t, listingUrl, failed[0].Url)
	require.Equal(t, StateFetching, failed[0].State)

	// the profile itself still landed
	require.Equal(t, 1, summary.Succeeded())
	jane, err := qry.GetPersonByProfileUrl(context.Background(), janeUrl)
	require.NoError(t, err)
	require.True(t, jane.IsScraped)
}

func TestRunScrapesExplicitActivities(t *testing.T) {
	session := &fakeSession{pages: testPages()}
	database, cleanup := testutil.SetupDB(t, testutil.DBParams{
		Name:   "services/trips/scraper",
		Schema: db.Schema,
	})
	t.Cleanup(cleanup)

	scraper := New(Options{
		Session:    session,
		Database:   database,
		Delay:      time.Millisecond,
		Activities: []string{tripUrl},
		Now:        func() time.Time { return testNow },
	})
	summary, err := scraper.Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, summary.Failed())
	require.Equal(t, 1, summary.Succeeded())

	// only the named page was touched
	require.Equal(t, []string{tripUrl}, session.fetches)

	activity, err := db.New(database).GetActivityByUrl(context.Background(), tripUrl)
	require.NoError(t, err)
	require.Equal(t, clubsite.ActivityStatusClosed, activity.Status)
}

func TestRunRecordsParseFailures(t *testing.T) {
	pages := testPages()
	pages[tripUrl] = "<html><body><li class='user menu'></li><p>not an activity</p></body></html>"
	session := &fakeSession{pages: pages}
	scraper, qry := setupScraper(t, session, []string{janeUrl})

	summary, err := scraper.Run(context.Background())
	require.NoError(t, err)

	failed := summary.Failed()
	require.Len(t, failed, 1)
	require.Equal(t, UnitActivity, failed[0].Kind)
	require.Equal(t, StateParsing, failed[0].State)

	// the broken page never made it into the database
	_, err = qry.GetActivityByUrl(context.Background(), tripUrl)
	require.Error(t, err)
}
