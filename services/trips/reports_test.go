package trips

import (
	"context"
	"testing"
	"time"
	"tripbook-backend/lib/scrapers/clubsite"
	"tripbook-backend/lib/testutil"
	"tripbook-backend/services/trips/db"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func setupReports(t *testing.T) (Reports, Reconciler) {
	database, cleanup := testutil.SetupDB(t, testutil.DBParams{
		Name:   "services/trips",
		Schema: db.Schema,
	})
	t.Cleanup(cleanup)
	return NewReports(database), NewReconciler(database)
}

func seedHistory(t *testing.T, reconciler Reconciler) {
	ctx := context.Background()

	_, err := reconciler.ReconcileProfile(ctx, clubsite.ProfileRecord{
		ProfileUrl: "https://club.example.org/members/jane-alpine",
		FullName:   "Jane Q. Alpine",
		Branch:     "Foothills",
	}, testNow)
	require.NoError(t, err)

	_, err = reconciler.ReconcileActivity(ctx, testDetail(), testNow)
	require.NoError(t, err)

	hike := clubsite.ActivityDetail{
		Url:          "https://club.example.org/activities/day-hike-mount-si",
		Name:         "Day Hike - Mount Si",
		ActivityType: "Day Hiking",
		DateStart:    time.Date(2025, time.June, 7, 0, 0, 0, 0, time.UTC),
		DateEnd:      time.Date(2025, time.June, 7, 0, 0, 0, 0, time.UTC),
		Status:       clubsite.ActivityStatusClosed,
		Result:       clubsite.ActivityResultSuccess,
		Members: []clubsite.MemberRow{
			{
				Name:         "Jane Q. Alpine",
				ProfileUrl:   "https://club.example.org/members/jane-alpine",
				Role:         "Participant",
				Registration: clubsite.MemberStatusRegistered,
			},
		},
	}
	_, err = reconciler.ReconcileActivity(ctx, hike, testNow)
	require.NoError(t, err)
}

func TestFindPeople(t *testing.T) {
	reports, reconciler := setupReports(t)
	seedHistory(t, reconciler)
	ctx := context.Background()

	byUrl, err := reports.FindPeople(ctx, "https://club.example.org/members/jane-alpine")
	require.NoError(t, err)
	require.Len(t, byUrl, 1)

	byName, err := reports.FindPeople(ctx, "Jane Q. Alpine")
	require.NoError(t, err)
	diff := cmp.Diff(byUrl, byName)
	require.Empty(t, diff)

	missing, err := reports.FindPeople(ctx, "https://club.example.org/members/ghost")
	require.NoError(t, err)
	require.Empty(t, missing)
}

func TestHistoryAndFilters(t *testing.T) {
	reports, reconciler := setupReports(t)
	seedHistory(t, reconciler)
	ctx := context.Background()

	jane := resolve(t, reports, "Jane Q. Alpine")

	history, err := reports.History(ctx, jane.ID, "")
	require.NoError(t, err)
	require.Len(t, history, 2)
	// newest first
	require.Equal(t, "Alpine Scramble - Guye Peak", history[0].Activity.Name)

	onlyHikes, err := reports.History(ctx, jane.ID, "day hiking")
	require.NoError(t, err)
	require.Len(t, onlyHikes, 1)
	require.Equal(t, "Day Hike - Mount Si", onlyHikes[0].Activity.Name)

	onDay, err := reports.ActivitiesOn(ctx, jane.ID,
		time.Date(2025, time.July, 13, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, onDay, 1)
	require.Equal(t, "Alpine Scramble - Guye Peak", onDay[0].Activity.Name)

	idle, err := reports.ActivitiesOn(ctx, jane.ID,
		time.Date(2025, time.July, 20, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Empty(t, idle)

	hikes, err := reports.DidDo(ctx, jane.ID, "mount si")
	require.NoError(t, err)
	require.Len(t, hikes, 1)
}

func TestCompanions(t *testing.T) {
	reports, reconciler := setupReports(t)
	seedHistory(t, reconciler)
	ctx := context.Background()

	jane := resolve(t, reports, "Jane Q. Alpine")
	companions, err := reports.Companions(ctx, jane.ID)
	require.NoError(t, err)
	require.Len(t, companions, 1)
	require.Equal(t, "Bob Boulder", companions[0].Person.FullName)
	require.Equal(t, int64(1), companions[0].SharedTrip)

	onDay, err := reports.ActivitiesOn(ctx, jane.ID,
		time.Date(2025, time.July, 12, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, onDay, 1)
	roster, err := reports.Roster(ctx, onDay[0].Activity.ID)
	require.NoError(t, err)
	require.Len(t, roster, 2)
}

func TestActivityStatus(t *testing.T) {
	reports, reconciler := setupReports(t)
	seedHistory(t, reconciler)
	ctx := context.Background()

	byName, err := reports.ActivityStatus(ctx, "guye peak")
	require.NoError(t, err)
	require.Len(t, byName, 1)
	require.Equal(t, clubsite.ActivityStatusClosed, byName[0].Activity.Status)
	require.Len(t, byName[0].Roster, 2)

	byUrl, err := reports.ActivityStatus(ctx,
		"https://club.example.org/activities/day-hike-mount-si")
	require.NoError(t, err)
	require.Len(t, byUrl, 1)
	require.Len(t, byUrl[0].Roster, 1)
}

func resolve(t *testing.T, reports Reports, name string) db.Person {
	t.Helper()
	people, err := reports.FindPeople(context.Background(), name)
	require.NoError(t, err)
	require.Len(t, people, 1)
	return people[0]
}
