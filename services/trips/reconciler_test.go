package trips

import (
	"context"
	"testing"
	"time"
	"tripbook-backend/lib/scrapers/clubsite"
	"tripbook-backend/lib/testutil"
	"tripbook-backend/services/trips/db"

	"github.com/stretchr/testify/require"
)

func setupReconciler(t *testing.T) (Reconciler, *db.Queries) {
	database, cleanup := testutil.SetupDB(t, testutil.DBParams{
		Name:   "services/trips",
		Schema: db.Schema,
	})
	t.Cleanup(cleanup)
	return NewReconciler(database), db.New(database)
}

var testNow = time.Date(2025, time.August, 1, 12, 0, 0, 0, time.UTC)

func TestReconcileProfile(t *testing.T) {
	reconciler, qry := setupReconciler(t)
	ctx := context.Background()

	rec := clubsite.ProfileRecord{
		ProfileUrl:  "https://club.example.org/members/jane-alpine",
		FullName:    "Jane Q. Alpine",
		PortraitUrl: "https://club.example.org/portraits/jane.jpg",
		Email:       "jane@example.org",
		Branch:      "Foothills",
	}

	person, err := reconciler.ReconcileProfile(ctx, rec, testNow)
	require.NoError(t, err)
	require.True(t, person.IsScraped)
	require.Equal(t, testNow.Unix(), person.LastScraped)

	// reconciling the same profile again must reuse the row
	rec.Email = "jane.alpine@example.org"
	again, err := reconciler.ReconcileProfile(ctx, rec, testNow.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, person.ID, again.ID)

	stored, err := qry.GetPersonById(ctx, person.ID)
	require.NoError(t, err)
	require.Equal(t, "jane.alpine@example.org", stored.Email)
}

func TestReconcileProfileClaimsStub(t *testing.T) {
	reconciler, qry := setupReconciler(t)
	ctx := context.Background()

	stubID, err := qry.CreatePerson(ctx, db.CreatePersonParams{
		FullName: "Bob Boulder",
	})
	require.NoError(t, err)

	person, err := reconciler.ReconcileProfile(ctx, clubsite.ProfileRecord{
		ProfileUrl: "https://club.example.org/members/bob-boulder",
		FullName:   "Bob Boulder",
	}, testNow)
	require.NoError(t, err)
	require.Equal(t, stubID, person.ID)
	require.Equal(t, "https://club.example.org/members/bob-boulder", person.ProfileUrl)
}

func TestReconcileProfileRejectsAnonymous(t *testing.T) {
	reconciler, _ := setupReconciler(t)

	_, err := reconciler.ReconcileProfile(context.Background(), clubsite.ProfileRecord{
		ProfileUrl: "https://club.example.org/members/ghost",
	}, testNow)
	var integrityErr *IntegrityError
	require.ErrorAs(t, err, &integrityErr)
}

func testDetail() clubsite.ActivityDetail {
	return clubsite.ActivityDetail{
		Url:       "https://club.example.org/activities/alpine-scramble-guye-peak",
		Name:      "Alpine Scramble - Guye Peak",
		DateStart: time.Date(2025, time.July, 12, 0, 0, 0, 0, time.UTC),
		DateEnd:   time.Date(2025, time.July, 13, 0, 0, 0, 0, time.UTC),
		Committee: "Foothills Climbing Committee",
		Status:    clubsite.ActivityStatusClosed,
		Result:    clubsite.ActivityResultSuccess,
		Members: []clubsite.MemberRow{
			{
				Name:         "Jane Q. Alpine",
				ProfileUrl:   "https://club.example.org/members/jane-alpine",
				Role:         "Leader",
				Registration: clubsite.MemberStatusRegistered,
			},
			{
				Name:         "Bob Boulder",
				ProfileUrl:   "https://club.example.org/members/bob-boulder",
				Role:         "Participant",
				Registration: clubsite.MemberStatusRegistered,
			},
		},
	}
}

func TestReconcileActivity(t *testing.T) {
	reconciler, qry := setupReconciler(t)
	ctx := context.Background()

	activity, err := reconciler.ReconcileActivity(ctx, testDetail(), testNow)
	require.NoError(t, err)
	require.Equal(t, clubsite.ActivityStatusClosed, activity.Status)
	require.NotZero(t, activity.NextScrape)

	// both roster members became people even though neither profile has
	// been scraped yet
	roster, err := qry.ListActivityRoster(ctx, activity.ID)
	require.NoError(t, err)
	require.Len(t, roster, 2)
	for _, row := range roster {
		require.False(t, row.Person.IsScraped)
	}

	again, err := reconciler.ReconcileActivity(ctx, testDetail(), testNow.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, activity.ID, again.ID)

	roster, err = qry.ListActivityRoster(ctx, again.ID)
	require.NoError(t, err)
	require.Len(t, roster, 2)
}

func TestReconcileActivityDropsVanishedMembers(t *testing.T) {
	reconciler, qry := setupReconciler(t)
	ctx := context.Background()

	activity, err := reconciler.ReconcileActivity(ctx, testDetail(), testNow)
	require.NoError(t, err)

	shrunk := testDetail()
	shrunk.Members = shrunk.Members[:1]
	_, err = reconciler.ReconcileActivity(ctx, shrunk, testNow.Add(time.Hour))
	require.NoError(t, err)

	roster, err := qry.ListActivityRoster(ctx, activity.ID)
	require.NoError(t, err)
	require.Len(t, roster, 1)
	require.Equal(t, "Jane Q. Alpine", roster[0].Person.FullName)
}

func TestReconcileActivityKeepsRosterWhenEmpty(t *testing.T) {
	reconciler, qry := setupReconciler(t)
	ctx := context.Background()

	activity, err := reconciler.ReconcileActivity(ctx, testDetail(), testNow)
	require.NoError(t, err)

	empty := testDetail()
	empty.Members = nil
	_, err = reconciler.ReconcileActivity(ctx, empty, testNow.Add(time.Hour))
	require.NoError(t, err)

	roster, err := qry.ListActivityRoster(ctx, activity.ID)
	require.NoError(t, err)
	require.Len(t, roster, 2)
}

func TestReconcileActivityDateInvariant(t *testing.T) {
	reconciler, _ := setupReconciler(t)

	backwards := testDetail()
	backwards.DateStart, backwards.DateEnd = backwards.DateEnd, backwards.DateStart

	_, err := reconciler.ReconcileActivity(context.Background(), backwards, testNow)
	var integrityErr *IntegrityError
	require.ErrorAs(t, err, &integrityErr)
}

func TestReconcileMembership(t *testing.T) {
	reconciler, qry := setupReconciler(t)
	ctx := context.Background()

	activity, err := reconciler.ReconcileActivity(ctx, testDetail(), testNow)
	require.NoError(t, err)
	person, err := qry.GetPersonByProfileUrl(ctx,
		"https://club.example.org/members/bob-boulder")
	require.NoError(t, err)

	err = reconciler.ReconcileMembership(ctx, person.ID, activity.ID, clubsite.ActivityEntry{
		ActivityUrl:  activity.ActivityUrl,
		Role:         "Participant",
		Registration: clubsite.MemberStatusRegistered,
		MemberResult: clubsite.MemberResultSuccess,
	})
	require.NoError(t, err)

	membership, err := qry.GetMembership(ctx, db.GetMembershipParams{
		PersonID:   person.ID,
		ActivityID: activity.ID,
		Role:       "Participant",
	})
	require.NoError(t, err)
	require.Equal(t, clubsite.MemberResultSuccess, membership.Result)
}

func TestReconcileMembershipCanceledRemoves(t *testing.T) {
	reconciler, qry := setupReconciler(t)
	ctx := context.Background()

	activity, err := reconciler.ReconcileActivity(ctx, testDetail(), testNow)
	require.NoError(t, err)
	person, err := qry.GetPersonByProfileUrl(ctx,
		"https://club.example.org/members/bob-boulder")
	require.NoError(t, err)

	err = reconciler.ReconcileMembership(ctx, person.ID, activity.ID, clubsite.ActivityEntry{
		ActivityUrl:  activity.ActivityUrl,
		Role:         "Participant",
		Registration: clubsite.MemberStatusCanceled,
		IsCanceled:   true,
	})
	require.NoError(t, err)

	roster, err := qry.ListActivityRoster(ctx, activity.ID)
	require.NoError(t, err)
	require.Len(t, roster, 1)
}
