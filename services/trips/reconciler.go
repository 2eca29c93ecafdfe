package trips

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"tripbook-backend/lib/scrapers/clubsite"
	"tripbook-backend/services/trips/db"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/trips")

// IntegrityError means a scraped record contradicts an invariant the
// database enforces. The unit is skipped, nothing is written.
type IntegrityError struct {
	Url    string
	Reason string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("reconcile %s: %s", e.Url, e.Reason)
}

// Reconciler folds scraped records into the database. Every reconcile
// call is one transaction, a failed unit leaves no partial writes.
type Reconciler struct {
	db  *sql.DB
	qry *db.Queries
}

func NewReconciler(database *sql.DB) Reconciler {
	return Reconciler{
		db:  database,
		qry: db.New(database),
	}
}

// upsertPerson finds or creates the person a scraped name/url pair
// refers to. Lookup is by profile url first, then by claiming an
// unclaimed stub with the same name, then a fresh row.
func upsertPerson(
	ctx context.Context,
	txqry *db.Queries,
	fullName, profileUrl string,
) (db.Person, error) {
	if profileUrl != "" {
		person, err := txqry.GetPersonByProfileUrl(ctx, profileUrl)
		if err == nil {
			return person, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return db.Person{}, err
		}
	}

	sameName, err := txqry.ListPersonsByFullName(ctx, fullName)
	if err != nil {
		return db.Person{}, err
	}
	for _, candidate := range sameName {
		if candidate.ProfileUrl != "" {
			continue
		}
		// a roster stub, claim it with the url we now know
		candidate.ProfileUrl = profileUrl
		err = txqry.UpdatePerson(ctx, db.UpdatePersonParams{
			ID:          candidate.ID,
			FullName:    candidate.FullName,
			ProfileUrl:  candidate.ProfileUrl,
			PortraitUrl: candidate.PortraitUrl,
			Email:       candidate.Email,
			Branch:      candidate.Branch,
			IsScraped:   candidate.IsScraped,
			LastScraped: candidate.LastScraped,
		})
		if err != nil {
			return db.Person{}, err
		}
		return candidate, nil
	}

	id, err := txqry.CreatePerson(ctx, db.CreatePersonParams{
		FullName:   fullName,
		ProfileUrl: profileUrl,
	})
	if err != nil {
		return db.Person{}, err
	}
	return txqry.GetPersonById(ctx, id)
}

// ReconcileProfile upserts the person a profile page describes and
// marks them scraped as of now.
func (r Reconciler) ReconcileProfile(
	ctx context.Context,
	rec clubsite.ProfileRecord,
	now time.Time,
) (db.Person, error) {
	ctx, span := tracer.Start(ctx, "ReconcileProfile")
	defer span.End()
	span.SetAttributes(attribute.String("profile_url", rec.ProfileUrl))

	if rec.FullName == "" || rec.ProfileUrl == "" {
		err := &IntegrityError{Url: rec.ProfileUrl, Reason: "profile has no identity"}
		span.SetStatus(codes.Error, err.Error())
		return db.Person{}, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return db.Person{}, err
	}
	defer tx.Rollback()
	txqry := r.qry.WithTx(tx)

	person, err := upsertPerson(ctx, txqry, rec.FullName, rec.ProfileUrl)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return db.Person{}, err
	}

	person.FullName = rec.FullName
	person.PortraitUrl = rec.PortraitUrl
	person.Email = rec.Email
	person.Branch = rec.Branch
	person.IsScraped = true
	person.LastScraped = now.Unix()

	err = txqry.UpdatePerson(ctx, db.UpdatePersonParams{
		ID:          person.ID,
		FullName:    person.FullName,
		ProfileUrl:  person.ProfileUrl,
		PortraitUrl: person.PortraitUrl,
		Email:       person.Email,
		Branch:      person.Branch,
		IsScraped:   person.IsScraped,
		LastScraped: person.LastScraped,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return db.Person{}, err
	}

	err = tx.Commit()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return db.Person{}, err
	}
	return person, nil
}

// ReconcileActivity upserts an activity detail page plus its roster.
// Unknown roster members become stub people, members who vanished from
// a non-empty roster lose their membership rows.
func (r Reconciler) ReconcileActivity(
	ctx context.Context,
	detail clubsite.ActivityDetail,
	now time.Time,
) (db.Activity, error) {
	ctx, span := tracer.Start(ctx, "ReconcileActivity")
	defer span.End()
	span.SetAttributes(attribute.String("activity_url", detail.Url))

	if detail.DateEnd.Before(detail.DateStart) {
		err := &IntegrityError{Url: detail.Url, Reason: "activity ends before it starts"}
		span.SetStatus(codes.Error, err.Error())
		return db.Activity{}, err
	}
	if detail.Name == "" {
		err := &IntegrityError{Url: detail.Url, Reason: "activity has no name"}
		span.SetStatus(codes.Error, err.Error())
		return db.Activity{}, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return db.Activity{}, err
	}
	defer tx.Rollback()
	txqry := r.qry.WithTx(tx)

	activity, err := r.upsertActivity(ctx, txqry, detail, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return db.Activity{}, err
	}

	err = r.reconcileRoster(ctx, txqry, activity, detail.Members)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return db.Activity{}, err
	}

	err = tx.Commit()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return db.Activity{}, err
	}
	return activity, nil
}

func (r Reconciler) upsertActivity(
	ctx context.Context,
	txqry *db.Queries,
	detail clubsite.ActivityDetail,
	now time.Time,
) (db.Activity, error) {
	activity, err := txqry.GetActivityByUrl(ctx, detail.Url)
	if errors.Is(err, sql.ErrNoRows) {
		id, err := txqry.CreateActivity(ctx, db.CreateActivityParams{
			ActivityUrl:  detail.Url,
			Name:         detail.Name,
			DateStart:    detail.DateStart.Unix(),
			DateEnd:      detail.DateEnd.Unix(),
			Committee:    detail.Committee,
			Branch:       detail.Branch,
			ActivityType: detail.ActivityType,
			Difficulty:   detail.Difficulty,
			LeaderRating: detail.LeaderRating,
			Mileage:      detail.Mileage,
			RouteName:    detail.RouteName,
			RouteUrl:     detail.RouteUrl,
			Status:       detail.Status,
			Result:       detail.Result,
			ScrapedAt:    now.Unix(),
			NextScrape:   nextScrapeTime(detail.Status, detail.DateEnd, now, 0),
		})
		if err != nil {
			return db.Activity{}, err
		}
		return txqry.GetActivityById(ctx, id)
	}
	if err != nil {
		return db.Activity{}, err
	}

	prevInterval := time.Duration(0)
	if activity.NextScrape > activity.ScrapedAt && activity.ScrapedAt > 0 {
		prevInterval = time.Duration(activity.NextScrape-activity.ScrapedAt) * time.Second
	}

	activity.Name = detail.Name
	activity.DateStart = detail.DateStart.Unix()
	activity.DateEnd = detail.DateEnd.Unix()
	activity.Committee = detail.Committee
	activity.Branch = detail.Branch
	activity.ActivityType = detail.ActivityType
	activity.Difficulty = detail.Difficulty
	activity.LeaderRating = detail.LeaderRating
	activity.Mileage = detail.Mileage
	activity.RouteName = detail.RouteName
	activity.RouteUrl = detail.RouteUrl
	activity.Status = detail.Status
	activity.Result = detail.Result
	activity.ScrapedAt = now.Unix()
	activity.NextScrape = nextScrapeTime(detail.Status, detail.DateEnd, now, prevInterval)

	err = txqry.UpdateActivity(ctx, db.UpdateActivityParams{
		ID:           activity.ID,
		Name:         activity.Name,
		DateStart:    activity.DateStart,
		DateEnd:      activity.DateEnd,
		Committee:    activity.Committee,
		Branch:       activity.Branch,
		ActivityType: activity.ActivityType,
		Difficulty:   activity.Difficulty,
		LeaderRating: activity.LeaderRating,
		Mileage:      activity.Mileage,
		RouteName:    activity.RouteName,
		RouteUrl:     activity.RouteUrl,
		Status:       activity.Status,
		Result:       activity.Result,
		ScrapedAt:    activity.ScrapedAt,
		NextScrape:   activity.NextScrape,
	})
	if err != nil {
		return db.Activity{}, err
	}
	return activity, nil
}

func (r Reconciler) reconcileRoster(
	ctx context.Context,
	txqry *db.Queries,
	activity db.Activity,
	members []clubsite.MemberRow,
) error {
	seen := map[int64]bool{}
	for _, member := range members {
		if member.Name == "" && member.ProfileUrl == "" {
			continue
		}
		person, err := upsertPerson(ctx, txqry, member.Name, member.ProfileUrl)
		if err != nil {
			return err
		}
		seen[person.ID] = true

		role := member.Role
		if role == "" {
			role = "Participant"
		}
		existing, err := txqry.GetMembership(ctx, db.GetMembershipParams{
			PersonID:   person.ID,
			ActivityID: activity.ID,
			Role:       role,
		})
		if errors.Is(err, sql.ErrNoRows) {
			_, err = txqry.CreateMembership(ctx, db.CreateMembershipParams{
				PersonID:     person.ID,
				ActivityID:   activity.ID,
				Role:         role,
				Registration: member.Registration,
			})
			if err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}
		if existing.Registration != member.Registration {
			err = txqry.UpdateMembership(ctx, db.UpdateMembershipParams{
				ID:           existing.ID,
				Registration: member.Registration,
				Result:       existing.Result,
			})
			if err != nil {
				return err
			}
		}
	}

	// an empty roster usually means the tab failed to load, keep what
	// we have rather than wiping everyone
	if len(seen) == 0 {
		return nil
	}

	existing, err := txqry.ListMembershipsByActivity(ctx, activity.ID)
	if err != nil {
		return err
	}
	for _, membership := range existing {
		if seen[membership.PersonID] {
			continue
		}
		err = txqry.DeleteMembership(ctx, membership.ID)
		if err != nil {
			return err
		}
	}
	return nil
}

// ReconcileMembership records what a member's own activity listing says
// about their part in an activity, including the personal result only
// visible there.
func (r Reconciler) ReconcileMembership(
	ctx context.Context,
	personID int64,
	activityID int64,
	entry clubsite.ActivityEntry,
) error {
	ctx, span := tracer.Start(ctx, "ReconcileMembership")
	defer span.End()

	role := entry.Role
	if role == "" {
		role = "Participant"
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	defer tx.Rollback()
	txqry := r.qry.WithTx(tx)

	if entry.IsCanceled {
		// the member backed out or the trip died, drop every role they
		// held on it
		err = txqry.DeleteMembershipsForPerson(ctx, db.DeleteMembershipsForPersonParams{
			PersonID:   personID,
			ActivityID: activityID,
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		return tx.Commit()
	}

	existing, err := txqry.GetMembership(ctx, db.GetMembershipParams{
		PersonID:   personID,
		ActivityID: activityID,
		Role:       role,
	})
	if errors.Is(err, sql.ErrNoRows) {
		_, err = txqry.CreateMembership(ctx, db.CreateMembershipParams{
			PersonID:     personID,
			ActivityID:   activityID,
			Role:         role,
			Registration: entry.Registration,
			Result:       entry.MemberResult,
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		return tx.Commit()
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	err = txqry.UpdateMembership(ctx, db.UpdateMembershipParams{
		ID:           existing.ID,
		Registration: entry.Registration,
		Result:       entry.MemberResult,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return tx.Commit()
}
