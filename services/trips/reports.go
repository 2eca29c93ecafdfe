package trips

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
	"tripbook-backend/services/trips/db"

	"go.opentelemetry.io/otel/codes"
)

// Reports answers read-only questions about the scraped history.
type Reports struct {
	qry *db.Queries
}

func NewReports(database *sql.DB) Reports {
	return Reports{qry: db.New(database)}
}

// FindPeople resolves a person key, either a profile url or an exact
// full name. Names can legitimately match several people.
func (s Reports) FindPeople(ctx context.Context, key string) ([]db.Person, error) {
	ctx, span := tracer.Start(ctx, "reports.FindPeople")
	defer span.End()

	if strings.HasPrefix(key, "http://") || strings.HasPrefix(key, "https://") {
		person, err := s.qry.GetPersonByProfileUrl(ctx, key)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		return []db.Person{person}, nil
	}
	return s.qry.ListPersonsByFullName(ctx, key)
}

// History returns everything a person took part in, newest first. A
// non-empty activityType keeps only activities whose type contains it,
// case-insensitively.
func (s Reports) History(ctx context.Context, personID int64, activityType string) ([]db.PersonActivityRow, error) {
	ctx, span := tracer.Start(ctx, "reports.History")
	defer span.End()

	history, err := s.qry.ListActivitiesForPerson(ctx, personID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if activityType == "" {
		return history, nil
	}

	wanted := strings.ToLower(activityType)
	var out []db.PersonActivityRow
	for _, row := range history {
		if strings.Contains(strings.ToLower(row.Activity.ActivityType), wanted) {
			out = append(out, row)
		}
	}
	return out, nil
}

// Roster returns the stored membership rows for one activity.
func (s Reports) Roster(ctx context.Context, activityID int64) ([]db.RosterRow, error) {
	ctx, span := tracer.Start(ctx, "reports.Roster")
	defer span.End()

	return s.qry.ListActivityRoster(ctx, activityID)
}

// ActivitiesOn filters a person's history down to activities whose date
// range covers the given day.
func (s Reports) ActivitiesOn(ctx context.Context, personID int64, day time.Time) ([]db.PersonActivityRow, error) {
	ctx, span := tracer.Start(ctx, "reports.ActivitiesOn")
	defer span.End()

	history, err := s.qry.ListActivitiesForPerson(ctx, personID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC).Unix()
	var out []db.PersonActivityRow
	for _, row := range history {
		if row.Activity.DateStart <= dayStart && dayStart <= row.Activity.DateEnd {
			out = append(out, row)
		}
	}
	return out, nil
}

// DidDo filters a person's history down to activity names containing
// the given fragment, case-insensitively.
func (s Reports) DidDo(ctx context.Context, personID int64, nameFragment string) ([]db.PersonActivityRow, error) {
	ctx, span := tracer.Start(ctx, "reports.DidDo")
	defer span.End()

	history, err := s.qry.ListActivitiesForPerson(ctx, personID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	fragment := strings.ToLower(nameFragment)
	var out []db.PersonActivityRow
	for _, row := range history {
		if strings.Contains(strings.ToLower(row.Activity.Name), fragment) {
			out = append(out, row)
		}
	}
	return out, nil
}

// Companions lists everyone who shares at least one activity roster
// with the person, most shared first.
func (s Reports) Companions(ctx context.Context, personID int64) ([]db.CompanionRow, error) {
	ctx, span := tracer.Start(ctx, "reports.Companions")
	defer span.End()

	return s.qry.ListCompanions(ctx, personID)
}

// ActivityStatus resolves an activity by url or name fragment and
// returns each match with its stored roster.
type ActivityStatusRow struct {
	Activity db.Activity
	Roster   []db.RosterRow
}

func (s Reports) ActivityStatus(ctx context.Context, key string) ([]ActivityStatusRow, error) {
	ctx, span := tracer.Start(ctx, "reports.ActivityStatus")
	defer span.End()

	var matches []db.Activity
	if strings.HasPrefix(key, "http://") || strings.HasPrefix(key, "https://") {
		activity, err := s.qry.GetActivityByUrl(ctx, key)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		if err == nil {
			matches = append(matches, activity)
		}
	} else {
		var err error
		matches, err = s.qry.SearchActivitiesByName(ctx, "%"+key+"%")
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}

	var out []ActivityStatusRow
	for _, activity := range matches {
		roster, err := s.qry.ListActivityRoster(ctx, activity.ID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		out = append(out, ActivityStatusRow{Activity: activity, Roster: roster})
	}
	return out, nil
}
