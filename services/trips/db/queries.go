package db

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const personColumns = `id, full_name, profile_url, portrait_url, email, branch, is_scraped, last_scraped`

func scanPerson(row interface{ Scan(...interface{}) error }) (Person, error) {
	var p Person
	err := row.Scan(
		&p.ID, &p.FullName, &p.ProfileUrl, &p.PortraitUrl,
		&p.Email, &p.Branch, &p.IsScraped, &p.LastScraped,
	)
	return p, err
}

func (q *Queries) GetPersonById(ctx context.Context, id int64) (Person, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+personColumns+` FROM person WHERE id = ?`, id)
	return scanPerson(row)
}

func (q *Queries) GetPersonByProfileUrl(ctx context.Context, profileUrl string) (Person, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+personColumns+` FROM person WHERE profile_url = ?`, profileUrl)
	return scanPerson(row)
}

func (q *Queries) ListPersonsByFullName(ctx context.Context, fullName string) ([]Person, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+personColumns+` FROM person WHERE full_name = ? ORDER BY id`, fullName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListScrapeablePersons returns every person with a known profile page,
// least recently scraped first.
func (q *Queries) ListScrapeablePersons(ctx context.Context) ([]Person, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+personColumns+` FROM person WHERE profile_url != '' ORDER BY last_scraped, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type CreatePersonParams struct {
	FullName    string
	ProfileUrl  string
	PortraitUrl string
	Email       string
	Branch      string
	IsScraped   bool
	LastScraped int64
}

func (q *Queries) CreatePerson(ctx context.Context, arg CreatePersonParams) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO person (full_name, profile_url, portrait_url, email, branch, is_scraped, last_scraped)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		arg.FullName, arg.ProfileUrl, arg.PortraitUrl,
		arg.Email, arg.Branch, arg.IsScraped, arg.LastScraped,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

type UpdatePersonParams struct {
	ID          int64
	FullName    string
	ProfileUrl  string
	PortraitUrl string
	Email       string
	Branch      string
	IsScraped   bool
	LastScraped int64
}

func (q *Queries) UpdatePerson(ctx context.Context, arg UpdatePersonParams) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE person
		 SET full_name = ?, profile_url = ?, portrait_url = ?,
		     email = ?, branch = ?, is_scraped = ?, last_scraped = ?
		 WHERE id = ?`,
		arg.FullName, arg.ProfileUrl, arg.PortraitUrl,
		arg.Email, arg.Branch, arg.IsScraped, arg.LastScraped, arg.ID,
	)
	return err
}

const activityColumns = `id, activity_url, name, date_start, date_end, committee, branch,
	activity_type, difficulty, leader_rating, mileage, route_name, route_url,
	status, result, scraped_at, next_scrape`

func scanActivity(row interface{ Scan(...interface{}) error }) (Activity, error) {
	var a Activity
	err := row.Scan(
		&a.ID, &a.ActivityUrl, &a.Name, &a.DateStart, &a.DateEnd,
		&a.Committee, &a.Branch, &a.ActivityType, &a.Difficulty,
		&a.LeaderRating, &a.Mileage, &a.RouteName, &a.RouteUrl,
		&a.Status, &a.Result, &a.ScrapedAt, &a.NextScrape,
	)
	return a, err
}

func (q *Queries) GetActivityById(ctx context.Context, id int64) (Activity, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+activityColumns+` FROM activity WHERE id = ?`, id)
	return scanActivity(row)
}

func (q *Queries) GetActivityByUrl(ctx context.Context, activityUrl string) (Activity, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+activityColumns+` FROM activity WHERE activity_url = ?`, activityUrl)
	return scanActivity(row)
}

func (q *Queries) SearchActivitiesByName(ctx context.Context, namePattern string) ([]Activity, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+activityColumns+` FROM activity WHERE name LIKE ? ORDER BY date_start DESC`,
		namePattern)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListDueActivities returns activities scheduled for a re-scrape at or
// before the given unix time. Activities with next_scrape zero have
// been given up on and never come back.
func (q *Queries) ListDueActivities(ctx context.Context, now int64) ([]Activity, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+activityColumns+` FROM activity
		 WHERE next_scrape != 0 AND next_scrape <= ?
		 ORDER BY next_scrape, id`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type CreateActivityParams struct {
	ActivityUrl  string
	Name         string
	DateStart    int64
	DateEnd      int64
	Committee    string
	Branch       string
	ActivityType string
	Difficulty   string
	LeaderRating string
	Mileage      string
	RouteName    string
	RouteUrl     string
	Status       string
	Result       string
	ScrapedAt    int64
	NextScrape   int64
}

func (q *Queries) CreateActivity(ctx context.Context, arg CreateActivityParams) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO activity (activity_url, name, date_start, date_end, committee, branch,
		     activity_type, difficulty, leader_rating, mileage, route_name, route_url,
		     status, result, scraped_at, next_scrape)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		arg.ActivityUrl, arg.Name, arg.DateStart, arg.DateEnd, arg.Committee, arg.Branch,
		arg.ActivityType, arg.Difficulty, arg.LeaderRating, arg.Mileage,
		arg.RouteName, arg.RouteUrl, arg.Status, arg.Result, arg.ScrapedAt, arg.NextScrape,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

type UpdateActivityParams struct {
	ID           int64
	Name         string
	DateStart    int64
	DateEnd      int64
	Committee    string
	Branch       string
	ActivityType string
	Difficulty   string
	LeaderRating string
	Mileage      string
	RouteName    string
	RouteUrl     string
	Status       string
	Result       string
	ScrapedAt    int64
	NextScrape   int64
}

func (q *Queries) UpdateActivity(ctx context.Context, arg UpdateActivityParams) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE activity
		 SET name = ?, date_start = ?, date_end = ?, committee = ?, branch = ?,
		     activity_type = ?, difficulty = ?, leader_rating = ?, mileage = ?,
		     route_name = ?, route_url = ?, status = ?, result = ?,
		     scraped_at = ?, next_scrape = ?
		 WHERE id = ?`,
		arg.Name, arg.DateStart, arg.DateEnd, arg.Committee, arg.Branch,
		arg.ActivityType, arg.Difficulty, arg.LeaderRating, arg.Mileage,
		arg.RouteName, arg.RouteUrl, arg.Status, arg.Result,
		arg.ScrapedAt, arg.NextScrape, arg.ID,
	)
	return err
}

const memberColumns = `id, person_id, activity_id, role, registration, result`

func scanMember(row interface{ Scan(...interface{}) error }) (ActivityMember, error) {
	var m ActivityMember
	err := row.Scan(&m.ID, &m.PersonID, &m.ActivityID, &m.Role, &m.Registration, &m.Result)
	return m, err
}

type GetMembershipParams struct {
	PersonID   int64
	ActivityID int64
	Role       string
}

func (q *Queries) GetMembership(ctx context.Context, arg GetMembershipParams) (ActivityMember, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM activitymember
		 WHERE person_id = ? AND activity_id = ? AND role = ?`,
		arg.PersonID, arg.ActivityID, arg.Role)
	return scanMember(row)
}

func (q *Queries) ListMembershipsByActivity(ctx context.Context, activityID int64) ([]ActivityMember, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+memberColumns+` FROM activitymember WHERE activity_id = ? ORDER BY id`,
		activityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ActivityMember
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type RosterRow struct {
	Person       Person
	Role         string
	Registration string
	Result       string
}

func (q *Queries) ListActivityRoster(ctx context.Context, activityID int64) ([]RosterRow, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT p.id, p.full_name, p.profile_url, p.portrait_url, p.email, p.branch,
		        p.is_scraped, p.last_scraped, am.role, am.registration, am.result
		 FROM activitymember am
		 JOIN person p ON p.id = am.person_id
		 WHERE am.activity_id = ?
		 ORDER BY am.role, p.full_name`, activityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RosterRow
	for rows.Next() {
		var r RosterRow
		err := rows.Scan(
			&r.Person.ID, &r.Person.FullName, &r.Person.ProfileUrl,
			&r.Person.PortraitUrl, &r.Person.Email, &r.Person.Branch,
			&r.Person.IsScraped, &r.Person.LastScraped,
			&r.Role, &r.Registration, &r.Result,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type PersonActivityRow struct {
	Activity     Activity
	Role         string
	Registration string
	Result       string
}

func (q *Queries) ListActivitiesForPerson(ctx context.Context, personID int64) ([]PersonActivityRow, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT a.id, a.activity_url, a.name, a.date_start, a.date_end, a.committee,
		        a.branch, a.activity_type, a.difficulty, a.leader_rating, a.mileage,
		        a.route_name, a.route_url, a.status, a.result, a.scraped_at, a.next_scrape,
		        am.role, am.registration, am.result
		 FROM activitymember am
		 JOIN activity a ON a.id = am.activity_id
		 WHERE am.person_id = ?
		 ORDER BY a.date_start DESC`, personID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PersonActivityRow
	for rows.Next() {
		var r PersonActivityRow
		a := &r.Activity
		err := rows.Scan(
			&a.ID, &a.ActivityUrl, &a.Name, &a.DateStart, &a.DateEnd,
			&a.Committee, &a.Branch, &a.ActivityType, &a.Difficulty,
			&a.LeaderRating, &a.Mileage, &a.RouteName, &a.RouteUrl,
			&a.Status, &a.Result, &a.ScrapedAt, &a.NextScrape,
			&r.Role, &r.Registration, &r.Result,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type CompanionRow struct {
	Person     Person
	SharedTrip int64
}

// ListCompanions returns everyone who appears on an activity roster
// together with the given person, most shared activities first.
func (q *Queries) ListCompanions(ctx context.Context, personID int64) ([]CompanionRow, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT p.id, p.full_name, p.profile_url, p.portrait_url, p.email, p.branch,
		        p.is_scraped, p.last_scraped, COUNT(DISTINCT other.activity_id)
		 FROM activitymember mine
		 JOIN activitymember other
		   ON other.activity_id = mine.activity_id AND other.person_id != mine.person_id
		 JOIN person p ON p.id = other.person_id
		 WHERE mine.person_id = ?
		 GROUP BY p.id
		 ORDER BY COUNT(DISTINCT other.activity_id) DESC, p.full_name`, personID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CompanionRow
	for rows.Next() {
		var r CompanionRow
		err := rows.Scan(
			&r.Person.ID, &r.Person.FullName, &r.Person.ProfileUrl,
			&r.Person.PortraitUrl, &r.Person.Email, &r.Person.Branch,
			&r.Person.IsScraped, &r.Person.LastScraped, &r.SharedTrip,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type CreateMembershipParams struct {
	PersonID     int64
	ActivityID   int64
	Role         string
	Registration string
	Result       string
}

func (q *Queries) CreateMembership(ctx context.Context, arg CreateMembershipParams) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO activitymember (person_id, activity_id, role, registration, result)
		 VALUES (?, ?, ?, ?, ?)`,
		arg.PersonID, arg.ActivityID, arg.Role, arg.Registration, arg.Result,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

type UpdateMembershipParams struct {
	ID           int64
	Registration string
	Result       string
}

func (q *Queries) UpdateMembership(ctx context.Context, arg UpdateMembershipParams) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE activitymember SET registration = ?, result = ? WHERE id = ?`,
		arg.Registration, arg.Result, arg.ID,
	)
	return err
}

func (q *Queries) DeleteMembership(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM activitymember WHERE id = ?`, id)
	return err
}

type DeleteMembershipsForPersonParams struct {
	PersonID   int64
	ActivityID int64
}

func (q *Queries) DeleteMembershipsForPerson(ctx context.Context, arg DeleteMembershipsForPersonParams) error {
	_, err := q.db.ExecContext(ctx,
		`DELETE FROM activitymember WHERE person_id = ? AND activity_id = ?`,
		arg.PersonID, arg.ActivityID,
	)
	return err
}
