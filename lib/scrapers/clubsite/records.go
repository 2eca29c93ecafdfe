package clubsite

import "time"

// Registration statuses shown on listing rows and rosters.
const (
	MemberStatusRegistered = "Registered"
	MemberStatusWaitlisted = "Waitlisted"
	MemberStatusCanceled   = "Canceled"
)

const (
	MemberResultSuccess  = "Successful"
	MemberResultCanceled = "Canceled"
)

// Activity lifecycle codes stored in the database. A future activity may
// still change, a past one is awaiting closure, a closed one is final.
const (
	ActivityStatusFuture = "FU"
	ActivityStatusPast   = "PA"
	ActivityStatusClosed = "CL"
)

const (
	ActivityResultSuccess      = "Success"
	ActivityResultCanceled     = "Canceled"
	ActivityResultTurnedAround = "Turned Around"
)

// RawPage is the settled HTML of one fetched page. Parsers consume only
// this so they stay pure and testable against recorded markup.
type RawPage struct {
	Url  string
	Html string
}

// ProfileRecord is the structured form of a member profile page.
type ProfileRecord struct {
	ProfileUrl  string
	FullName    string
	PortraitUrl string
	Email       string
	Branch      string
	// activity pages linked directly from the profile body
	ActivityLinks []string
}

// ActivityEntry is one row of a member's activity listing table. Future
// and past rows carry different columns, so some fields are empty
// depending on IsFuture.
type ActivityEntry struct {
	ActivityUrl    string
	ActivityName   string
	IsFuture       bool
	IsCanceled     bool
	Role           string
	Registration   string
	MemberResult   string
	ActivityResult string
}

// MemberRow is one roster entry on an activity detail page.
type MemberRow struct {
	Name         string
	ProfileUrl   string
	Role         string
	Registration string
}

// ActivityDetail is the structured form of an activity detail page,
// including its roster.
type ActivityDetail struct {
	Url          string
	Name         string
	DateStart    time.Time
	DateEnd      time.Time
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
	Members      []MemberRow
}
