package db

// Person is one club member, scraped from their profile page or stubbed
// from a roster mention. Timestamps are unix seconds, zero means never.
type Person struct {
	ID          int64
	FullName    string
	ProfileUrl  string
	PortraitUrl string
	Email       string
	Branch      string
	IsScraped   bool
	LastScraped int64
}

// Activity is one trip, course or event page. DateStart and DateEnd are
// unix seconds at midnight UTC of the respective day.
type Activity struct {
	ID           int64
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

// ActivityMember links a person to an activity in one role. A person
// can hold several roles on the same activity.
type ActivityMember struct {
	ID           int64
	PersonID     int64
	ActivityID   int64
	Role         string
	Registration string
	Result       string
}
