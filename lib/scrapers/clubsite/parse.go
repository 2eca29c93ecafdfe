package clubsite

import (
	"strings"
	"time"
	"tripbook-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

func titleCase(s string) string {
	var b strings.Builder
	startOfWord := true
	for _, r := range s {
		switch {
		case r == ' ' || r == '-' || r == '\'':
			startOfWord = true
			b.WriteRune(r)
		case startOfWord:
			b.WriteString(strings.ToUpper(string(r)))
			startOfWord = false
		default:
			b.WriteString(strings.ToLower(string(r)))
		}
	}
	return b.String()
}

func newDocument(page RawPage) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.Html))
	if err != nil {
		return nil, &ParseError{Url: page.Url, Missing: "well-formed html"}
	}
	return doc, nil
}

// ParseProfile extracts identity fields and directly linked activity
// pages from a member profile page. The full name is the only field a
// profile must have; restricted profiles hide the rest.
func ParseProfile(page RawPage) (ProfileRecord, error) {
	doc, err := newDocument(page)
	if err != nil {
		return ProfileRecord{}, err
	}

	wrapper := doc.Find("div.profile-wrapper")
	if wrapper.Length() == 0 {
		return ProfileRecord{}, &ParseError{Url: page.Url, Missing: "profile wrapper"}
	}

	rec := ProfileRecord{ProfileUrl: page.Url}

	name := htmlutil.SelectionText(wrapper.Find("h1").First())
	if name == "" {
		return ProfileRecord{}, &ParseError{Url: page.Url, Missing: "full name"}
	}
	rec.FullName = titleCase(name)

	rec.PortraitUrl = wrapper.Find("div.portrait img").First().AttrOr("src", "")
	rec.Email = htmlutil.SelectionText(wrapper.Find("div.email a").First())

	wrapper.Find("ul.details li").Each(func(_ int, li *goquery.Selection) {
		if strings.Contains(li.Text(), "Branch") {
			rec.Branch = htmlutil.SelectionText(li.Find("a").First())
		}
	})

	seen := map[string]bool{}
	for _, a := range htmlutil.GetAnchors(doc.Find("a")) {
		if !strings.Contains(a.Href, "/activities/") || seen[a.Href] {
			continue
		}
		seen[a.Href] = true
		rec.ActivityLinks = append(rec.ActivityLinks, a.Href)
	}

	return rec, nil
}

// ParseActivityListing extracts one page of a member's activity history
// table plus the link to the next page, empty when the listing is
// exhausted. Future rows carry a Status column; past rows fold role and
// personal result into one cell.
func ParseActivityListing(page RawPage) ([]ActivityEntry, string, error) {
	doc, err := newDocument(page)
	if err != nil {
		return nil, "", err
	}

	if doc.Find("table.listing").Length() == 0 {
		return nil, "", &ParseError{Url: page.Url, Missing: "activity listing table"}
	}

	var entries []ActivityEntry
	var rowErr error
	doc.Find("tr.activity-listing").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		link := row.Find(`td[data-th="Activity/Event"] a`).First()
		href, ok := link.Attr("href")
		if !ok {
			rowErr = &ParseError{Url: page.Url, Missing: "activity link in listing row"}
			return false
		}

		entry := ActivityEntry{
			ActivityUrl:  href,
			ActivityName: htmlutil.SelectionText(link),
		}

		status := row.Find(`td[data-th="Status"]`)
		if status.Length() > 0 {
			entry.IsFuture = true
			entry.Registration = htmlutil.SelectionText(status)
			entry.Role = htmlutil.SelectionText(row.Find(`td[data-th="Role"]`))
		} else {
			roleResult := row.Find(`td[data-th="Role: Result"] span`)
			entry.Role = htmlutil.SelectionText(roleResult.Eq(0))
			if roleResult.Length() >= 3 {
				entry.MemberResult = htmlutil.SelectionText(roleResult.Eq(2))
			}
			entry.Registration = htmlutil.SelectionText(row.Find(`td[data-th="Registration Status"]`))
			entry.ActivityResult = htmlutil.SelectionText(row.Find(`td[data-th="Trip Result"]`))
		}

		entry.IsCanceled = entry.Registration == MemberStatusCanceled ||
			entry.ActivityResult == MemberResultCanceled
		entries = append(entries, entry)
		return true
	})
	if rowErr != nil {
		return nil, "", rowErr
	}

	next := doc.Find("ul.pagination li.next a").First().AttrOr("href", "")
	return entries, next, nil
}

// ParseActivityDetail extracts the full activity detail including the
// roster. `now` decides whether an unclosed activity counts as past or
// future; passing it in keeps the parser deterministic.
func ParseActivityDetail(page RawPage, now time.Time) (ActivityDetail, error) {
	doc, err := newDocument(page)
	if err != nil {
		return ActivityDetail{}, err
	}

	detail := ActivityDetail{Url: page.Url}

	detail.Name = htmlutil.SelectionText(doc.Find("h1.documentFirstHeading").First())
	if detail.Name == "" {
		return ActivityDetail{}, &ParseError{Url: page.Url, Missing: "activity name"}
	}
	if strings.Contains(strings.ToLower(detail.Name), "this page does not seem to exist") {
		return ActivityDetail{}, &ParseError{Url: page.Url, Missing: "existing activity page"}
	}

	core := doc.Find("div.program-core")
	if core.Length() == 0 {
		return ActivityDetail{}, &ParseError{Url: page.Url, Missing: "activity details section"}
	}

	dateStr := ""
	core.Find("ul.details li").Each(func(_ int, li *goquery.Selection) {
		label := htmlutil.SelectionText(li.Find("label").First())
		text := htmlutil.SelectionText(li)

		switch label {
		case "":
			if dateStr == "" && !strings.Contains(text, "Mileage:") {
				dateStr = text
			}
		case "When:":
			dateStr = strings.TrimPrefix(text, "When: ")
		case "Committee:":
			// sometimes the committee name appears in a link, sometimes not
			detail.Committee = htmlutil.SelectionText(li.Find("a").First())
			if detail.Committee == "" {
				detail.Committee = strings.TrimPrefix(text, "Committee: ")
			}
		case "Difficulty:":
			detail.Difficulty = strings.TrimPrefix(text, "Difficulty: ")
		case "Leader Rating:":
			detail.LeaderRating = strings.TrimPrefix(text, "Leader Rating: ")
		case "Activity Type:":
			detail.ActivityType = strings.TrimPrefix(text, "Activity Type: ")
		case "Branch:":
			detail.Branch = strings.TrimPrefix(text, "Branch: ")
		}
		if strings.Contains(text, "Mileage:") {
			detail.Mileage = strings.TrimPrefix(text, "Mileage: ")
		}
	})
	if dateStr == "" {
		return ActivityDetail{}, &ParseError{Url: page.Url, Missing: "activity dates"}
	}

	detail.DateStart, detail.DateEnd, err = ParseDateRange(dateStr)
	if err != nil {
		return ActivityDetail{}, &ParseError{Url: page.Url, Missing: "parseable activity dates"}
	}

	route := doc.Find(`a:contains('See full route/place details.')`).First()
	if route.Length() > 0 {
		detail.RouteUrl = route.AttrOr("href", "")
		detail.RouteName = htmlutil.SelectionText(
			route.Parent().Parent().Parent().Find("h3").First())
	}

	errorText := htmlutil.SelectionText(doc.Find("div.error").First())
	registerText := htmlutil.SelectionText(doc.Find("div#register-participant").First())
	detail.Status, detail.Result = classifyStatus(errorText, registerText, detail.DateEnd, now)

	seen := map[string]bool{}
	doc.Find(`div[data-tab="roster-tab"] div.roster-contact`).Each(func(_ int, contact *goquery.Selection) {
		link := contact.Find("a").First()
		href, ok := link.Attr("href")
		if !ok {
			// empty placeholder entries appear on canceled trips
			return
		}
		profileUrl := strings.Replace(href, "?ajax_load=1", "", 1)
		key := profileUrl
		if key == "" {
			key = link.Text()
		}
		if seen[key] {
			return
		}
		seen[key] = true

		role := htmlutil.SelectionText(contact.Find(".roster-position").First())
		if role == "" {
			role = "Participant"
		}
		detail.Members = append(detail.Members, MemberRow{
			Name:         titleCase(htmlutil.SelectionText(link)),
			ProfileUrl:   profileUrl,
			Role:         role,
			Registration: MemberStatusRegistered,
		})
	})

	return detail, nil
}

// classifyStatus maps the closure banner and registration box text to a
// lifecycle status and result. The site never states these outright so
// the rules are accumulated observations of its phrasing.
func classifyStatus(errorText, registerText string, dateEnd, now time.Time) (string, string) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	isInPast := dateEnd.Before(today)

	pastOrFuture := ActivityStatusFuture
	if isInPast {
		pastOrFuture = ActivityStatusPast
	}

	if errorText != "" {
		switch {
		case strings.Contains(errorText, "has been closed"):
			switch {
			case strings.Contains(errorText, "successful"):
				return ActivityStatusClosed, ActivityResultSuccess
			case strings.Contains(errorText, "canceled"):
				return ActivityStatusClosed, ActivityResultCanceled
			case strings.Contains(errorText, "turned around"):
				return ActivityStatusClosed, ActivityResultTurnedAround
			default:
				result := strings.TrimSpace(strings.ReplaceAll(
					errorText, "This activity has been closed.", ""))
				return ActivityStatusClosed, result
			}
		case strings.Contains(errorText, "This event has been canceled."):
			return ActivityStatusClosed, ActivityResultCanceled
		case strings.Contains(errorText, "This event already ended"):
			// events carry no result, assume success
			return ActivityStatusClosed, ActivityResultSuccess
		case strings.Contains(errorText, "This activity already ended."):
			return ActivityStatusClosed, ActivityResultSuccess
		case strings.Contains(errorText, "Registration closed on"):
			return pastOrFuture, ""
		default:
			return pastOrFuture, ""
		}
	}

	if strings.Contains(registerText, "This activity is part of the") {
		// course field trips sometimes never show as closed, treat
		// finished ones as closed anyway
		if isInPast {
			return ActivityStatusClosed, ActivityResultSuccess
		}
		return ActivityStatusFuture, ""
	}

	if isInPast {
		return ActivityStatusPast, ActivityResultSuccess
	}
	return ActivityStatusFuture, ""
}
