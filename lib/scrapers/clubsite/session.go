package clubsite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("lib/scrapers/clubsite")

// Credentials authenticate against the club website.
type Credentials struct {
	Username string
	Password string
}

// Options configure a session. Browser picks the driver: "chrome"
// drives a real browser through the devtools protocol and handles the
// javascript-rendered parts of the site, "http" talks plain HTTP and is
// much lighter but needs the ajax fallbacks below.
type Options struct {
	BaseURL     string
	Browser     string
	BrowserPath string
	Headless    bool
	Timeout     time.Duration
}

// Session is an authenticated connection to the club website. Fetch
// returns ErrSessionExpired when the site has logged us out, a
// *FetchError on transport failures.
type Session interface {
	Login(ctx context.Context) error
	Fetch(ctx context.Context, url string) (RawPage, error)
	Close() error
}

// NewSession builds a session for the configured driver. It does not
// log in; call Login before the first Fetch.
func NewSession(creds Credentials, opts Options) (Session, error) {
	if opts.Timeout == 0 {
		opts.Timeout = time.Second * 30
	}
	switch opts.Browser {
	case "", "chrome":
		return newChromeSession(creds, opts)
	case "http":
		return newHttpSession(creds, opts)
	default:
		return nil, fmt.Errorf("unknown browser driver '%s'", opts.Browser)
	}
}

// isAuthenticated reports whether a fetched page was rendered for a
// logged-in member. The site puts the account menu in the header of
// every page once a login cookie is accepted.
func isAuthenticated(html string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}
	return doc.Find("li.user.menu").Length() > 0
}
