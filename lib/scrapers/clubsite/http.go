package clubsite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"tripbook-backend/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"
)

// httpSession talks plain HTTP with a cookie jar. It cannot run the
// site's javascript so lazy-loaded fragments like the roster are
// fetched separately with the ajax_load parameter and appended to the
// captured page.
type httpSession struct {
	creds   Credentials
	opts    Options
	baseUrl *url.URL
	client  *resty.Client
}

func newHttpSession(creds Credentials, opts Options) (*httpSession, error) {
	baseUrl, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseURL)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	client.SetTimeout(opts.Timeout)

	telemetry.InstrumentResty(client, "scrapers/clubsite/http")

	return &httpSession{
		creds:   creds,
		opts:    opts,
		baseUrl: baseUrl,
		client:  client,
	}, nil
}

func (s *httpSession) Login(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "httpSession.Login")
	defer span.End()

	attempt := func() (*resty.Response, error) {
		return s.client.R().
			SetContext(ctx).
			SetFormData(map[string]string{
				"__ac_name":      s.creds.Username,
				"__ac_password":  s.creds.Password,
				"came_from":      s.opts.BaseURL,
				"form.submitted": "1",
			}).
			Post("/login")
	}
	res, err := attempt()
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.WarnContext(ctx, "login request failed, retrying once", "err", err)
		res, err = attempt()
	}
	if err != nil {
		span.SetStatus(codes.Error, "failed to post login form")
		span.RecordError(err)
		return fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	if !isAuthenticated(res.String()) {
		span.SetStatus(codes.Error, "login rejected")
		return ErrAuthenticationFailed
	}
	return nil
}

func (s *httpSession) get(ctx context.Context, pageUrl string) (string, error) {
	res, err := s.client.R().SetContext(ctx).Get(pageUrl)
	if err != nil {
		return "", &FetchError{Url: pageUrl, Err: err}
	}
	if res.StatusCode() >= 500 {
		return "", &FetchError{
			Url: pageUrl,
			Err: fmt.Errorf("status code %d", res.StatusCode()),
		}
	}
	return res.String(), nil
}

func (s *httpSession) Fetch(ctx context.Context, pageUrl string) (RawPage, error) {
	ctx, span := tracer.Start(ctx, "httpSession.Fetch")
	defer span.End()

	html, err := s.get(ctx, pageUrl)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return RawPage{}, err
	}
	if !isAuthenticated(html) {
		span.SetStatus(codes.Error, "session expired")
		return RawPage{}, ErrSessionExpired
	}

	// pages with a roster tab load it lazily, append the fragment so
	// the captured html matches what a browser would have shown
	if strings.Contains(html, `data-tab="roster-tab"`) &&
		!strings.Contains(html, "roster-contact") {
		fragment, err := s.get(ctx, rosterFragmentUrl(pageUrl))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return RawPage{}, err
		}
		html += fmt.Sprintf(`<div data-tab="roster-tab">%s</div>`, fragment)
	}

	return RawPage{Url: pageUrl, Html: html}, nil
}

func rosterFragmentUrl(pageUrl string) string {
	sep := "?"
	if strings.Contains(pageUrl, "?") {
		sep = "&"
	}
	return pageUrl + sep + "ajax_load=1"
}

func (s *httpSession) Close() error {
	return nil
}
