package clubsite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"
	"go.opentelemetry.io/otel/codes"
)

// chromeSession drives a real browser through the devtools protocol.
// One browser lives for the whole session so login cookies persist
// across page loads.
type chromeSession struct {
	creds Credentials
	opts  Options

	allocCtx    context.Context
	browserCtx  context.Context
	cancelAlloc context.CancelFunc
	cancelCtx   context.CancelFunc
}

func newChromeSession(creds Credentials, opts Options) (*chromeSession, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if opts.BrowserPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.BrowserPath))
	}

	s := &chromeSession{creds: creds, opts: opts}
	s.allocCtx, s.cancelAlloc = chromedp.NewExecAllocator(context.Background(), allocOpts...)
	s.browserCtx, s.cancelCtx = chromedp.NewContext(s.allocCtx)
	return s, nil
}

func (s *chromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tctx, cancel := context.WithTimeout(s.browserCtx, s.opts.Timeout)
	defer cancel()
	return chromedp.Run(tctx, actions...)
}

func (s *chromeSession) Login(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "chromeSession.Login")
	defer span.End()

	var html string
	attempt := func() error {
		return s.run(ctx,
			chromedp.Navigate(s.opts.BaseURL),
			chromedp.WaitVisible("#__ac_name", chromedp.ByID),
			chromedp.SendKeys("#__ac_name", s.creds.Username, chromedp.ByID),
			chromedp.SendKeys("#__ac_password", s.creds.Password, chromedp.ByID),
			chromedp.Click("#buttons-login", chromedp.ByID),
			chromedp.WaitReady("body"),
			chromedp.OuterHTML("html", &html),
		)
	}
	err := attempt()
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.WarnContext(ctx, "login navigation failed, retrying once", "err", err)
		err = attempt()
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	if !isAuthenticated(html) {
		span.SetStatus(codes.Error, "login rejected")
		return ErrAuthenticationFailed
	}
	return nil
}

func (s *chromeSession) Fetch(ctx context.Context, url string) (RawPage, error) {
	ctx, span := tracer.Start(ctx, "chromeSession.Fetch")
	defer span.End()

	// the roster panel is lazy-loaded, clicking its tab triggers the
	// request. filtering to canceled registrations keeps the dropped
	// members visible in the captured markup.
	expandRoster := `(() => {
		const tab = document.querySelector('[data-tab="roster-tab"]');
		if (tab === null) return false;
		tab.click();
		return true;
	})()`

	var hasRoster bool
	err := s.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.Evaluate(expandRoster, &hasRoster),
	)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return RawPage{}, err
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return RawPage{}, &FetchError{Url: url, Err: err}
	}

	if hasRoster {
		// a roster tab with no contacts never becomes visible, the
		// timeout there just means the roster is empty
		wctx, cancel := context.WithTimeout(s.browserCtx, time.Second*5)
		_ = chromedp.Run(wctx,
			chromedp.WaitVisible(`div[data-tab="roster-tab"] div.roster-contact`,
				chromedp.ByQuery))
		cancel()
	}

	var html string
	err = s.run(ctx, chromedp.OuterHTML("html", &html))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return RawPage{}, &FetchError{Url: url, Err: err}
	}
	if !isAuthenticated(html) {
		span.SetStatus(codes.Error, "session expired")
		return RawPage{}, ErrSessionExpired
	}
	return RawPage{Url: url, Html: html}, nil
}

func (s *chromeSession) Close() error {
	s.cancelCtx()
	s.cancelAlloc()

	// give the browser process a moment to exit cleanly
	done := make(chan struct{})
	go func() {
		_ = chromedp.Cancel(s.browserCtx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second * 5):
	}
	return nil
}
