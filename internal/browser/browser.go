package browser

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/mohammad-safakhou/headliner/config"
)

// ErrNoPage is returned by extraction before any successful navigation.
var ErrNoPage = errors.New("no page loaded, navigate first")

// Page describes the result of a navigation.
type Page struct {
	URL    string
	Title  string
	Status int
}

// Snapshot is the rendered state of the current page.
type Snapshot struct {
	URL   string
	Title string
	HTML  string
	Text  string // innerText of <body>
}

// Session is a browser tab owned by exactly one run.
type Session interface {
	Navigate(ctx context.Context, rawURL string) (Page, error)
	Snapshot(ctx context.Context) (Snapshot, error)
	Close() error
}

// Launcher owns the Chrome process. Sessions are cheap tabs inside it.
type Launcher struct {
	cfg    config.BrowserConfig
	logger *log.Logger

	mu            sync.Mutex
	allocCtx      context.Context
	cancelAlloc   context.CancelFunc
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
}

func NewLauncher(cfg config.BrowserConfig, logger *log.Logger) *Launcher {
	if logger == nil {
		logger = log.New(log.Writer(), "[BROWSER] ", log.LstdFlags)
	}
	return &Launcher{cfg: cfg, logger: logger}
}

func (l *Launcher) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.cfg.Headless),
	)
	if l.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(l.cfg.UserAgent))
	}
	if l.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.cfg.ExecPath))
	}
	return opts
}

// start launches Chrome once. The browser lives until Close, independent of
// the context of the run that happened to start it.
func (l *Launcher) start() error {
	if l.browserCtx != nil {
		return nil
	}
	actx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), l.allocatorOptions()...)
	bctx, cancelBrowser := chromedp.NewContext(actx, chromedp.WithLogf(l.logger.Printf))
	if err := chromedp.Run(bctx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return fmt.Errorf("launch chrome: %w", err)
	}
	l.allocCtx, l.cancelAlloc = actx, cancelAlloc
	l.browserCtx, l.cancelBrowser = bctx, cancelBrowser
	l.logger.Printf("chrome started (headless=%v)", l.cfg.Headless)
	return nil
}

// NewSession opens a fresh tab. The caller must Close it.
func (l *Launcher) NewSession(ctx context.Context) (*ChromeSession, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := l.start(); err != nil {
		return nil, err
	}
	tctx, cancel := chromedp.NewContext(l.browserCtx)
	// The first Run on a tab context creates the target; it must not carry a
	// deadline or the tab is torn down when the deadline passes.
	if err := chromedp.Run(tctx); err != nil {
		cancel()
		return nil, fmt.Errorf("open tab: %w", err)
	}
	timeout := l.cfg.NavigationTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ChromeSession{tabCtx: tctx, cancel: cancel, timeout: timeout}, nil
}

// Close shuts Chrome down.
func (l *Launcher) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancelBrowser != nil {
		l.cancelBrowser()
		l.cancelAlloc()
		l.browserCtx, l.allocCtx = nil, nil
		l.cancelBrowser, l.cancelAlloc = nil, nil
	}
	return nil
}

// ChromeSession is a single chromedp tab.
type ChromeSession struct {
	tabCtx  context.Context
	cancel  context.CancelFunc
	timeout time.Duration

	mu        sync.Mutex
	navigated bool
	closed    bool
}

// opCtx derives a bounded context on the tab that also ends when ctx does.
func (s *ChromeSession) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	octx, cancel := context.WithTimeout(s.tabCtx, s.timeout)
	stop := context.AfterFunc(ctx, cancel)
	return octx, func() {
		stop()
		cancel()
	}
}

func (s *ChromeSession) Navigate(ctx context.Context, rawURL string) (Page, error) {
	if err := ValidateURL(rawURL); err != nil {
		return Page{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Page{}, errors.New("browser session closed")
	}

	octx, cancel := s.opCtx(ctx)
	defer cancel()

	resp, err := chromedp.RunResponse(octx, chromedp.Navigate(rawURL))
	if err != nil {
		return Page{}, fmt.Errorf("navigate %s: %w", rawURL, err)
	}
	page := Page{URL: rawURL}
	if resp != nil {
		page.Status = int(resp.Status)
	}
	if err := chromedp.Run(octx, chromedp.Location(&page.URL), chromedp.Title(&page.Title)); err != nil {
		return Page{}, fmt.Errorf("read page info: %w", err)
	}
	s.navigated = true
	return page, nil
}

func (s *ChromeSession) Snapshot(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.navigated {
		return Snapshot{}, ErrNoPage
	}

	octx, cancel := s.opCtx(ctx)
	defer cancel()

	var snap Snapshot
	err := chromedp.Run(octx,
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&snap.URL),
		chromedp.Title(&snap.Title),
		chromedp.OuterHTML("html", &snap.HTML, chromedp.ByQuery),
		chromedp.Text("body", &snap.Text, chromedp.ByQuery),
	)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: %w", err)
	}
	return snap, nil
}

func (s *ChromeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.cancel()
	}
	return nil
}

// ValidateURL accepts absolute http and https URLs only.
func ValidateURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return errors.New("invalid url: empty")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid url %q: scheme must be http or https", rawURL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid url %q: missing host", rawURL)
	}
	return nil
}
