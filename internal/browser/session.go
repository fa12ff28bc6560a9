package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"github.com/corpix/uarand"
	"github.com/mwahhasnft-alt/rork-sub000/config"
	"github.com/mwahhasnft-alt/rork-sub000/internal/model"
)

// Common desktop resolutions used for viewport randomization.
var viewports = [][2]int64{
	{1920, 1080},
	{1366, 768},
	{1536, 864},
	{1440, 900},
	{1280, 720},
}

// Resource patterns blocked to cut bandwidth and page load time.
var blockedPatterns = []string{
	"*.png", "*.jpg", "*.jpeg", "*.gif", "*.webp", "*.svg",
	"*.woff", "*.woff2", "*.ttf", "*.css",
}

var captchaMarkers = []string{
	"g-recaptcha",
	"h-captcha",
	"hcaptcha.com",
	"cf-challenge",
	"cf-turnstile",
	"px-captcha",
}

var ErrCaptchaUnresolved = errors.New("captcha challenge not resolved")

// Session owns one headless browser process for a single adapter. The
// browser is launched lazily on the first page request. Cookies are cached
// under the source+proxy session key and replayed into every new page.
type Session struct {
	cfg    *config.BrowserConfig
	log    *slog.Logger
	source model.Source

	mu          sync.Mutex
	allocCtx    context.Context
	allocCancel context.CancelFunc
	proxy       string
	nextProxy   string
	cookies     map[string][]*network.CookieParam
	rnd         *rand.Rand
}

func NewSession(source model.Source, cfg *config.BrowserConfig, log *slog.Logger) *Session {
	return &Session{
		cfg:     cfg,
		log:     log.With(slog.String("source", string(source))),
		source:  source,
		cookies: make(map[string][]*network.CookieParam),
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// ensureBrowser lazily creates the exec allocator. A pending proxy rotation
// is applied here because a new --proxy-server flag needs a fresh process.
func (s *Session) ensureBrowser() {
	if s.allocCtx != nil && s.nextProxy == "" {
		return
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
	if s.nextProxy != "" {
		s.proxy = s.nextProxy
		s.nextProxy = ""
	} else if s.cfg.ProxyEnabled && len(s.cfg.ProxyPool) > 0 {
		s.proxy = s.cfg.ProxyPool[s.rnd.Intn(len(s.cfg.ProxyPool))]
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", s.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-features", "IsolateOrigins,site-per-process"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-plugins-discovery", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.UserAgent(uarand.GetRandom()),
	)
	if s.proxy != "" {
		opts = append(opts, chromedp.ProxyServer(s.proxy))
		s.log.Info("browser session using proxy.", slog.String("proxy", s.proxy))
	}
	s.allocCtx, s.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
}

// Close shuts down the browser process and clears all per-session state.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.allocCancel != nil {
		s.allocCancel()
		s.allocCtx = nil
		s.allocCancel = nil
	}
	s.cookies = make(map[string][]*network.CookieParam)
	s.proxy = ""
	s.nextProxy = ""
}

// sessionKey scopes cached cookies to the source and the proxy they were
// obtained through. A rotated proxy starts with a clean jar.
func (s *Session) sessionKey() string {
	return string(s.source) + "|" + s.proxy
}

// rotateProxy logically switches to a different proxy from the pool. The new
// assignment takes effect at the next browser start since the proxy flag
// cannot change on a live process.
func (s *Session) rotateProxy() {
	if !s.cfg.ProxyEnabled || len(s.cfg.ProxyPool) < 2 {
		return
	}
	next := s.cfg.ProxyPool[s.rnd.Intn(len(s.cfg.ProxyPool))]
	for next == s.proxy {
		next = s.cfg.ProxyPool[s.rnd.Intn(len(s.cfg.ProxyPool))]
	}
	s.nextProxy = next
	s.log.Info("proxy rotation scheduled for next session.", slog.String("proxy", next))
}

// FetchPage navigates to the url in a fresh page and returns the rendered
// HTML. Navigation is retried with capped exponential backoff; after more
// than one failed attempt the proxy assignment is rotated. A random pacing
// delay runs before every attempt to avoid request-pattern fingerprinting.
func (s *Session) FetchPage(ctx context.Context, url string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	attempts := s.cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := sleepCtx(ctx, s.paceDelay()); err != nil {
			return "", err
		}
		s.ensureBrowser()

		html, err := s.fetchOnce(ctx, url)
		if err == nil {
			return html, nil
		}
		lastErr = err
		s.log.Warn("navigation failed.", slog.String("url", url),
			slog.Int("attempt", attempt+1), slog.String("err", err.Error()))

		if attempt > 0 {
			s.rotateProxy()
		}
		if attempt < attempts-1 {
			if err := sleepCtx(ctx, backoff(attempt, s.cfg.BackoffCeiling, s.rnd)); err != nil {
				return "", err
			}
		}
	}

	return "", fmt.Errorf("navigation to %s failed after %d attempts: %w", url, attempts, lastErr)
}

func (s *Session) fetchOnce(ctx context.Context, url string) (string, error) {
	tabCtx, cancel := chromedp.NewContext(s.allocCtx)
	defer cancel()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, s.cfg.NavTimeout)
	defer cancelTimeout()

	statusCode := 0
	chromedp.ListenTarget(tabCtx, func(event interface{}) {
		if resp, ok := event.(*network.EventResponseReceived); ok {
			if resp.Type == network.ResourceTypeDocument && statusCode == 0 {
				statusCode = int(resp.Response.Status)
			}
		}
	})

	viewport := s.pickViewport()
	tasks := chromedp.Tasks{
		network.Enable(),
		emulation.SetUserAgentOverride(uarand.GetRandom()),
		chromedp.EmulateViewport(viewport[0], viewport[1]),
		network.SetExtraHTTPHeaders(map[string]interface{}{
			"Accept-Language": "en-US,en;q=0.9,ar;q=0.8",
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		}),
	}
	if s.cfg.BlockResources {
		tasks = append(tasks, network.SetBlockedURLS(blockedPatterns))
	}
	if saved := s.cookies[s.sessionKey()]; len(saved) > 0 {
		tasks = append(tasks, storage.SetCookies(saved))
	}
	tasks = append(tasks,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
	)

	var html string
	tasks = append(tasks, chromedp.OuterHTML("html", &html))

	if err := chromedp.Run(tabCtx, tasks); err != nil {
		return "", err
	}
	if statusCode != 0 && statusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code %d", statusCode)
	}

	s.persistCookies(tabCtx)

	if s.cfg.HandleCaptcha && hasCaptcha(html) {
		html, _ = s.solveCaptcha(tabCtx, html)
		if hasCaptcha(html) {
			return "", ErrCaptchaUnresolved
		}
	}

	return html, nil
}

// persistCookies saves the page's cookies under the current session key so
// the next page of this adapter carries them over.
func (s *Session) persistCookies(tabCtx context.Context) {
	err := chromedp.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := storage.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		params := make([]*network.CookieParam, 0, len(cookies))
		for _, c := range cookies {
			params = append(params, &network.CookieParam{
				Name:   c.Name,
				Value:  c.Value,
				Domain: c.Domain,
				Path:   c.Path,
				Secure: c.Secure,
			})
		}
		s.cookies[s.sessionKey()] = params
		return nil
	}))
	if err != nil {
		s.log.Debug("failed to persist cookies.", slog.String("err", err.Error()))
	}
}

// solveCaptcha waits out the challenge and reloads once. Marker-based
// challenges from interstitial pages often clear after the verification
// script finishes.
func (s *Session) solveCaptcha(tabCtx context.Context, html string) (string, error) {
	s.log.Warn("captcha detected. waiting before reload.")
	wait := s.cfg.CaptchaWaitTime
	if wait <= 0 {
		wait = 5 * time.Second
	}
	if err := sleepCtx(tabCtx, wait); err != nil {
		return html, err
	}
	var reloaded string
	err := chromedp.Run(tabCtx,
		chromedp.Reload(),
		chromedp.WaitReady("body"),
		chromedp.OuterHTML("html", &reloaded),
	)
	if err != nil {
		return html, err
	}
	return reloaded, nil
}

func (s *Session) pickViewport() [2]int64 {
	if s.cfg.FixedViewportW > 0 && s.cfg.FixedViewportH > 0 {
		return [2]int64{int64(s.cfg.FixedViewportW), int64(s.cfg.FixedViewportH)}
	}
	return viewports[s.rnd.Intn(len(viewports))]
}

// paceDelay returns a random 1-3s delay applied before every navigation.
func (s *Session) paceDelay() time.Duration {
	return time.Second + time.Duration(s.rnd.Int63n(int64(2*time.Second)))
}

func hasCaptcha(html string) bool {
	lower := strings.ToLower(html)
	for _, marker := range captchaMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// backoff computes the delay before retry number attempt (zero-based):
// 1s * 2^attempt plus jitter, capped at the configured ceiling.
func backoff(attempt int, ceiling time.Duration, rnd *rand.Rand) time.Duration {
	if ceiling <= 0 {
		ceiling = 30 * time.Second
	}
	base := time.Second << uint(attempt)
	if base <= 0 || base > ceiling {
		return ceiling
	}
	jitter := time.Duration(rnd.Int63n(int64(500 * time.Millisecond)))
	delay := base + jitter
	if delay > ceiling {
		return ceiling
	}
	return delay
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
