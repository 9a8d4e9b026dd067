package fetch

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
)

// BrowserRenderer loads the page in a local headless Chrome. It is slower
// than the render proxy but returns real markup, so the structured extractor
// still applies.
type BrowserRenderer struct {
	Headless  bool
	UserAgent string
	Timeout   time.Duration
	// Settle is how long to wait after navigation for client-side rendering.
	Settle   time.Duration
	detector BlockDetector
}

func NewBrowserRenderer(headless bool, detector BlockDetector) *BrowserRenderer {
	if detector == nil {
		detector = NewMarkerDetector()
	}
	return &BrowserRenderer{
		Headless:  headless,
		UserAgent: DefaultUserAgent,
		Timeout:   45 * time.Second,
		Settle:    2 * time.Second,
		detector:  detector,
	}
}

func (b *BrowserRenderer) Name() string { return "browser" }

func (b *BrowserRenderer) Render(ctx context.Context, target string) (Content, error) {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.UserAgent(b.UserAgent),
	}
	if b.Headless {
		opts = append(opts, chromedp.Headless)
	}

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	defer cancel()

	bctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	bctx, cancel = context.WithTimeout(bctx, b.Timeout)
	defer cancel()

	var html string
	err := chromedp.Run(bctx,
		chromedp.Navigate(target),
		chromedp.Sleep(b.Settle),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return Content{}, eris.Wrapf(err, "browser: render %s", target)
	}
	if marker, blocked := b.detector.Detect([]byte(html)); blocked {
		return Content{}, eris.Errorf("browser: challenge page (%s) for %s", marker, target)
	}
	return Content{Kind: Markup, URL: target, Body: html, Via: b.Name()}, nil
}
