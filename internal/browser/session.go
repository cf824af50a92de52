// Package browser implements the page-interaction capability with chromedp.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/gbstd/std-crawler/internal/crawler"
)

// Config controls the browser subsystem.
type Config struct {
	Headless  bool
	UserAgent string
}

// Factory opens chromedp-backed sessions from a shared exec allocator.
// Sessions are independent tabs; each crawl execution owns exactly one.
type Factory struct {
	cfg         Config
	allocator   context.Context
	allocCancel context.CancelFunc
	logger      *zap.Logger
}

// NewFactory creates a Factory with its own Chrome allocator.
func NewFactory(cfg Config, logger *zap.Logger) *Factory {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &Factory{
		cfg:         cfg,
		allocator:   allocCtx,
		allocCancel: allocCancel,
		logger:      logger,
	}
}

// Close cancels the allocator context, shutting down the browser.
func (f *Factory) Close() {
	f.allocCancel()
}

// NewSession opens a fresh browser tab.
func (f *Factory) NewSession(ctx context.Context) (crawler.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("session start: %w", err)
	}
	tabCtx, tabCancel := chromedp.NewContext(f.allocator)

	actions := []chromedp.Action{}
	if f.cfg.UserAgent != "" {
		actions = append(actions, emulation.SetUserAgentOverride(f.cfg.UserAgent))
	}
	if err := chromedp.Run(tabCtx, actions...); err != nil {
		tabCancel()
		return nil, fmt.Errorf("start browser session: %w", err)
	}
	return &Session{
		ctx:    tabCtx,
		cancel: tabCancel,
		logger: f.logger,
	}, nil
}

// Session is one exclusively-owned browser tab.
type Session struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
}

// Navigate loads url and waits for the document body, bounded by timeout.
func (s *Session) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	navCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	if err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// WaitIdle lets in-flight page work quiesce.
func (s *Session) WaitIdle(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("wait idle: %w", err)
	}
	if err := chromedp.Run(s.ctx,
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(500*time.Millisecond),
	); err != nil {
		return fmt.Errorf("wait idle: %w", err)
	}
	return nil
}

// PageHTML returns the rendered HTML of the top-level document.
func (s *Session) PageHTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("page html: %w", err)
	}
	var html string
	if err := chromedp.Run(s.ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("page html: %w", err)
	}
	return html, nil
}

// frameHTMLJS snapshots the first same-origin iframe document, falling back
// to the top-level document. The platform renders search results inside an
// iframe on the same origin.
const frameHTMLJS = `(() => {
	const frame = document.querySelector('iframe');
	if (frame && frame.contentDocument && frame.contentDocument.documentElement) {
		return frame.contentDocument.documentElement.outerHTML;
	}
	return document.documentElement.outerHTML;
})()`

// FrameHTML returns the rendered HTML of the result iframe document.
func (s *Session) FrameHTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("frame html: %w", err)
	}
	var html string
	if err := chromedp.Run(s.ctx, chromedp.Evaluate(frameHTMLJS, &html)); err != nil {
		return "", fmt.Errorf("frame html: %w", err)
	}
	return html, nil
}

// clickTextJS clicks the innermost element whose trimmed text matches
// exactly, searching the top document and same-origin iframe documents.
const clickTextJS = `((wanted) => {
	const docs = [document];
	for (const frame of document.querySelectorAll('iframe')) {
		if (frame.contentDocument) {
			docs.push(frame.contentDocument);
		}
	}
	let best = null;
	for (const doc of docs) {
		for (const el of doc.querySelectorAll('a, button, span, label, li, dt, dd, div')) {
			const text = (el.textContent || '').trim().replace(/\s+/g, ' ');
			if (text !== wanted) {
				continue;
			}
			if (!best || el.textContent.length <= best.textContent.length) {
				best = el;
			}
		}
	}
	if (!best) {
		return false;
	}
	best.click();
	return true;
})`

// ClickText clicks the first element matching text exactly.
func (s *Session) ClickText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("click %q: %w", text, err)
	}
	var clicked bool
	js := fmt.Sprintf("%s(%q)", clickTextJS, text)
	if err := chromedp.Run(s.ctx, chromedp.Evaluate(js, &clicked)); err != nil {
		return fmt.Errorf("click %q: %w", text, err)
	}
	if !clicked {
		return fmt.Errorf("click %q: element not found", text)
	}
	return nil
}

// ObserveTab clicks the element matching text and returns the URL of the
// tab the click opened. The auxiliary tab is closed before returning.
func (s *Session) ObserveTab(ctx context.Context, text string) (string, error) {
	ch := chromedp.WaitNewTarget(s.ctx, func(info *target.Info) bool {
		return info.URL != "" && info.URL != "about:blank"
	})

	if err := s.ClickText(ctx, text); err != nil {
		return "", err
	}

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("observe tab: %w", ctx.Err())
	case <-time.After(15 * time.Second):
		return "", errors.New("observe tab: no new tab appeared")
	case id := <-ch:
		tabCtx, cancel := chromedp.NewContext(s.ctx, chromedp.WithTargetID(id))
		defer cancel()
		var location string
		if err := chromedp.Run(tabCtx, chromedp.Location(&location)); err != nil {
			return "", fmt.Errorf("observe tab location: %w", err)
		}
		if err := chromedp.Cancel(tabCtx); err != nil {
			s.logger.Debug("auxiliary tab close failed", zap.Error(err))
		}
		return location, nil
	}
}

// Close releases the tab and its browser resources.
func (s *Session) Close() {
	s.cancel()
}
