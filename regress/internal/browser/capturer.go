package browser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/regress/regress/scenario"
)

// Extra keys read from the capture context.
const (
	ExtraUserAgent = "user_agent"
	ExtraWaitFor   = "wait_for"
)

// hideScript sets visibility:hidden on every element matching one of the
// selectors. Invalid selectors are skipped.
const hideScript = `(selectors) => {
	for (const sel of selectors) {
		let nodes = [];
		try { nodes = document.querySelectorAll(sel); } catch (e) { continue; }
		for (const n of nodes) { n.style.setProperty('visibility', 'hidden', 'important'); }
	}
}`

// Capturer takes PNG screenshots through a Manager's browser. It is safe
// for concurrent use; each capture runs in its own tab.
type Capturer struct {
	mgr *Manager
}

// NewCapturer creates a Capturer over mgr.
func NewCapturer(mgr *Manager) *Capturer {
	return &Capturer{mgr: mgr}
}

// Capture opens url at size, applies the capture context and returns the
// PNG bytes.
func (c *Capturer) Capture(ctx context.Context, url string, size scenario.Size, cc scenario.CaptureContext) (io.ReadCloser, error) {
	b := c.mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}
	cfg := c.mgr.cfg
	log := cfg.Logger

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}
	defer page.Close()

	if len(cfg.ResourceBlocking) > 0 {
		router, err := applyResourceBlocking(page, cfg.ResourceBlocking)
		if err != nil {
			log.Warn("browser: resource blocking failed", "error", err)
		} else {
			defer router.Stop()
		}
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             size.Width,
		Height:            size.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		return nil, fmt.Errorf("browser: viewport %s: %w", size, err)
	}

	if ua := cc.String(ExtraUserAgent); ua != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); err != nil {
			return nil, fmt.Errorf("browser: user agent: %w", err)
		}
	}

	navCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(url); err != nil {
		return nil, fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		return nil, fmt.Errorf("browser: wait load %s: %w", url, err)
	}
	if sel := cc.String(ExtraWaitFor); sel != "" {
		if _, err := page.Context(navCtx).Element(sel); err != nil {
			return nil, fmt.Errorf("browser: wait for %q: %w", sel, err)
		}
	}

	if err := sleep(ctx, cc.Delay); err != nil {
		return nil, err
	}

	if len(cc.Hide) > 0 {
		if _, err := page.Context(ctx).Eval(hideScript, cc.Hide); err != nil {
			return nil, fmt.Errorf("browser: hide: %w", err)
		}
	}

	png, err := screenshot(page.Context(ctx), !cc.Crop)
	if err != nil {
		return nil, fmt.Errorf("browser: screenshot %s: %w", url, err)
	}

	log.Debug("browser: captured", "url", url, "size", size.String(), "bytes", len(png))
	return io.NopCloser(bytes.NewReader(png)), nil
}

func screenshot(page *rod.Page, fullPage bool) ([]byte, error) {
	return page.Screenshot(fullPage, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
