package scrape

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Browser is one shared headless Chrome process serving a whole scrape
// batch. Each Render opens a fresh tab and closes it afterwards; the
// underlying process lives until Close. One process per batch bounds memory
// where one per domain would not.
type Browser struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
	startOnce   sync.Once
	startErr    error
	agent       string
}

// NewBrowser prepares a browser handle. The Chrome process launches lazily
// on the first Render, so batches that never need the fallback pay nothing.
func NewBrowser(userAgent string) *Browser {
	if userAgent == "" {
		userAgent = "Mozilla/5.0 (compatible; ProspectorBot/1.0)"
	}
	return &Browser{agent: userAgent}
}

func (b *Browser) start() error {
	b.startOnce.Do(func() {
		opts := append(
			chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.UserAgent(b.agent),
		)
		b.allocCtx, b.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
		b.ctx, b.cancel = chromedp.NewContext(b.allocCtx)

		startCtx, cancel := context.WithTimeout(b.ctx, 30*time.Second)
		defer cancel()
		if err := chromedp.Run(startCtx, chromedp.Navigate("about:blank")); err != nil {
			b.startErr = eris.Wrap(err, "scrape: launch browser")
			b.cancel()
			b.allocCancel()
		}
	})
	return b.startErr
}

// Render navigates a new tab to the URL and returns the rendered markup
// after the DOM settles. The tab is closed before returning.
func (b *Browser) Render(ctx context.Context, url string) (string, error) {
	if err := b.start(); err != nil {
		return "", err
	}

	tabCtx, tabCancel := chromedp.NewContext(b.ctx)
	defer tabCancel()

	// Honor the caller's deadline on the tab.
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		tabCtx, cancel = context.WithDeadline(tabCtx, deadline)
		defer cancel()
	}

	var html string
	err := chromedp.Run(tabCtx,
		network.Enable(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		// Give client-side rendering a beat to fill the DOM.
		chromedp.Sleep(500*time.Millisecond),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", eris.Wrapf(err, "scrape: render %s", url)
	}
	return html, nil
}

// Close tears down the shared process. If graceful shutdown stalls, the
// Chrome process is killed directly so no subprocesses leak past the batch.
func (b *Browser) Close() {
	if b.ctx == nil {
		return
	}

	done := make(chan struct{})
	go func() {
		_ = chromedp.Cancel(b.ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		zap.L().Warn("browser shutdown timed out, killing process")
		if c := chromedp.FromContext(b.ctx); c != nil && c.Browser != nil {
			if p := c.Browser.Process(); p != nil {
				_ = p.Kill()
			}
		}
	}
	b.cancel()
	b.allocCancel()
}
