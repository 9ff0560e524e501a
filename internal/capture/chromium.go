// Package capture snapshots the rendered timeline page with headless
// Chromium.
package capture

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	appLog "plantime/internal/log"
)

const (
	DefaultWidth   = 1600
	DefaultHeight  = 900
	DefaultTimeout = 30 * time.Second
)

// Options defines one snapshot.
type Options struct {
	// URL of the timeline page, e.g. "http://127.0.0.1:8080/timeline".
	URL string
	// OutputPath receives the PNG.
	OutputPath string

	// Width and Height set the viewport; the full page is captured.
	Width  int
	Height int

	Timeout time.Duration

	// ExecPath selects the Chromium binary. Empty means chromedp's lookup.
	ExecPath string
}

func (o *Options) normalize() error {
	if o.URL == "" {
		return errors.New("capture: url is required")
	}
	if o.OutputPath == "" {
		return errors.New("capture: output path is required")
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return nil
}

// TimelineURL builds the /timeline URL under base with the given query.
// Basic Auth credentials, when set, are embedded in the URL.
func TimelineURL(base string, query url.Values, user, password string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/") + "/timeline")
	if err != nil {
		return "", fmt.Errorf("capture: base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("capture: base url %q needs scheme and host", base)
	}
	if user != "" {
		u.User = url.UserPassword(user, password)
	}
	u.RawQuery = query.Encode()
	return u.String(), nil
}

// Snapshot opens opts.URL, waits for the page to mark itself ready with
// data-ready="true" and writes a full-page PNG to opts.OutputPath.
func Snapshot(parent context.Context, opts Options) error {
	if err := opts.normalize(); err != nil {
		return err
	}

	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts, chromedp.WindowSize(opts.Width, opts.Height))
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, allocOpts...)
	defer allocCancel()

	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var png []byte
	start := time.Now()
	err := chromedp.Run(ctx,
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(opts.URL),
		chromedp.WaitVisible(`[data-ready="true"]`, chromedp.ByQuery),
		chromedp.FullScreenshot(&png, 100),
	)
	if err != nil {
		return fmt.Errorf("capture: chromedp run: %w", err)
	}

	if err := os.WriteFile(opts.OutputPath, png, 0o644); err != nil {
		return fmt.Errorf("capture: write png: %w", err)
	}
	appLog.Info("timeline snapshot written", "path", opts.OutputPath, "bytes", len(png), "elapsed", time.Since(start).String())
	return nil
}
