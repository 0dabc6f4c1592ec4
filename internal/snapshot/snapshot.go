// Package snapshot renders a results page in headless Chrome and captures it
// as a PNG, for sharing a set of generated memes as a single image. It also
// reports which memes on the page failed to load.
package snapshot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// Options controls the behaviour of a snapshot.
type Options struct {
	// URL is the page to capture. Required.
	URL string

	// Timeout bounds the wait for the page to reach networkIdle. When it
	// elapses the page is captured as it is. Defaults to 30 seconds if zero.
	Timeout time.Duration

	// ViewportWidth and ViewportHeight set the browser viewport dimensions.
	// Defaults to 1280x1024 if either is zero.
	ViewportWidth  int64
	ViewportHeight int64
}

// Result is the outcome of a snapshot.
type Result struct {
	// PNG is a full-page screenshot.
	PNG []byte

	// Broken lists image and video URLs that failed to load, sorted.
	Broken []string

	// TimedOut is true when the page never reached networkIdle.
	TimedOut bool
}

// Capture navigates to opts.URL, waits for the page to settle and takes a
// full-page screenshot.
//
// Capture is safe to call concurrently; each call starts its own browser.
func Capture(ctx context.Context, opts Options) (*Result, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("snapshot: URL must not be empty")
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	width, height := opts.ViewportWidth, opts.ViewportHeight
	if width == 0 || height == 0 {
		width, height = 1280, 1024
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx,
		append(
			chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
		)...,
	)
	defer cancelAlloc()

	// chromedp logs CDP events it cannot unmarshal when the installed Chrome
	// is newer than the pinned cdproto; those events are irrelevant here.
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(string, ...any) {}),
		chromedp.WithErrorf(func(string, ...any) {}),
		chromedp.WithDebugf(func(string, ...any) {}),
	)
	defer cancelTab()

	tracker := newMediaTracker()
	idle := newIdleSignal()

	chromedp.ListenTarget(tabCtx, func(ev any) {
		switch ev := ev.(type) {
		case *network.EventRequestWillBeSent:
			tracker.sent(ev)
		case *network.EventResponseReceived:
			tracker.responded(ev)
		case *network.EventLoadingFailed:
			tracker.failed(ev)
		case *page.EventLifecycleEvent:
			if ev.Name == "networkIdle" {
				idle.fire()
			}
		}
	})

	if err := chromedp.Run(tabCtx,
		chromedp.EmulateViewport(width, height),
		chromedp.Navigate(opts.URL),
	); err != nil {
		return nil, fmt.Errorf("snapshot: navigation failed: %w", err)
	}

	waitCtx, cancelWait := context.WithTimeout(ctx, timeout)
	defer cancelWait()

	timedOut := !idle.wait(waitCtx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf []byte
	if err := chromedp.Run(tabCtx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, fmt.Errorf("snapshot: screenshot failed: %w", err)
	}

	return &Result{
		PNG:      buf,
		Broken:   tracker.brokenURLs(),
		TimedOut: timedOut,
	}, nil
}

// idleSignal is closed at most once, guarding against networkIdle firing
// more than once.
type idleSignal struct {
	ch   chan struct{}
	once sync.Once
}

func newIdleSignal() *idleSignal {
	return &idleSignal{ch: make(chan struct{})}
}

func (s *idleSignal) fire() {
	s.once.Do(func() { close(s.ch) })
}

// wait reports whether the signal fired before ctx was done.
func (s *idleSignal) wait(ctx context.Context) bool {
	select {
	case <-s.ch:
		return true
	case <-ctx.Done():
		return false
	}
}
