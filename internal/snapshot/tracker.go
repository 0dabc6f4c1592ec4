package snapshot

import (
	"sort"
	"sync"

	"github.com/chromedp/cdproto/network"
)

// mediaTracker correlates image and media requests with their outcome by
// RequestID. CDP reports load failures without the URL, so the URL is kept
// from the request event.
type mediaTracker struct {
	mu     sync.Mutex
	urls   map[network.RequestID]string
	broken map[string]struct{}
}

func newMediaTracker() *mediaTracker {
	return &mediaTracker{
		urls:   make(map[network.RequestID]string),
		broken: make(map[string]struct{}),
	}
}

func (t *mediaTracker) sent(ev *network.EventRequestWillBeSent) {
	if ev.Type != network.ResourceTypeImage && ev.Type != network.ResourceTypeMedia {
		return
	}
	if ev.Request == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.urls[ev.RequestID] = ev.Request.URL
}

func (t *mediaTracker) responded(ev *network.EventResponseReceived) {
	if ev.Response == nil || ev.Response.Status < 400 {
		return
	}
	t.markBroken(ev.RequestID)
}

func (t *mediaTracker) failed(ev *network.EventLoadingFailed) {
	// A cancelled load is the browser's own decision, e.g. a video element
	// that only needed the metadata.
	if ev.Canceled {
		return
	}
	t.markBroken(ev.RequestID)
}

func (t *mediaTracker) markBroken(id network.RequestID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if u, ok := t.urls[id]; ok {
		t.broken[u] = struct{}{}
	}
}

func (t *mediaTracker) brokenURLs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	urls := make([]string, 0, len(t.broken))
	for u := range t.broken {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls
}
