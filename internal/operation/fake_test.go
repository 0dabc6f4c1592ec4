package operation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var errNetwork = errors.New("connection refused")

// fakeService scripts the remote service. Status answers are consumed in
// order; the last one repeats.
type fakeService struct {
	mu sync.Mutex

	receipt   *Receipt
	uploadErr error
	uploads   []*UploadRequest

	statuses    []statusAnswer
	statusCalls int
	inFlight    atomic.Int32
	overlapped  atomic.Bool

	memes    []string
	memesErr error

	captionReceipt *Receipt
	captions       [][2]string
}

type statusAnswer struct {
	status *Status
	err    error
}

func ready(memes ...string) statusAnswer {
	ok := true
	return statusAnswer{status: &Status{Ready: true, Success: &ok, Memes: memes}}
}

func notReady() statusAnswer {
	return statusAnswer{status: &Status{Ready: false}}
}

func failed(msg string) statusAnswer {
	ok := false
	return statusAnswer{status: &Status{Ready: true, Success: &ok, Error: msg}}
}

func (f *fakeService) Upload(_ context.Context, req *UploadRequest) (*Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, req)
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	return f.receipt, nil
}

func (f *fakeService) Status(_ context.Context, _ string) (*Status, error) {
	if f.inFlight.Add(1) > 1 {
		f.overlapped.Store(true)
	}
	defer f.inFlight.Add(-1)

	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.statusCalls
	if i >= len(f.statuses) {
		i = len(f.statuses) - 1
	}
	f.statusCalls++
	return f.statuses[i].status, f.statuses[i].err
}

func (f *fakeService) Memes(context.Context) ([]string, error) {
	return f.memes, f.memesErr
}

func (f *fakeService) CustomCaption(_ context.Context, memeFile, caption string) (*Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captions = append(f.captions, [2]string{memeFile, caption})
	return f.captionReceipt, nil
}

func (f *fakeService) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls
}
