package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/pflag"

	"github.com/tomasbasham/memegen/internal/operation"
	"github.com/tomasbasham/memegen/internal/storage"
)

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// storageFlags selects where copies of memes are written.
type storageFlags struct {
	OutDir string
	Bucket string
}

func (f *storageFlags) addFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&f.OutDir, "out-dir", "o", "", "Directory for local copies (default: config out_dir)")
	flags.StringVarP(&f.Bucket, "bucket", "b", "", "GCS bucket for copies; takes precedence over --out-dir")
}

// resolve fills unset values from the resolved configuration.
func (f *storageFlags) resolve(o *MemegenOptions) {
	if f.OutDir == "" {
		f.OutDir = o.config.OutDir
	}
	if f.Bucket == "" {
		f.Bucket = o.config.Bucket
	}
}

func (f *storageFlags) uploader(ctx context.Context, opts ...storage.LocalOption) (storage.Uploader, error) {
	if f.Bucket != "" {
		uploader, err := storage.NewGCSUploader(ctx, storage.GCSOptions{Bucket: f.Bucket})
		if err != nil {
			return nil, fmt.Errorf("failed to initialise GCS uploader: %w", err)
		}
		return uploader, nil
	}

	uploader, err := storage.NewLocalUploader(f.OutDir, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise local uploader: %w", err)
	}
	return uploader, nil
}

// closeUploader releases the uploader's client, if it holds one.
func closeUploader(u storage.Uploader) {
	if c, ok := u.(io.Closer); ok {
		_ = c.Close()
	}
}

// waitForJob polls job until it is terminal, reporting progress to w.
func waitForJob(ctx context.Context, controller *operation.Controller, job *operation.Job, w io.Writer) (*operation.Result, error) {
	attempts := 0
	for snap, err := range controller.Poll(ctx, job) {
		if err != nil {
			return nil, err
		}
		attempts++
		if !snap.State.Terminal() {
			fmt.Fprintf(w, "Job %s is still processing (check %d)...\n", snap.ID, attempts)
			continue
		}
		return snap.Result, nil
	}

	snap := job.Snapshot()
	return snap.Result, nil
}

// printResult writes one line per meme. A failed result is returned as an
// error; an empty result is not.
func printResult(w io.Writer, res *operation.Result) error {
	if res == nil {
		return fmt.Errorf("no result")
	}
	if !res.Success {
		msg := res.Error
		if msg == "" {
			msg = "unknown error"
		}
		return fmt.Errorf("meme generation failed: %s", msg)
	}
	if res.Empty() {
		fmt.Fprintln(w, "No memes found.")
		return nil
	}

	for _, ref := range res.Artifacts {
		fmt.Fprintf(w, "%-5s  %s\n", ref.Kind, ref.URL)
	}
	return nil
}

// saveResult copies the memes of a successful result and prints where they
// went.
func saveResult(ctx context.Context, w io.Writer, fetcher storage.Fetcher, sf *storageFlags, jobID string, res *operation.Result) error {
	if res == nil || !res.Success || res.Empty() {
		return nil
	}

	uploader, err := sf.uploader(ctx)
	if err != nil {
		return err
	}
	defer closeUploader(uploader)

	mirror := &storage.Mirror{Fetcher: fetcher, Uploader: uploader}
	copies, err := mirror.Copy(ctx, jobID, res.Artifacts)
	if err != nil {
		return fmt.Errorf("failed to save memes: %w", err)
	}

	fmt.Fprintf(w, "Saved %d meme(s):\n", len(copies))
	for _, ref := range copies {
		fmt.Fprintf(w, "  %s\n", ref.URL)
	}
	return nil
}
