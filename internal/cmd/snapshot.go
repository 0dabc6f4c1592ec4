package cmd

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tomasbasham/cli-runtime/templates"

	"github.com/tomasbasham/memegen/internal/operation"
	"github.com/tomasbasham/memegen/internal/snapshot"
	"github.com/tomasbasham/memegen/internal/storage"
	"github.com/tomasbasham/memegen/internal/view"
)

type SnapshotOptions struct {
	global *MemegenOptions

	TaskID  string
	Timeout time.Duration

	storageFlags
}

var (
	snapshotLong = templates.LongDesc(`
		Render the results of a job, or the latest memes, as a single PNG
		image for sharing.

		The results page is rendered in headless Chrome, which must be
		installed. Memes that fail to load are reported.`)

	snapshotExample = templates.Examples(`
		# Snapshot the results of a job into ./memes
		memegen snapshot 3f0c1c9e-8d9b-4c55-9a43-2f1b7e0f6d21

		# Snapshot the latest memes into a GCS bucket
		memegen snapshot --bucket my-meme-bucket`)
)

func NewSnapshotOptions(global *MemegenOptions) *SnapshotOptions {
	return &SnapshotOptions{global: global}
}

func NewSnapshotCommand(o *SnapshotOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:                   "snapshot [TASK_ID]",
		DisableFlagsInUseLine: true,
		Short:                 "Capture a results page as a PNG",
		Long:                  snapshotLong,
		Example:               snapshotExample,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(cmd, args); err != nil {
				return err
			}
			if err := o.Validate(); err != nil {
				return err
			}
			if err := o.Run(); err != nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().DurationVarP(&o.Timeout, "timeout", "t", 30*time.Second, "Maximum wait for the page to finish loading")
	o.storageFlags.addFlags(cmd.Flags())

	return cmd
}

func (o *SnapshotOptions) Complete(cmd *cobra.Command, args []string) error {
	if len(args) > 1 {
		return fmt.Errorf("at most one TASK_ID may be given")
	}
	if len(args) == 1 {
		o.TaskID = args[0]
	}
	o.storageFlags.resolve(o.global)
	return nil
}

func (o *SnapshotOptions) Validate() error {
	if o.Timeout <= 0 {
		return fmt.Errorf("--timeout must be positive")
	}
	return nil
}

func (o *SnapshotOptions) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, controller, err := o.global.newService()
	if err != nil {
		return err
	}

	var res *operation.Result
	if o.TaskID != "" {
		res, err = waitForJob(ctx, controller, operation.NewJob(o.TaskID), o.global.ErrOut)
	} else {
		res, err = controller.FetchLatest(ctx)
	}
	if err != nil {
		return err
	}
	if !res.Success {
		return printResult(o.global.ErrOut, res)
	}

	page := view.FromResult(res, nil)
	page.TaskID = o.TaskID
	page.ResolveURLs(c.ResolveURL)

	pageURL, shutdown, err := servePage(page)
	if err != nil {
		return err
	}
	defer shutdown()

	fmt.Fprintf(o.global.ErrOut, "Rendering %s...\n", pageURL)
	result, err := snapshot.Capture(ctx, snapshot.Options{URL: pageURL, Timeout: o.Timeout})
	if err != nil {
		return err
	}
	if result.TimedOut {
		fmt.Fprintln(o.global.ErrOut, "Page did not finish loading before the timeout; snapshot may be incomplete")
	}
	for _, u := range result.Broken {
		fmt.Fprintf(o.global.ErrOut, "Failed to load %s\n", u)
	}

	uploader, err := o.storageFlags.uploader(ctx)
	if err != nil {
		return err
	}
	defer closeUploader(uploader)

	name := o.TaskID
	if name == "" {
		name = "latest-" + uuid.New().String()
	}
	uploaded, err := uploader.Upload(ctx, &storage.UploadRequest{
		ObjectName:  storage.ObjectPath(name, "snapshot.png"),
		Content:     bytes.NewReader(result.PNG),
		ContentType: "image/png",
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(o.global.Out, uploaded.URL)
	return nil
}

// servePage serves the rendered page on a loopback port for the browser to
// load. The returned function stops the listener.
func servePage(page view.Page) (string, func(), error) {
	var buf bytes.Buffer
	if err := view.Render(&buf, page); err != nil {
		return "", nil, fmt.Errorf("failed to render results page: %w", err)
	}
	body := buf.Bytes()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, fmt.Errorf("failed to listen on loopback: %w", err)
	}

	srv := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write(body)
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		_ = srv.Serve(ln)
	}()

	return "http://" + ln.Addr().String() + "/", func() { _ = srv.Close() }, nil
}
