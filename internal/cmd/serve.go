package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tomasbasham/cli-runtime/templates"

	"github.com/tomasbasham/memegen/internal/operation"
	"github.com/tomasbasham/memegen/internal/server"
	"github.com/tomasbasham/memegen/internal/storage"
)

type ServeOptions struct {
	global *MemegenOptions

	Port    int
	Mirror  bool
	MaxJobs int

	storageFlags
}

var (
	serveLong = templates.LongDesc(`
		Start the meme generator web front end.

		The front end serves an upload form, submits inputs to the meme
		generation service and shows the results once each job finishes.
		With --mirror, memes are copied to --out-dir (served under /files/)
		or --bucket before they are shown.`)

	serveExample = templates.Examples(`
		# Start on the default port
		memegen serve

		# Start on a custom port and keep copies in a GCS bucket
		memegen serve --port 9090 --mirror --bucket my-meme-bucket`)
)

func NewServeOptions(global *MemegenOptions) *ServeOptions {
	return &ServeOptions{global: global}
}

func NewServeCommand(o *ServeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Start the meme generator web front end",
		Long:    serveLong,
		Example: serveExample,
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

	cmd.Flags().IntVarP(&o.Port, "port", "p", 8080, "Port to listen on")
	cmd.Flags().BoolVar(&o.Mirror, "mirror", false, "Copy generated memes before showing them")
	cmd.Flags().IntVar(&o.MaxJobs, "max-jobs", 1000, "Maximum number of jobs tracked at once; finished jobs are evicted first")
	o.storageFlags.addFlags(cmd.Flags())

	return cmd
}

func (o *ServeOptions) Complete(cmd *cobra.Command, args []string) error {
	o.storageFlags.resolve(o.global)
	return nil
}

func (o *ServeOptions) Validate() error {
	if o.Port < 0 || o.Port > 65535 {
		return fmt.Errorf("invalid port %d", o.Port)
	}
	if o.MaxJobs <= 0 {
		return fmt.Errorf("--max-jobs must be positive")
	}
	return nil
}

func (o *ServeOptions) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, controller, err := o.global.newService()
	if err != nil {
		return err
	}

	opts := server.Options{Logger: o.global.logger, ResolveURL: c.ResolveURL}

	if o.Mirror {
		uploader, err := o.storageFlags.uploader(ctx, storage.WithPublicURL("/files"))
		if err != nil {
			return err
		}
		defer closeUploader(uploader)

		if local, ok := uploader.(*storage.LocalUploader); ok {
			opts.FilesDir = local.Dir()
		}
		opts.Mirror = &storage.Mirror{Fetcher: c, Uploader: uploader}
	}

	srv := server.New(ctx, controller, operation.NewMemoryStore(operation.WithCapacity(o.MaxJobs)), opts)

	addr := fmt.Sprintf(":%d", o.Port)
	fmt.Fprintf(o.global.Out, "Starting meme generator on %s\n", addr)
	return srv.ListenAndServe(ctx, addr)
}
