package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tomasbasham/cli-runtime/templates"
)

type LatestOptions struct {
	global *MemegenOptions

	Save bool

	storageFlags
}

var (
	latestLong = templates.LongDesc(`
		List every meme the service has generated so far. No job is submitted
		and nothing is polled.`)

	latestExample = templates.Examples(`
		# List the latest memes
		memegen latest

		# Copy them to a GCS bucket
		memegen latest --save --bucket my-meme-bucket`)
)

func NewLatestOptions(global *MemegenOptions) *LatestOptions {
	return &LatestOptions{global: global}
}

func NewLatestCommand(o *LatestOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "latest",
		Short:   "List the most recently generated memes",
		Long:    latestLong,
		Example: latestExample,
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

	cmd.Flags().BoolVar(&o.Save, "save", false, "Copy the memes to --out-dir or --bucket")
	o.storageFlags.addFlags(cmd.Flags())

	return cmd
}

func (o *LatestOptions) Complete(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("unexpected arguments: %v", args)
	}
	o.storageFlags.resolve(o.global)
	return nil
}

func (o *LatestOptions) Validate() error {
	return nil
}

func (o *LatestOptions) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, controller, err := o.global.newService()
	if err != nil {
		return err
	}

	res, err := controller.FetchLatest(ctx)
	if err != nil {
		return err
	}
	if err := printResult(o.global.Out, res); err != nil {
		return err
	}

	if o.Save {
		return saveResult(ctx, o.global.Out, c, &o.storageFlags, "", res)
	}
	return nil
}
