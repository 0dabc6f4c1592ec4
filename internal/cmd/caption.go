package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tomasbasham/cli-runtime/templates"
)

type CaptionOptions struct {
	global *MemegenOptions

	MemeFile string
	Caption  string
}

var captionExample = templates.Examples(`
	# Replace the caption of a generated meme
	memegen caption http://127.0.0.1:5000/outputs/cat_meme.png "when the build is green"`)

func NewCaptionOptions(global *MemegenOptions) *CaptionOptions {
	return &CaptionOptions{global: global}
}

func NewCaptionCommand(o *CaptionOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:                   "caption MEME_URL CAPTION",
		DisableFlagsInUseLine: true,
		Short:                 "Submit a custom caption for a generated meme",
		Example:               captionExample,
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

	return cmd
}

func (o *CaptionOptions) Complete(cmd *cobra.Command, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("MEME_URL and CAPTION are required")
	}
	o.MemeFile, o.Caption = args[0], args[1]
	return nil
}

func (o *CaptionOptions) Validate() error {
	return nil
}

func (o *CaptionOptions) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, controller, err := o.global.newService()
	if err != nil {
		return err
	}

	if err := controller.CustomCaption(ctx, o.MemeFile, o.Caption); err != nil {
		return err
	}

	fmt.Fprintln(o.global.Out, "Custom caption submitted!")
	return nil
}
