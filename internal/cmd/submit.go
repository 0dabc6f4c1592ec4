package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tomasbasham/cli-runtime/templates"

	"github.com/tomasbasham/memegen/internal/operation"
)

type SubmitOptions struct {
	global  *MemegenOptions
	request *operation.UploadRequest

	Photo  string
	Video  string
	Link   string
	NoWait bool
	Save   bool

	storageFlags
}

var (
	submitLong = templates.LongDesc(`
		Submit a photo, a video or a YouTube link for meme generation.

		Exactly one input must be given. Unless --no-wait is set, the job is
		polled until it finishes and the generated memes are printed.`)

	submitExample = templates.Examples(`
		# Generate memes from a photo
		memegen submit --photo cat.png

		# Generate memes from a YouTube video and keep local copies
		memegen submit --link https://youtu.be/xyz --save --out-dir ./memes

		# Submit a video and print the job id without waiting
		memegen submit --video clip.mp4 --no-wait`)
)

func NewSubmitOptions(global *MemegenOptions) *SubmitOptions {
	return &SubmitOptions{global: global}
}

func NewSubmitCommand(o *SubmitOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:                   "submit (--photo FILE | --video FILE | --link URL)",
		DisableFlagsInUseLine: true,
		Short:                 "Submit an input for meme generation",
		Long:                  submitLong,
		Example:               submitExample,
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

	flags := cmd.Flags()
	flags.StringVar(&o.Photo, "photo", "", "Image file to generate memes from")
	flags.StringVar(&o.Video, "video", "", "Video file to generate memes from")
	flags.StringVar(&o.Link, "link", "", "YouTube link to generate memes from")
	flags.BoolVar(&o.NoWait, "no-wait", false, "Print the job id and exit without polling")
	flags.BoolVar(&o.Save, "save", false, "Copy the generated memes to --out-dir or --bucket")
	o.storageFlags.addFlags(flags)

	return cmd
}

// Complete builds the upload request from whichever single input flag was
// given.
func (o *SubmitOptions) Complete(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("unexpected arguments: %v", args)
	}

	var kinds []operation.Kind
	if o.Photo != "" {
		kinds = append(kinds, operation.KindPhoto)
	}
	if o.Video != "" {
		kinds = append(kinds, operation.KindVideo)
	}
	if cmd.Flags().Changed("link") {
		kinds = append(kinds, operation.KindLink)
	}

	switch len(kinds) {
	case 0:
		return fmt.Errorf("one of --photo, --video or --link is required")
	case 1:
	default:
		return fmt.Errorf("only one of --photo, --video or --link may be given")
	}

	switch kinds[0] {
	case operation.KindPhoto:
		blob, err := operation.ReadBlob(o.Photo)
		if err != nil {
			return err
		}
		o.request = operation.NewPhotoRequest(blob)
	case operation.KindVideo:
		blob, err := operation.ReadBlob(o.Video)
		if err != nil {
			return err
		}
		o.request = operation.NewVideoRequest(blob)
	case operation.KindLink:
		o.request = operation.NewLinkRequest(o.Link)
	}

	o.storageFlags.resolve(o.global)
	return nil
}

func (o *SubmitOptions) Validate() error {
	if o.NoWait && o.Save {
		return fmt.Errorf("--save cannot be combined with --no-wait")
	}
	return o.request.Validate()
}

func (o *SubmitOptions) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, controller, err := o.global.newService()
	if err != nil {
		return err
	}

	job, err := controller.Submit(ctx, o.request)
	if err != nil {
		return err
	}

	if o.NoWait {
		fmt.Fprintln(o.global.Out, job.ID)
		return nil
	}

	fmt.Fprintf(o.global.ErrOut, "Submitted job %s, waiting for memes...\n", job.ID)
	res, err := waitForJob(ctx, controller, job, o.global.ErrOut)
	if err != nil {
		return err
	}
	if err := printResult(o.global.Out, res); err != nil {
		return err
	}

	if o.Save {
		return saveResult(ctx, o.global.Out, c, &o.storageFlags, job.ID, res)
	}
	return nil
}
