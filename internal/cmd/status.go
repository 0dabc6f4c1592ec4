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

type StatusOptions struct {
	global *MemegenOptions

	TaskID string
	Save   bool

	storageFlags
}

var (
	statusLong = templates.LongDesc(`
		Poll a previously submitted job until it finishes and print its memes.`)

	statusExample = templates.Examples(`
		# Resume waiting for a job submitted with --no-wait
		memegen status 3f0c1c9e-8d9b-4c55-9a43-2f1b7e0f6d21`)
)

func NewStatusOptions(global *MemegenOptions) *StatusOptions {
	return &StatusOptions{global: global}
}

func NewStatusCommand(o *StatusOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:                   "status TASK_ID",
		DisableFlagsInUseLine: true,
		Short:                 "Wait for a job and print its memes",
		Long:                  statusLong,
		Example:               statusExample,
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

	cmd.Flags().BoolVar(&o.Save, "save", false, "Copy the generated memes to --out-dir or --bucket")
	o.storageFlags.addFlags(cmd.Flags())

	return cmd
}

func (o *StatusOptions) Complete(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("exactly one TASK_ID is required")
	}
	o.TaskID = args[0]
	o.storageFlags.resolve(o.global)
	return nil
}

func (o *StatusOptions) Validate() error {
	if o.TaskID == "" {
		return fmt.Errorf("TASK_ID must not be empty")
	}
	return nil
}

func (o *StatusOptions) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, controller, err := o.global.newService()
	if err != nil {
		return err
	}

	job := operation.NewJob(o.TaskID)
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
