package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	cliflag "github.com/tomasbasham/cli-runtime/flag"
	"github.com/tomasbasham/cli-runtime/iooption"
	"github.com/tomasbasham/cli-runtime/printer"
	"github.com/tomasbasham/cli-runtime/templates"

	"github.com/tomasbasham/memegen/internal/client"
	"github.com/tomasbasham/memegen/internal/config"
	"github.com/tomasbasham/memegen/internal/logging"
	"github.com/tomasbasham/memegen/internal/operation"
)

var (
	rootLong = templates.LongDesc(`
		Generate memes from a photo, a video or a YouTube link.

		memegen submits the input to a meme generation service, waits for the
		job to finish and prints or stores the generated memes.`)

	rootExamples = templates.Examples(`
		# Generate memes from a photo and wait for them
		memegen submit --photo cat.png

		# Browse the most recent memes in a browser
		memegen serve --port 8080`)

	// Injected at build time using ldflags.
	version = ""
	commit  = ""
)

// MemegenOptions defines the options shared by every memegen command.
type MemegenOptions struct {
	ConfigPath   string
	APIURL       string
	PollInterval time.Duration
	LogLevel     string

	config config.Config
	logger zerolog.Logger

	iooption.IOStreams
}

// NewMemegenOptions provides an initialised MemegenOptions instance.
func NewMemegenOptions(streams iooption.IOStreams) *MemegenOptions {
	return &MemegenOptions{
		IOStreams: streams,
		config:    config.Default(),
		logger:    zerolog.Nop(),
	}
}

// NewRootCommand creates the `memegen` command with default arguments.
func NewRootCommand() *cobra.Command {
	options := NewMemegenOptions(iooption.IOStreams{
		In:     os.Stdin,
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	})

	return NewRootCommandWithArgs(options)
}

// NewRootCommandWithArgs creates the `memegen` command and its nested
// children.
func NewRootCommandWithArgs(o *MemegenOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:                   "memegen [command]",
		Version:               versionInfo(),
		DisableFlagsInUseLine: true,
		Short:                 "AI meme generator client",
		Long:                  rootLong,
		Example:               rootExamples,
		SilenceErrors:         true,
		SilenceUsage:          true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.Complete(cmd)
		},
	}

	pflags := cmd.PersistentFlags()
	pflags.StringVar(&o.ConfigPath, "config", "", "Path to a YAML config file (default: user config dir)")
	pflags.StringVar(&o.APIURL, "api-url", "", "Root URL of the meme generation service")
	pflags.DurationVar(&o.PollInterval, "poll-interval", operation.DefaultInterval, "Delay between job status requests")
	pflags.StringVar(&o.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")

	printerOpts := printer.WarningPrinterOptions{Color: true}
	printer := printer.NewWarningPrinter(o.ErrOut, printerOpts)
	cmd.SetGlobalNormalizationFunc(cliflag.WarnWordSepNormalizeFunc(printer))

	cmd.AddCommand(NewSubmitCommand(NewSubmitOptions(o)))
	cmd.AddCommand(NewStatusCommand(NewStatusOptions(o)))
	cmd.AddCommand(NewLatestCommand(NewLatestOptions(o)))
	cmd.AddCommand(NewCaptionCommand(NewCaptionOptions(o)))
	cmd.AddCommand(NewServeCommand(NewServeOptions(o)))
	cmd.AddCommand(NewSnapshotCommand(NewSnapshotOptions(o)))

	// The global normalisation function ensures that all flags specified meet
	// the desired format, changing users' input if necessary.
	cmd.SetGlobalNormalizationFunc(cliflag.WordSepNormalizeFunc())

	return cmd
}

// Complete resolves configuration for the command about to run. Flags that
// were set explicitly win over the config file and the environment.
func (o *MemegenOptions) Complete(cmd *cobra.Command) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}

	path, required := o.ConfigPath, true
	if path == "" {
		path, required = config.DefaultPath(), false
	}

	cfg, err := config.Load(path, required)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("api-url") {
		cfg.APIURL = o.APIURL
	}
	if flags.Changed("poll-interval") {
		if o.PollInterval <= 0 {
			return fmt.Errorf("--poll-interval must be positive")
		}
		cfg.PollInterval = o.PollInterval
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.LogLevel
	}

	logger, err := logging.New(o.ErrOut, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}

	o.config = cfg
	o.logger = logger
	return nil
}

// newService builds the service client and the controller driving it.
func (o *MemegenOptions) newService() (*client.Client, *operation.Controller, error) {
	c, err := client.New(o.config.APIURL,
		client.WithHTTPClient(newHTTPClient(o.config.RequestTimeout)),
		client.WithLatestPath(o.config.LatestPath),
		client.WithLogger(o.logger),
	)
	if err != nil {
		return nil, nil, err
	}

	controller := operation.NewController(c,
		operation.WithInterval(o.config.PollInterval),
		operation.WithLogger(o.logger),
	)
	return c, controller, nil
}

func versionInfo() string {
	if version == "" {
		return ""
	}
	return fmt.Sprintf("%s (commit: %s)", version, commit)
}
