// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"io"

	"voicefft/internal/config"
	applog "voicefft/internal/log"
	"voicefft/pkg/build"

	"github.com/spf13/cobra"
)

// Commands understood by Run.
const (
	CommandLive      = ""
	CommandList      = "list"
	CommandAnalyze   = "analyze"
	CommandRoundTrip = "roundtrip"
)

// Options is the parsed command line: the loaded configuration with flag
// overrides applied, plus the command to run.
type Options struct {
	Config  *config.Config
	Command string
	Args    []string

	Select   bool // Pick the input device interactively
	NoTUI    bool // Run headless until interrupted
	JSON     bool // analyze: one JSON object per frame
	Realtime bool // analyze: pace frames at the capture rate
}

type flagValues struct {
	configPath string
	verbose    bool
	device     int
	udp        string
	ws         string
	record     bool
	fftSize    int
	bands      int
}

// ParseArgs parses args (without the program name). It returns nil options
// when only help or version output was requested.
func ParseArgs(args []string, out io.Writer) (*Options, error) {
	buildInfo := build.GetBuildFlags()
	var (
		flags   flagValues
		options *Options
	)

	// setup loads the config file and applies the flags that were set.
	setup := func(cmd *cobra.Command, command string, cmdArgs []string) error {
		cfg, err := config.LoadConfig(flags.configPath)
		if err != nil {
			return err
		}
		if err := applyFlags(cmd, cfg, &flags); err != nil {
			return err
		}
		options.Config = cfg
		options.Command = command
		options.Args = cmdArgs
		return nil
	}
	options = &Options{}
	ran := false

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.String(),
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ran = true
			return setup(cmd, CommandLive, args)
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ran = true
			return setup(cmd, CommandList, args)
		},
	}

	// Analyze command
	analyzeCmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Print the voice features of every frame of a WAV or raw PCM16 file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ran = true
			return setup(cmd, CommandAnalyze, args)
		},
	}
	analyzeCmd.Flags().BoolVar(&options.JSON, "json", false, "Print one JSON object per frame")
	analyzeCmd.Flags().BoolVar(&options.Realtime, "realtime", false,
		"Pace frames at the audio rate, for consumers of --udp or --ws")

	// Round trip command
	roundTripCmd := &cobra.Command{
		Use:   "roundtrip <in> <out.wav>",
		Short: "Transform every frame forward and back and write the reconstruction",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ran = true
			return setup(cmd, CommandRoundTrip, args)
		},
	}

	rootCmd.AddCommand(listCmd, analyzeCmd, roundTripCmd)

	// Configuration
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "",
		"Path to a YAML config file. Default searches config.yaml and voicefft.yaml")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false,
		"Show verbose output")

	// Audio Device Configuration
	pf.IntVarP(&flags.device, "device", "d", config.DefaultDeviceID,
		"Specify input device ID. Use 'list' command to see available devices.")
	rootCmd.Flags().BoolVarP(&options.Select, "select", "s", false,
		"Choose the input device and sample rate interactively")
	rootCmd.Flags().BoolVar(&options.NoTUI, "no-tui", false,
		"Run without the meter until interrupted")
	rootCmd.Flags().BoolVarP(&flags.record, "record", "r", false,
		"Record audio from the input device to recording.output_dir")

	// Analysis Configuration
	pf.IntVar(&flags.fftSize, "fft-size", config.DefaultFFTSize,
		"Frame length in samples, rounded up to a power of 2")
	pf.IntVar(&flags.bands, "bands", config.DefaultNumBands,
		"Number of band values per frame")

	// Transport Configuration
	pf.StringVar(&flags.udp, "udp", "",
		"Publish feature packets over UDP to host:port")
	pf.StringVar(&flags.ws, "ws", "",
		"Serve features over WebSocket on this listen address, e.g. :8080")

	// Execute the CLI. A nil slice would make cobra read os.Args.
	if args == nil {
		args = []string{}
	}
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	if !ran {
		return nil, nil
	}
	return options, nil
}

// applyFlags overrides cfg with the flags given on the command line and
// validates the result.
func applyFlags(cmd *cobra.Command, cfg *config.Config, f *flagValues) error {
	changed := cmd.Flags().Changed

	if changed("verbose") && f.verbose {
		cfg.Debug = true
		cfg.LogLevel = applog.LevelDebug.String()
	}
	if changed("device") {
		cfg.Audio.InputDevice = f.device
	}
	if changed("record") {
		cfg.Recording.Enabled = f.record
	}
	if changed("fft-size") {
		cfg.Analysis.FFTSize = f.fftSize
	}
	if changed("bands") {
		cfg.Analysis.NumBands = f.bands
	}
	if changed("udp") {
		cfg.Transport.UDPEnabled = f.udp != ""
		if f.udp != "" {
			cfg.Transport.UDPTargetAddress = f.udp
		}
	}
	if changed("ws") {
		cfg.Transport.WebSocketAddress = f.ws
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}
