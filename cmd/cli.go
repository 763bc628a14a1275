package cmd

import (
	"visbridge/internal/config"
	"visbridge/pkg/build"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Commands stored in Config.Command.
const (
	CommandServe   = "serve"
	CommandPreview = "preview"
	CommandList    = "list"
	CommandPick    = "pick" // list --interactive
	CommandBins    = "bins"
	CommandVersion = "version"
)

// flagValues receives the command line before it is merged into the
// loaded configuration.
type flagValues struct {
	configPath string

	device     int
	channels   int
	sampleRate float64
	inputFile  string
	loop       bool
	gate       float64

	fftSize int
	bars    int
	freqMin float64
	freqMax float64
	window  string

	wsAddress string
	fps       int
	udp       bool
	udpTarget string

	record    bool
	outputDir string

	verbose  bool
	logLevel string

	interactive bool
}

// ParseArgs parses args (without the program name), loads the configuration
// file named by --config (or the default locations) and applies the flags
// that were set explicitly. Config.Command is empty when only help or the
// version flag was requested.
func ParseArgs(args []string) (*config.Config, error) {
	buildInfo := build.GetBuildFlags()
	var f flagValues
	command := ""

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         build.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			command = CommandServe
			return nil
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Stream bars to WebSocket viewers (the default)",
			Args:  cobra.NoArgs,
			Run:   func(cmd *cobra.Command, args []string) { command = CommandServe },
		},
		&cobra.Command{
			Use:   "preview",
			Short: "Draw bars in the terminal",
			Args:  cobra.NoArgs,
			Run:   func(cmd *cobra.Command, args []string) { command = CommandPreview },
		},
		&cobra.Command{
			Use:   "bins",
			Short: "Print the bar to FFT bin mapping for the configuration",
			Args:  cobra.NoArgs,
			Run:   func(cmd *cobra.Command, args []string) { command = CommandBins },
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print build information",
			Args:  cobra.NoArgs,
			Run:   func(cmd *cobra.Command, args []string) { command = CommandVersion },
		},
	)

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			command = CommandList
			if f.interactive {
				command = CommandPick
			}
		},
	}
	listCmd.Flags().BoolVarP(&f.interactive, "interactive", "i", false,
		"Choose a device and sample rate interactively")
	rootCmd.AddCommand(listCmd)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&f.configPath, "config", "",
		"Configuration file (default: ./visbridge.yaml or ./config.yaml)")

	// Audio Device Configuration
	flags.IntVarP(&f.device, "device", "d", config.DefaultInputDevice,
		"Specify input device ID. Use 'list' command to see available devices.")
	flags.IntVarP(&f.channels, "channels", "c", config.DefaultInputChannels,
		"Number of channels to capture, averaged to mono")
	flags.Float64VarP(&f.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	flags.StringVarP(&f.inputFile, "input-file", "f", "",
		"Analyse a WAV file instead of a capture device")
	flags.BoolVar(&f.loop, "loop", false,
		"Restart the input file when it ends")
	flags.Float64Var(&f.gate, "gate", 0,
		"Noise gate threshold (0-1); quieter frames produce empty bars")

	// Analysis Configuration
	flags.IntVarP(&f.fftSize, "fft-size", "n", config.DefaultFFTSize,
		"Samples per analysed frame (power of two)")
	flags.IntVarP(&f.bars, "bars", "b", config.DefaultBarCount,
		"Number of bars per frame")
	flags.Float64Var(&f.freqMin, "freq-min", config.DefaultFreqMin,
		"Lowest frequency shown, in Hz")
	flags.Float64Var(&f.freqMax, "freq-max", config.DefaultFreqMax,
		"Highest frequency shown, in Hz")
	flags.StringVarP(&f.window, "window", "w", config.DefaultWindow,
		"Window function (hann, hamming, blackman, ...)")

	// Transport Configuration
	flags.StringVarP(&f.wsAddress, "ws-address", "a", config.DefaultWSAddress,
		"WebSocket listen address")
	flags.IntVar(&f.fps, "fps", config.DefaultSendFPS,
		"Maximum frames sent per second")
	flags.BoolVarP(&f.udp, "udp", "u", false,
		"Also publish bars as UDP packets")
	flags.StringVar(&f.udpTarget, "udp-target", config.DefaultUDPTarget,
		"UDP packet destination")

	// Recording Configuration
	flags.BoolVarP(&f.record, "record", "r", false,
		"Record the captured audio to a WAV file")
	flags.StringVarP(&f.outputDir, "output-dir", "o", config.DefaultRecordingDir,
		"Directory for recordings")

	// Debug Configuration
	flags.BoolVarP(&f.verbose, "verbose", "v", false,
		"Show verbose output")
	flags.StringVar(&f.logLevel, "log-level", config.DefaultLogLevel,
		"Log level (debug, info, warn, error)")

	// Execute the CLI
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}

	if command == "" {
		return config.NewConfig(), nil
	}

	options, err := config.LoadConfig(f.configPath)
	if err != nil {
		return nil, err
	}
	options.Command = command
	f.apply(flags, options)
	if err := options.Validate(); err != nil {
		return nil, err
	}
	return options, nil
}

// apply copies every flag the user set onto cfg, leaving file and
// environment values in place for the rest.
func (f *flagValues) apply(flags *pflag.FlagSet, cfg *config.Config) {
	set := func(name string, fn func()) {
		if flags.Changed(name) {
			fn()
		}
	}

	set("device", func() { cfg.Audio.InputDevice = f.device })
	set("channels", func() { cfg.Audio.InputChannels = f.channels })
	set("sample-rate", func() { cfg.Audio.SampleRate = f.sampleRate })
	set("input-file", func() { cfg.Audio.InputFile = f.inputFile })
	set("loop", func() { cfg.Audio.Loop = f.loop })
	set("gate", func() { cfg.Audio.GateThreshold = f.gate })

	set("fft-size", func() { cfg.Analysis.FFTSize = f.fftSize })
	set("bars", func() { cfg.Analysis.BarCount = f.bars })
	set("freq-min", func() { cfg.Analysis.FreqMin = f.freqMin })
	set("freq-max", func() { cfg.Analysis.FreqMax = f.freqMax })
	set("window", func() { cfg.Analysis.Window = f.window })

	set("ws-address", func() { cfg.Transport.WSAddress = f.wsAddress })
	set("fps", func() { cfg.Transport.SendFPS = f.fps })
	set("udp", func() { cfg.Transport.UDPEnabled = f.udp })
	set("udp-target", func() { cfg.Transport.UDPTargetAddress = f.udpTarget })

	set("record", func() { cfg.Recording.Enabled = f.record })
	set("output-dir", func() { cfg.Recording.OutputDir = f.outputDir })

	set("log-level", func() { cfg.LogLevel = f.logLevel })
	set("verbose", func() {
		cfg.Debug = f.verbose
		if f.verbose {
			cfg.LogLevel = "debug"
		}
	})
}
