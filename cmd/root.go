package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/zvukmeta/tagscan/internal/config"
	"github.com/zvukmeta/tagscan/internal/logger"
	"github.com/zvukmeta/tagscan/internal/version"
)

var (
	// configFilenameFromFlag stores the config filename provided via command-line flag.
	//
	//nolint:gochecknoglobals // It is required for configuration initialization before the application starts.
	configFilenameFromFlag string

	// appConfig stores the application configuration loaded from file and flags.
	//
	//nolint:gochecknoglobals,lll // It is initialized once during the application's startup and shared across the command execution logic.
	appConfig *config.Config

	// rootCmd is the main Cobra command for the application.
	//
	//nolint:gochecknoglobals,lll // Cobra command requires a global definition for proper command-line parsing and execution.
	rootCmd = &cobra.Command{
		Use:     "tagscan [flags] FILE...",
		Short:   "Read descriptive metadata and audio properties from audio files.",
		Version: version.Short(),
		Long: `tagscan reads tags and audio properties (duration, bitrate, sample rate,
channels, bit depth) from MPEG/ID3, Ogg, FLAC, WAVE, AIFF, MP4 and ASF/WMA
files by parsing their containers directly, without decoding audio.`,
		Args:             cobra.MinimumNArgs(1),
		PersistentPreRun: initConfig,
		RunE: func(cmd *cobra.Command, files []string) error {
			return runScan(cmd.Context(), appConfig, files)
		},
	}
)

// Execute runs the root command.
func Execute() {
	signals := []os.Signal{syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM}
	ctx, stop := signal.NotifyContext(context.Background(), signals...)

	defer func() {
		_ = logger.Logger().Sync() //nolint:errcheck // No need to check the error here, application will exit anyway.
	}()

	defer stop()

	go func() {
		defer stop()

		err := rootCmd.ExecuteContext(ctx)
		cobra.CheckErr(err)
	}()

	<-ctx.Done()
}

//nolint:gochecknoinits // Cobra requires the init function to set up flags before the command is executed.
func init() {
	rootCmd.PersistentFlags().StringVar(
		&configFilenameFromFlag,
		"config",
		"",
		fmt.Sprintf("path to the configuration file (default is '%s')", config.DefaultConfigFilename))

	flags := rootCmd.Flags()

	flags.StringP("save-image", "i", "", "write each input's first available embedded image to PATH "+
		"(numbered PATH00000.ext, PATH00001.ext, ... for multiple inputs).")

	flags.StringP("format", "f", config.DefaultOutputFormat,
		"output format: json, csv, tsv, tabularcsv.")

	flags.BoolP("skip-unsupported", "s", false,
		"skip files with an unrecognized format instead of aborting.")

	flags.BoolP("verbose", "v", false, "enable debug-level logging.")
}

func initConfig(cmd *cobra.Command, _ []string) {
	var err error

	appConfig, err = config.LoadConfig(configFilenameFromFlag)
	if err != nil {
		logger.Fatalf(cmd.Context(), "Failed to load configuration: %v", err)
	}

	if err = bindFlagsToConfig(cmd.Flags(), appConfig); err != nil {
		logger.Fatalf(cmd.Context(), "Failed to parse flags: %v", err)
	}

	if err = config.ValidateConfig(appConfig); err != nil {
		logger.Fatalf(cmd.Context(), "Invalid configuration: %v", err)
	}

	logger.SetLevel(appConfig.ParsedLogLevel)
}

func bindFlagsToConfig(flags *pflag.FlagSet, cfg *config.Config) error {
	var err error

	if flag := flags.Lookup("format"); flag != nil && flag.Changed {
		cfg.OutputFormat, err = flags.GetString("format")
		if err != nil {
			return fmt.Errorf("failed to get format value: %w", err)
		}
	}

	if flag := flags.Lookup("skip-unsupported"); flag != nil && flag.Changed {
		cfg.SkipUnsupported, err = flags.GetBool("skip-unsupported")
		if err != nil {
			return fmt.Errorf("failed to get skip-unsupported value: %w", err)
		}
	}

	if flag := flags.Lookup("save-image"); flag != nil && flag.Changed {
		cfg.SaveImagePathTemplate, err = flags.GetString("save-image")
		if err != nil {
			return fmt.Errorf("failed to get save-image value: %w", err)
		}
	}

	if flag := flags.Lookup("verbose"); flag != nil && flag.Changed {
		var verbose bool

		verbose, err = flags.GetBool("verbose")
		if err != nil {
			return fmt.Errorf("failed to get verbose value: %w", err)
		}

		if verbose {
			cfg.LogLevel = "debug"
		}
	}

	return nil
}
