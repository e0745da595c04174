// Package main provides the entry point for the audioref CLI application.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/robocup-ssl/audioref/internal/announcer"
	"github.com/robocup-ssl/audioref/internal/audio"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string

	rootCmd = &cobra.Command{
		Use:   "audioref",
		Short: "Announce referee decisions of an SSL match over loudspeakers",
		Long: paragraph(
			fmt.Sprintf("\nListen to the game controller and vision feeds and %s every decision as it happens.", keyword("announce")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return readExplicitConfig(cmd)
		},
		RunE: func(*cobra.Command, []string) error {
			opts, err := loadOptions()
			if err != nil {
				return err
			}
			return run(opts)
		},
	}
)

// readExplicitConfig reads the file passed with --config over whatever was
// found in the default places.
func readExplicitConfig(cmd *cobra.Command) error {
	if !cmd.Flags().Changed("config") {
		return nil
	}
	path, err := homedir.Expand(configFile)
	if err != nil {
		return fmt.Errorf("unable to expand config path: %w", err)
	}
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("unable to read config file: %w", err)
	}
	log.Debug("Using configuration file", "path", path)
	return nil
}

// loadOptions grabs the announcer options from viper.
func loadOptions() (announcer.Options, error) {
	pack, err := homedir.Expand(viper.GetString("pack"))
	if err != nil {
		return announcer.Options{}, fmt.Errorf("unable to expand pack path: %w", err)
	}
	record, err := homedir.Expand(viper.GetString("record"))
	if err != nil {
		return announcer.Options{}, fmt.Errorf("unable to expand record path: %w", err)
	}

	player := audio.DefaultPlayerConfig()
	player.SampleRate = viper.GetInt("audio.sample_rate")
	player.Channels = viper.GetInt("audio.channels")
	player.Volume = viper.GetFloat64("audio.volume")

	opts := announcer.Options{
		RefereeAddress:    viper.GetString("gc.address"),
		VisionAddress:     viper.GetString("vision.address"),
		Interface:         viper.GetString("interface"),
		Record:            record,
		Pack:              pack,
		WatchPack:         viper.GetBool("watch_pack"),
		MaxQueueLen:       viper.GetInt("max_queue_len"),
		PlacementDistance: viper.GetFloat64("placement_distance"),
		Backend:           viper.GetString("audio.backend"),
		Player:            player,
		MetricsListen:     viper.GetString("metrics.listen"),
	}
	if err := opts.Validate(); err != nil {
		return opts, fmt.Errorf("invalid configuration: %w", err)
	}
	return opts, nil
}

// run opens the announcer and blocks until it is interrupted or a replay
// ended.
func run(opts announcer.Options) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := announcer.Open(opts)
	if err != nil {
		var se *announcer.StartupError
		if errors.As(err, &se) {
			log.Error("Startup failed", "stage", se.Stage, "error", se.Cause)
		}
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Warn("Failed to release resources", "error", err)
		}
	}()

	return session.Run(ctx)
}

func main() {
	// A .env in the working directory may carry AUDIOREF_* overrides.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Println("Could not load .env:", err)
		os.Exit(1)
	}

	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", configFile, "config file")
	rootCmd.PersistentFlags().StringP("pack", "p", "sounds/en", "sound pack directory")
	rootCmd.PersistentFlags().Int("max-queue-len", 3, "number of pending announcements kept")
	rootCmd.PersistentFlags().Float64("placement-distance", 200, "margin in mm around corner and goal kick spots")
	rootCmd.PersistentFlags().String("backend", announcer.BackendOto, "audio backend (oto/portaudio)")
	rootCmd.PersistentFlags().Int("sample-rate", 44100, "output sample rate in Hz")
	rootCmd.PersistentFlags().Int("channels", 1, "output channels (1/2)")
	rootCmd.PersistentFlags().Float64("volume", 1.0, "playback volume (0.0 to 1.0)")
	rootCmd.PersistentFlags().Bool("watch-pack", true, "reload the sound pack when its config changes")
	rootCmd.PersistentFlags().String("record", "", "capture both feeds to this file")
	rootCmd.PersistentFlags().String("metrics-listen", "", "serve /metrics on this address")
	rootCmd.Flags().String("gc", "224.5.23.1:10003", "game controller multicast group")
	rootCmd.Flags().String("vision", "224.5.23.2:10006", "vision multicast group")
	rootCmd.Flags().StringP("interface", "i", "", "network interface to join the groups on")

	// Config bindings
	_ = viper.BindPFlag("pack", rootCmd.PersistentFlags().Lookup("pack"))
	_ = viper.BindPFlag("max_queue_len", rootCmd.PersistentFlags().Lookup("max-queue-len"))
	_ = viper.BindPFlag("placement_distance", rootCmd.PersistentFlags().Lookup("placement-distance"))
	_ = viper.BindPFlag("audio.backend", rootCmd.PersistentFlags().Lookup("backend"))
	_ = viper.BindPFlag("audio.sample_rate", rootCmd.PersistentFlags().Lookup("sample-rate"))
	_ = viper.BindPFlag("audio.channels", rootCmd.PersistentFlags().Lookup("channels"))
	_ = viper.BindPFlag("audio.volume", rootCmd.PersistentFlags().Lookup("volume"))
	_ = viper.BindPFlag("watch_pack", rootCmd.PersistentFlags().Lookup("watch-pack"))
	_ = viper.BindPFlag("record", rootCmd.PersistentFlags().Lookup("record"))
	_ = viper.BindPFlag("metrics.listen", rootCmd.PersistentFlags().Lookup("metrics-listen"))
	_ = viper.BindPFlag("gc.address", rootCmd.Flags().Lookup("gc"))
	_ = viper.BindPFlag("vision.address", rootCmd.Flags().Lookup("vision"))
	_ = viper.BindPFlag("interface", rootCmd.Flags().Lookup("interface"))

	viper.SetDefault("gc.address", "224.5.23.1:10003")
	viper.SetDefault("vision.address", "224.5.23.2:10006")
	viper.SetDefault("pack", "sounds/en")
	viper.SetDefault("max_queue_len", 3)
	viper.SetDefault("placement_distance", 200)
	viper.SetDefault("audio.backend", announcer.BackendOto)
	viper.SetDefault("audio.sample_rate", 44100)
	viper.SetDefault("audio.channels", 1)
	viper.SetDefault("audio.volume", 1.0)
	viper.SetDefault("watch_pack", true)

	rootCmd.AddCommand(configCmd, manCmd, replayCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "audioref")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "audioref")}, dirs...)
	}

	if c := os.Getenv("AUDIOREF_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("audioref")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("audioref")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		configFile = used
		log.Debug("Using configuration file", "path", used)
		return
	}

	configFile = filepath.Join(dirs[0], "audioref.yml")
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
