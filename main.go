// Package main provides the entry point for the soundsource CLI application.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/trainsim/soundsource/internal/logging"
	"github.com/trainsim/soundsource/internal/sound"
)

const appName = "soundsource"

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile        string
	defaultConfigFile string
	debug             bool
	assetRoot         string
	backendName       string

	rootCmd = &cobra.Command{
		Use:   "soundsource",
		Short: "Play and inspect cue-pointed train sounds",
		Long: paragraph(
			fmt.Sprintf("\nPlay and inspect train sounds %s.", keyword("segment by segment")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
	}
)

func validateOptions(cmd *cobra.Command) error {
	if cmd.Flags().Changed("config") {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
	}

	debug = viper.GetBool("debug")
	if debug {
		logging.SetLevel(log.DebugLevel)
	}
	return nil
}

// loadConfig reads the sound configuration from the config file, flags and
// environment.
func loadConfig() (sound.Config, error) {
	cfg, err := sound.LoadConfig()
	if err != nil {
		return cfg, fmt.Errorf("unable to load configuration: %w", err)
	}
	if cfg.DecodeCache.Enabled && cfg.DecodeCache.Dir == "" {
		dir, err := gap.NewScope(gap.User, appName).CacheDir()
		if err != nil {
			return cfg, fmt.Errorf("unable to find cache directory: %w", err)
		}
		cfg.DecodeCache.Dir = filepath.Join(dir, "decoded")
	}
	log.Debug("configuration loaded",
		"backend", cfg.Backend,
		"sample_rate", cfg.SampleRate,
		"asset_root", cfg.AssetRoot,
		"decode_cache", cfg.DecodeCache.Enabled)
	return cfg, nil
}

func main() {
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

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "write debug messages to the log file")
	rootCmd.PersistentFlags().StringVarP(&assetRoot, "assets", "a", "", "directory sound names are resolved against")
	rootCmd.PersistentFlags().StringVar(&backendName, "backend", "", "audio backend (oto or null)")

	// Config bindings
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("sound.asset_root", rootCmd.PersistentFlags().Lookup("assets"))
	_ = viper.BindPFlag("sound.backend", rootCmd.PersistentFlags().Lookup("backend"))

	viper.SetDefault("debug", false)
	sound.SetDefaults()

	rootCmd.AddCommand(playCmd, inspectCmd, lsCmd, configCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, appName)
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, appName)}, dirs...)
	}

	if c := os.Getenv("SOUNDSOURCE_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName(appName)
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix(appName)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	defaultConfigFile = filepath.Join(dirs[0], appName+".yml")
	configFile = defaultConfigFile
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
