package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# write debug messages to the log file
debug: false

sound:
  # audio backend: "oto" plays through the system device, "null" discards output
  backend: "oto"
  # device sample rate in Hz
  sample_rate: 44100
  # device buffer in milliseconds
  buffer_size: 100
  # voices shared by all sources (0 uses the device limit)
  max_voices: 32
  # gain applied to every voice (0.0 to 2.0)
  master_gain: 1.0
  # per-voice gain scale (above 0, at most 1.0)
  headroom: 1.0

  # checkpoint window in bytes per channel at pitch 1.0
  checkpoint_factor: 8192
  # one-shots longer than this survive a queue clean-up
  long_oneshot_bytes: 50000

  # how often sources are updated
  tick_interval: "50ms"
  # sources without frequent updates run every n-th tick
  full_update_cycle: 4

  # directory sound names are resolved against
  asset_root: "."
  # suffix that tells an external (mono) load apart from an internal one
  external_suffix: ".x"
  # reload sounds that change on disk
  watch_assets: false

  # on-disk cache of decoded sounds
  decode_cache:
    enabled: true
    # dir: "~/.cache/soundsource/decoded"
    max_size: 268435456
    # zstd level (1 to 22, 0 stores uncompressed)
    compression_level: 3
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the soundsource config file",
	Long:    paragraph(fmt.Sprintf("\n%s the soundsource config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("soundsource config\nsoundsource config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("soundsource", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
	}
	if configFile == "" {
		configFile = defaultConfigFile
	}
	if configFile == "" {
		return errors.New("no configuration directory found")
	}
	if expanded, err := homedir.Expand(configFile); err == nil {
		configFile = expanded
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
