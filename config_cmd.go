package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# mouse wheel support
mouse: false
# word-wrap chapters at width (0 fits the terminal)
width: 0
# start in the presentation view
presentation: false

narration:
  # voice name understood by the synthesizer, empty for the default
  voice: ""
  # BCP 47 language tag
  language: "en"
  # rate and pitch multipliers (0.25 to 4) and volume (0 to 1)
  rate: 1.0
  pitch: 1.0
  volume: 1.0
  # on-device speech command: auto, espeak-ng or say
  synthesizer: "auto"
  # synthesizer_path: "/usr/bin/espeak-ng"
  # continue to the next chapter in the presentation view
  auto_advance: true
  # sentences synthesized ahead of the one playing
  prefetch: 2

  remote:
    # HTTP synthesis service, empty disables remote narration
    url: ""
    timeout: "30s"
    probe_timeout: "3s"
    requests_per_minute: 0

  audio:
    sample_rate: 44100
    channels: 1
    buffer: "100ms"

  cache:
    memory_mb: 64
    # dir: "~/.cache/lector/clips"
    disk_mb: 512
    level: 3

recording:
  # where recordings are saved
  dir: "~/Music/lector"
  # WAV or MP3 played under the narration
  # ambient: "~/Music/rain.mp3"
  ambient_volume: 0.3
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the lector config file",
	Long:    paragraph(fmt.Sprintf("\n%s the lector config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("lector config\nlector config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("lector", configFile)
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
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
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
