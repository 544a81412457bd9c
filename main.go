// Package main provides the entry point for the lector CLI application.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/lector/internal/library"
	"github.com/dgnsrekt/lector/internal/recording"
	"github.com/dgnsrekt/lector/tts"
	"github.com/dgnsrekt/lector/tts/chapter"
	"github.com/dgnsrekt/lector/tts/highlight"
	"github.com/dgnsrekt/lector/ui"
	"github.com/joho/godotenv"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile   string
	width        uint
	mouse        bool
	presentation bool
	debug        bool

	rootCmd = &cobra.Command{
		Use:   "lector [BOOK]",
		Short: "Read books aloud in the terminal, sentence by sentence",
		Long: paragraph(
			fmt.Sprintf("\nRead a book aloud in the terminal, %s.", keyword("one highlighted sentence at a time")),
		),
		Example:          paragraph("lector ~/books/dracula\nlector chapter-01.md --present"),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.MaximumNArgs(1),
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return nil, cobra.ShellCompDirectiveDefault
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

func validateOptions(cmd *cobra.Command) error {
	// grab config values from Viper
	width = viper.GetUint("width")
	mouse = viper.GetBool("mouse")
	presentation = viper.GetBool("presentation")

	if viper.GetBool("debug") {
		log.SetLevel(log.DebugLevel)
	}

	// A config file that does not exist yet is created by lector config.
	if cmd.Flags().Changed("config") {
		if _, err := os.Stat(configFile); err == nil {
			viper.SetConfigFile(configFile)
			if err := viper.ReadInConfig(); err != nil {
				return fmt.Errorf("unable to read config file: %w", err)
			}
		}
	}
	return nil
}

// terminalWidth returns the width for plain output, or 0 when stdout is not
// a terminal.
func terminalWidth() int {
	if width > 0 {
		return int(width) //nolint:gosec
	}
	fd := int(os.Stdout.Fd()) //nolint:gosec
	if !term.IsTerminal(fd) {
		return 0
	}
	w, _, err := term.GetSize(fd)
	if err != nil {
		return 0
	}
	return w
}

// bookArg returns the book named on the command line, or the working dir.
func bookArg(args []string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	return "."
}

func execute(_ *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) { //nolint:gosec
		return errors.New("the reader needs a terminal, try lector say")
	}
	return runTUI(bookArg(args))
}

func runTUI(path string) error {
	// Read environment to get debugging stuff
	cfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}

	ncfg, err := tts.LoadConfigFromViper()
	if err != nil {
		return err //nolint:wrapcheck
	}

	cfg.Path = path
	cfg.MaxWidth = width
	cfg.EnableMouse = mouse
	cfg.Presentation = presentation
	cfg.AutoAdvance = ncfg.AutoAdvance

	lib, err := library.Open(path)
	if err != nil {
		return fmt.Errorf("unable to open book: %w", err)
	}

	flags := ui.NewFlags(cfg.AutoAdvance, cfg.Presentation)
	bridge := ui.NewBridge()
	defer bridge.Close()
	hl := highlight.New(bridge.Viewport(), flags.Presenting)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n, err := newNarration(ctx, ncfg, hl)
	if err != nil {
		return err
	}
	defer n.Close()
	n.bus.Subscribe(bridge.Publish)

	book := ui.NewBook(lib, bridge)
	chapter.New(book, book, flags, n.ctrl, n.bus).Attach(n.ctrl)

	opts := ui.Options{
		Library:   lib,
		Narrator:  n.ctrl,
		Highlight: hl,
		Flags:     flags,
		Bridge:    bridge,
	}
	rec, err := newRecorder(n.bus)
	if err != nil {
		log.Warn("Recording disabled", "err", err)
	} else {
		defer rec.Close() //nolint:errcheck
		opts.Recorder = rec
	}

	// Run Bubble Tea program
	if _, err := ui.NewProgram(cfg, opts).Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return nil
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
	loadDotEnv()
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
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "write debug output to the log file")
	rootCmd.PersistentFlags().UintVarP(&width, "width", "w", 0, "word-wrap at width (set to 0 to fit the terminal)")
	rootCmd.Flags().BoolVarP(&presentation, "present", "P", false, "start in the presentation view")
	rootCmd.Flags().BoolVarP(&mouse, "mouse", "m", false, "enable mouse wheel")
	_ = rootCmd.Flags().MarkHidden("mouse")

	// Config bindings
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("width", rootCmd.PersistentFlags().Lookup("width"))
	_ = viper.BindPFlag("presentation", rootCmd.Flags().Lookup("present"))
	_ = viper.BindPFlag("mouse", rootCmd.Flags().Lookup("mouse"))

	viper.SetDefault("width", 0)
	viper.SetDefault("presentation", false)
	viper.SetDefault("recording.dir", ".")
	viper.SetDefault("recording.ambient_volume", recording.DefaultAmbientVolume)
	tts.SetDefaults()

	rootCmd.AddCommand(configCmd, manCmd, chaptersCmd, sayCmd, probeCmd)
}

// loadDotEnv reads LECTOR_* settings from a .env file in the working dir.
func loadDotEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn("Could not parse .env file", "err", err)
	}
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "lector")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "lector")}, dirs...)
	}

	if c := os.Getenv("LECTOR_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("lector")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("lector")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
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

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], "lector.yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
