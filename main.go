package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/llehouerou/earworm/internal/app"
	"github.com/llehouerou/earworm/internal/catalog"
	"github.com/llehouerou/earworm/internal/config"
	"github.com/llehouerou/earworm/internal/errmsg"
	"github.com/llehouerou/earworm/internal/game"
	"github.com/llehouerou/earworm/internal/logging"
	"github.com/llehouerou/earworm/internal/playback"
	"github.com/llehouerou/earworm/internal/rotation"
	"github.com/llehouerou/earworm/internal/stderr"
)

var version = "dev"

type flags struct {
	artist     string
	chart      bool
	library    bool
	difficulty string
	source     string
	configFile string
}

func newRootCmd() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "earworm",
		Short: "Guess the song from a few seconds of it",
		Long: `earworm plays short snippets of songs from an artist's catalog, the
current charts or your local music library. Type the title before your
friends do.

Catalogs: iTunes (default, no account needed), Spotify (client credentials,
playback through a browser page) or a local library.`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, f)
		},
	}

	cmd.Flags().StringVarP(&f.artist, "artist", "a", "", "play songs by this artist")
	cmd.Flags().BoolVarP(&f.chart, "chart", "c", false, "play the current top songs")
	cmd.Flags().BoolVarP(&f.library, "library", "l", false, "play songs from the local library")
	cmd.Flags().StringVarP(&f.difficulty, "difficulty", "d", "", "easy, medium, hard or impossible")
	cmd.Flags().StringVarP(&f.source, "source", "s", "", "catalog: itunes, spotify or library")
	cmd.Flags().StringVar(&f.configFile, "config", "", "config file (default $XDG_CONFIG_HOME/earworm/config.toml)")
	cmd.MarkFlagsMutuallyExclusive("artist", "chart", "library")

	return cmd
}

func run(cmd *cobra.Command, f flags) error {
	cfg, err := config.LoadFile(f.configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cmd.Flags().Changed("source") {
		cfg.Source = strings.ToLower(f.source)
	}
	if cmd.Flags().Changed("difficulty") {
		cfg.Difficulty = f.difficulty
	}
	if f.library {
		cfg.Source = config.SourceLibrary
	}

	difficulty, err := game.ParseDifficulty(cfg.Difficulty)
	if err != nil {
		return err
	}
	target, err := resolveTarget(f, cfg.Source)
	if err != nil {
		return err
	}

	logFile, err := cfg.LogFile()
	if err != nil {
		return fmt.Errorf("log file: %w", err)
	}
	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, File: logFile})
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting",
		zap.String("version", version),
		zap.String("source", cfg.Source),
		zap.Stringer("difficulty", difficulty),
		zap.Stringer("target", target.Kind))

	if err := stderr.Start(logger); err != nil {
		logger.Warn("stderr capture unavailable", zap.Error(err))
	}
	defer stderr.Stop()

	env, err := build(cfg, logger)
	if err != nil {
		logger.Error("initialization failed", zap.Error(err))
		return errors.New(errmsg.Format(errmsg.OpInitialize, err))
	}
	defer env.Close()

	pc := cfg.GetPlaybackConfig()
	ctl := playback.New(
		rotation.New(),
		env.factory,
		playback.WithLogger(logger),
		playback.WithBuffer(pc.Buffer),
		playback.WithSnippetDuration(difficulty.SnippetDuration()),
	)
	defer ctl.Close()

	g := game.New(ctl, env.catalog,
		game.WithLogger(logger),
		game.WithDifficulty(difficulty),
		game.WithMatchThreshold(cfg.GetMatchThreshold()))
	defer g.Close()

	m := app.New(app.Options{
		Game:      g,
		Finder:    env.catalog,
		Target:    target,
		Source:    env.catalog.Name(),
		BridgeURL: env.bridgeURL,
	})

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run program: %w", err)
	}

	st := g.Stats()
	logger.Info("session ended",
		zap.Int("score", st.Score),
		zap.Int("rounds", st.Rounds),
		zap.Int("correct", st.Correct))
	return nil
}

// resolveTarget picks the pool requested by the flags. Without one, the
// local library plays the whole library and remote catalogs play the chart.
func resolveTarget(f flags, source string) (app.Target, error) {
	switch {
	case strings.TrimSpace(f.artist) != "":
		return app.Target{Kind: catalog.KindArtist, ArtistQuery: strings.TrimSpace(f.artist)}, nil
	case f.library || source == config.SourceLibrary:
		if f.chart {
			return app.Target{}, errors.New("the local library has no chart")
		}
		return app.Target{Kind: catalog.KindLibrary}, nil
	default:
		return app.Target{Kind: catalog.KindChart}, nil
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		stderr.WriteOriginal("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}
