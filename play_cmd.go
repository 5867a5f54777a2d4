package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/trainsim/soundsource/internal/asset"
	"github.com/trainsim/soundsource/internal/sound"
	"github.com/trainsim/soundsource/internal/wav"
	"github.com/trainsim/soundsource/ui"
)

const playOwner = "play"

var (
	playMode     string
	playExternal bool
	playVolume   float64
	playPitch    float64
	playHold     time.Duration
	playJump     bool
	playMonitor  bool

	playCmd = &cobra.Command{
		Use:   "play SOUND...",
		Short: "Play sounds through the sound engine",
		Long: paragraph(fmt.Sprintf("\n%s every SOUND on its own source. Looping sounds play until %s expires or until interrupted; the release is queued like any other cue.",
			keyword("Play"), keyword("--hold"))),
		Example: paragraph("soundsource play horn.wav\nsoundsource play -m loop --hold 5s engine.wav\nsoundsource play --monitor -m looprelease engine.wav bell.wav"),
		Args:              cobra.MinimumNArgs(1),
		ValidArgsFunction: completeSounds,
		RunE:              runPlay,
	}
)

func init() {
	playCmd.Flags().StringVarP(&playMode, "mode", "m", sound.OneShot.String(), "play mode (oneshot, halfshot, loop, looprelease)")
	playCmd.Flags().BoolVarP(&playExternal, "external", "x", false, "load as an external sound (mono)")
	playCmd.Flags().Float64Var(&playVolume, "volume", 1.0, "source volume")
	playCmd.Flags().Float64Var(&playPitch, "pitch", 1.0, "playback speed")
	playCmd.Flags().DurationVar(&playHold, "hold", 0, "release looping sounds after this long (0 holds until interrupted)")
	playCmd.Flags().BoolVarP(&playJump, "jump", "j", false, "release through the release segment")
	playCmd.Flags().BoolVar(&playMonitor, "monitor", false, "show the live monitor (terminal only)")
}

func runPlay(cmd *cobra.Command, args []string) error {
	mode, err := sound.ParsePlayMode(playMode)
	if err != nil {
		return err //nolint:wrapcheck
	}
	if mode.IsRelease() {
		return fmt.Errorf("%s only ends a playing sound, pick a play mode", mode)
	}
	if playMonitor && !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("--monitor needs a terminal")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dec, closeDecoder := newDecoder(cfg)
	defer closeDecoder()

	if err := checkSounds(dec, args); err != nil {
		return err
	}

	b, err := sound.NewBackend(cfg)
	if err != nil {
		return err //nolint:wrapcheck
	}
	sys, err := sound.NewSubsystem(cfg, b, dec)
	if err != nil {
		return err //nolint:wrapcheck
	}
	defer func() {
		if err := sys.Close(); err != nil {
			log.Warn("unable to close sound subsystem", "err", err)
		}
	}()

	proc := sound.NewProcessFromConfig(cfg)
	defer proc.Close()
	if cfg.WatchAssets {
		proc.SetSweep(func() {
			if n := sys.PruneAssets(); n > 0 {
				log.Debug("freed reloaded sounds", "count", n)
			}
		})
	}

	tracks, err := startTracks(sys, proc, args, mode)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.WatchAssets {
		watchSounds(ctx, sys, dec)
	}

	errc := make(chan error, 1)
	go func() {
		err := proc.Run(ctx)
		if err != nil {
			cancel()
		}
		errc <- err
	}()

	if playMonitor {
		err = runMonitor(ctx, cfg, sys, tracks)
	} else {
		err = waitIdle(ctx, sys, tracks, cfg.TickInterval)
	}
	cancel()

	if perr := <-errc; perr != nil {
		return fmt.Errorf("sound process failed: %w", perr)
	}
	return err
}

// startTracks creates one hard-active source per sound and queues it.
func startTracks(sys *sound.Subsystem, proc *sound.Process, names []string, mode sound.PlayMode) ([]ui.Track, error) {
	tracks := make([]ui.Track, 0, len(names))
	for _, name := range names {
		src, err := sys.NewSource(sound.SourceOptions{Environment: true})
		if err != nil {
			return nil, err //nolint:wrapcheck
		}
		proc.Register(playOwner, src, true)

		src.SetVolume(playVolume)
		if err := src.SetPlaybackSpeed(playPitch); err != nil {
			return nil, fmt.Errorf("--pitch: %w", err)
		}
		src.SetHardActive(true)
		src.Queue(name, mode, playExternal)

		if a, _ := sys.Assets().Get(name, playExternal); !a.Valid() {
			return nil, fmt.Errorf("unable to play %s: %w", name, asset.ErrDecode)
		}
		log.Info("playing sound", "name", name, "mode", mode, "source", src.ID())
		tracks = append(tracks, ui.Track{Source: src, Cue: name, Mode: mode, External: playExternal})
	}
	return tracks, nil
}

func watchSounds(ctx context.Context, sys *sound.Subsystem, dec *wav.Decoder) {
	w, err := asset.NewWatcher(sys.Assets(), dec.Root(), dec.Resolve)
	if err != nil {
		log.Warn("unable to watch sounds", "err", err)
		return
	}
	go func() {
		if err := w.Run(ctx); err != nil {
			log.Warn("sound watcher stopped", "err", err)
		}
	}()
}

func runMonitor(ctx context.Context, cfg sound.Config, sys *sound.Subsystem, tracks []ui.Track) error {
	uiCfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}
	uiCfg.AssetRoot = cfg.AssetRoot

	if _, err := ui.NewProgram(ctx, uiCfg, sys, tracks).Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return nil
}

// waitIdle blocks until every source has finished, releasing looping sounds
// once the hold time is up.
func waitIdle(ctx context.Context, sys *sound.Subsystem, tracks []ui.Track, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var hold <-chan time.Time
	if playHold > 0 {
		t := time.NewTimer(playHold)
		defer t.Stop()
		hold = t.C
	}

	release := sound.Release
	if playJump {
		release = sound.ReleaseWithJump
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-hold:
			for _, t := range tracks {
				t.Source.Queue(t.Cue, release, t.External)
			}
			log.Debug("released sounds", "mode", release)
		case <-ticker.C:
			if allIdle(sys.Snapshot()) {
				return nil
			}
		}
	}
}

func allIdle(snap sound.SubsystemSnapshot) bool {
	for _, s := range snap.Sources {
		if !s.Idle() {
			return false
		}
	}
	return true
}
