package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/trainsim/soundsource/internal/asset"
	"github.com/trainsim/soundsource/internal/backend"
	"github.com/trainsim/soundsource/internal/wav"
)

var (
	inspectExternal bool

	inspectCmd = &cobra.Command{
		Use:               "inspect SOUND...",
		Short:             "Show the format, cue points and segments of sounds",
		Long:              paragraph(fmt.Sprintf("\n%s how a sound is split into its intro, loop and release segments.", keyword("Show"))),
		Example:           paragraph("soundsource inspect horn.wav\nsoundsource inspect -x engine.wav"),
		Args:              cobra.MinimumNArgs(1),
		ValidArgsFunction: completeSounds,
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			dec := wav.NewDecoder(cfg.AssetRoot, nil)
			if err := checkSounds(dec, args); err != nil {
				return err
			}

			for i, name := range args {
				d, info, err := dec.Inspect(name, inspectExternal)
				if err != nil {
					return fmt.Errorf("unable to inspect %s: %w", name, err)
				}
				if i > 0 {
					fmt.Fprintln(os.Stdout)
				}
				describeSound(os.Stdout, name, d, info)
			}
			return nil
		},
	}
)

func init() {
	inspectCmd.Flags().BoolVarP(&inspectExternal, "external", "x", false, "inspect as an external sound (mono)")
}

var segmentNames = [asset.MaxSegments]string{"intro", "loop", "release"}

func describeSound(w io.Writer, name string, d *asset.Decoded, info wav.Info) {
	f := d.Format
	channels := "mono"
	if f.Channels == 2 {
		channels = "stereo"
	}

	fmt.Fprintln(w, keyword(name))
	fmt.Fprintf(w, "  format    %d Hz · %d-bit · %s\n", f.SampleRate, f.BitsPerSample, channels)
	fmt.Fprintf(w, "  data      %s (%s)\n", humanize.Bytes(uint64(info.DataSize)), playTime(f, info.DataSize)) //nolint:gosec

	if info.HasLoop() {
		fmt.Fprintf(w, "  cues      %d, loop from frame %d to %d\n", info.Cues, info.FirstCue, info.LastCue)
	} else {
		fmt.Fprintf(w, "  cues      %d %s\n", info.Cues, faint("(single segment)"))
	}

	var parts []string
	for i, seg := range d.Segments {
		if len(seg) == 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s %s", segmentNames[i], humanize.Bytes(uint64(len(seg)))))
	}
	fmt.Fprintf(w, "  segments  %s\n", strings.Join(parts, " · "))
}

func playTime(f backend.Format, n int) time.Duration {
	frame := f.FrameSize()
	if frame == 0 || f.SampleRate == 0 {
		return 0
	}
	frames := n / frame
	return (time.Duration(frames) * time.Second / time.Duration(f.SampleRate)).Round(time.Millisecond)
}
