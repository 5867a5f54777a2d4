package sound

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestSourceOneShotScenario(t *testing.T) {
	sys, fake := newTestSubsystem(t, testConfig())
	src := newTestSource(t, sys)

	src.Queue("horn.wav", OneShot, false)
	if cmds := src.Commands(); len(cmds) != 1 || cmds[0].State != New {
		t.Fatalf("pending commands = %+v, want one new command", cmds)
	}

	src.SetHardActive(true)
	src.Update()

	v := voiceOf(t, fake)
	horn, _ := sys.Assets().Get("horn.wav", false)
	if !horn.Valid() || !horn.Single() {
		t.Fatalf("horn valid = %v, single = %v", horn.Valid(), horn.Single())
	}
	if got := v.Enqueued(); !equalIDs(got, ids(horn, 0)) {
		t.Errorf("enqueued = %v, want the single segment", got)
	}
	if !v.IsPlaying() {
		t.Error("voice is not playing")
	}
	snap := src.Snapshot()
	if snap.State != Playing || snap.Name != "horn.wav" || snap.Mode != OneShot {
		t.Errorf("snapshot = %+v, want horn.wav oneshot playing", snap)
	}
	if snap.SampleRate != mono16.SampleRate {
		t.Errorf("sample rate = %d, want %d", snap.SampleRate, mono16.SampleRate)
	}

	// into the checkpoint window of the last segment
	fake.Advance(segLen - 5000)
	src.Update()
	if cmds := src.Commands(); len(cmds) != 0 {
		t.Errorf("commands after checkpoint = %+v, want none", cmds)
	}
	if len(v.Enqueued()) != 1 {
		t.Errorf("enqueued = %v, want nothing requeued", v.Enqueued())
	}
}

func TestSourceOneShotConsumed(t *testing.T) {
	sys, fake := newTestSubsystem(t, testConfig())
	src := newTestSource(t, sys)
	src.SetHardActive(true)
	src.Queue("horn.wav", OneShot, false)
	src.Update()
	if src.Snapshot().Idle() {
		t.Fatal("source idle while the horn plays")
	}

	fake.Advance(segLen)
	src.Update()
	if snap := src.Snapshot(); snap.QueueLen != 0 || snap.Playing || !snap.Idle() {
		t.Errorf("snapshot = %+v, want an idle source", snap)
	}
}

func TestSourceEarlyReleaseCollapsesLoop(t *testing.T) {
	sys, _ := newTestSubsystem(t, testConfig())
	src := newTestSource(t, sys)
	src.SetHardActive(true)
	src.Update()

	src.Queue("engine.wav", Loop, false)
	src.Queue("engine.wav", Release, false)

	cmds := src.Commands()
	if len(cmds) != 1 {
		t.Fatalf("queue length = %d, want 1", len(cmds))
	}
	if cmds[0].Mode != OneShot || cmds[0].State != New {
		t.Errorf("command = %v/%v, want oneshot/new", cmds[0].Mode, cmds[0].State)
	}
}

func TestSourceSoftQueue(t *testing.T) {
	sys, _ := newTestSubsystem(t, testConfig())
	src := newTestSource(t, sys)

	src.Queue("engine.wav", Loop, false)
	src.Queue("horn.wav", OneShot, false)
	cmds := src.Commands()
	if len(cmds) != 1 || cmds[0].Name() != "horn.wav" || cmds[0].Mode != OneShot {
		t.Fatalf("commands = %+v, want only the latest request", cmds)
	}

	src.Queue("horn.wav", Release, false)
	if cmds := src.Commands(); len(cmds) != 0 {
		t.Errorf("commands after release = %+v, want none", cmds)
	}

	src.Queue("", Loop, false)
	if cmds := src.Commands(); len(cmds) != 0 {
		t.Errorf("empty name was queued")
	}
}

func TestSourceLoopNeverStarves(t *testing.T) {
	sys, fake := newTestSubsystem(t, testConfig())
	src := newTestSource(t, sys)
	src.SetHardActive(true)
	src.Queue("engine.wav", Loop, false)
	src.Update()
	v := voiceOf(t, fake)

	for i := 0; i < 5; i++ {
		// play everything queued, then some
		fake.Advance(4 * segLen)
		if v.Current() != 0 {
			t.Fatalf("tick %d: voice did not run dry", i)
		}
		src.Update()

		snap := src.Snapshot()
		if snap.State != Playing {
			t.Fatalf("tick %d: state = %v, want playing", i, snap.State)
		}
		if v.Current() == 0 || !v.IsPlaying() {
			t.Fatalf("tick %d: loop left playing with an empty voice", i)
		}
	}
	if plays := v.Plays(); plays != 6 {
		t.Errorf("plays = %d, want one start and five restarts", plays)
	}
}

func TestSourceLoopRequeuesAhead(t *testing.T) {
	sys, fake := newTestSubsystem(t, testConfig())
	src := newTestSource(t, sys)
	src.SetHardActive(true)
	src.Queue("engine.wav", Loop, false)
	src.Update()
	v := voiceOf(t, fake)

	// into the window of the release segment
	fake.Advance(2*segLen + segLen - 5000)
	src.Update()
	src.Update()
	if n := len(v.Enqueued()); n != 6 {
		t.Fatalf("enqueued %d buffers, want 6", n)
	}

	fake.Advance(5000)
	src.Update()
	if v.Current() == 0 {
		t.Error("voice ran dry although the next pass was queued")
	}
	if v.Plays() != 1 {
		t.Errorf("plays = %d, want 1", v.Plays())
	}
}

func TestSourceFoldsReleaseIntoPlaying(t *testing.T) {
	tests := []struct {
		name      string
		sound     string
		mode      PlayMode
		release   PlayMode
		wantMode  PlayMode
		wantState PlayState
	}{
		{"loop release", "engine.wav", Loop, Release, Release, Playing},
		{"loop jump", "engine.wav", Loop, ReleaseWithJump, Release, Playing},
		{"looprelease release", "engine.wav", LoopRelease, Release, Release, Playing},
		{"looprelease jump", "engine.wav", LoopRelease, ReleaseWithJump, ReleaseWithJump, Playing},
		{"oneshot release", "engine.wav", OneShot, Release, OneShot, Stopping},
		{"halfshot release", "engine.wav", HalfShot, Release, HalfShot, Stopping},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys, _ := newTestSubsystem(t, testConfig())
			src := newTestSource(t, sys)
			src.SetHardActive(true)
			src.Queue(tt.sound, tt.mode, false)
			src.Update()

			src.Queue(tt.sound, tt.release, false)
			if n := len(src.Commands()); n != 2 {
				t.Fatalf("queue length = %d, want 2 before the fold", n)
			}
			src.Update()

			cmds := src.Commands()
			if cmds[0].Mode != tt.wantMode || cmds[0].State != tt.wantState {
				t.Errorf("running command = %v/%v, want %v/%v", cmds[0].Mode, cmds[0].State, tt.wantMode, tt.wantState)
			}
			for _, c := range cmds[1:] {
				if c.State != NOP {
					t.Errorf("release still pending: %v/%v", c.Mode, c.State)
				}
			}
		})
	}
}

func TestSourceJumpReleaseOfLoopPlaysTailOnce(t *testing.T) {
	sys, fake := newTestSubsystem(t, testConfig())
	src := newTestSource(t, sys)
	src.SetHardActive(true)
	src.Queue("engine.wav", Loop, false)
	src.Update()
	v := voiceOf(t, fake)
	engine, _ := sys.Assets().Get("engine.wav", false)

	src.Queue("engine.wav", ReleaseWithJump, false)
	src.Update()

	// checkpoint of the loop segment; the release segment is already queued
	fake.Advance(segLen + segLen - 5000)
	src.Update()
	if n := len(src.Commands()); n != 0 {
		t.Fatalf("commands = %d, want the release finished", n)
	}

	fake.Advance(5000 + segLen)
	src.Update()
	if got, want := v.Enqueued(), ids(engine, 0, 1, 2); !equalIDs(got, want) {
		t.Errorf("enqueued = %v, want %v with the release segment once", got, want)
	}
	if v.Current() != 0 {
		t.Error("voice still has audio after the loop was released")
	}
}

func TestSourceReleaseWithoutVoiceClearsQueue(t *testing.T) {
	cfg := testConfig()
	cfg.MaxVoices = 1
	sys, _ := newTestSubsystem(t, cfg)
	holder := newTestSource(t, sys)
	holder.SetHardActive(true)
	holder.Update()

	src := newTestSource(t, sys)
	src.SetHardActive(true)
	src.Update()
	if src.HardActive() || !src.WantsVoice() {
		t.Fatalf("HardActive() = %v, WantsVoice() = %v, want a pending request only", src.HardActive(), src.WantsVoice())
	}

	src.Queue("horn.wav", OneShot, false)
	src.Queue("engine.wav", Loop, false)
	if cmds := src.Commands(); len(cmds) != 1 || cmds[0].Name() != "engine.wav" || cmds[0].Mode != Loop {
		t.Fatalf("commands = %+v, want only the latest request", cmds)
	}
	src.Queue("engine.wav", Release, false)
	if cmds := src.Commands(); len(cmds) != 0 {
		t.Fatalf("commands after release = %+v, want none", cmds)
	}

	holder.SetHardActive(false)
	src.Update()
	snap := src.Snapshot()
	if !src.HardActive() || !snap.HardActive || !snap.HasVoice() {
		t.Fatalf("snapshot = %+v, want the freed voice", snap)
	}
	if snap.Playing || snap.QueueLen != 0 {
		t.Errorf("snapshot = %+v, the released loop must stay silent", snap)
	}
}

func TestSourceReleaseEndsLoop(t *testing.T) {
	sys, fake := newTestSubsystem(t, testConfig())
	src := newTestSource(t, sys)
	src.SetHardActive(true)
	src.Queue("engine.wav", LoopRelease, false)
	src.Update()
	v := voiceOf(t, fake)
	engine, _ := sys.Assets().Get("engine.wav", false)

	src.Queue("engine.wav", ReleaseWithJump, false)
	src.Update()

	// reach the checkpoint of the loop segment: the release segment follows
	fake.Advance(segLen + segLen - 5000)
	src.Update()
	want := ids(engine, 0, 1, 2)
	if got := v.Enqueued(); !equalIDs(got, want) {
		t.Fatalf("enqueued = %v, want %v", got, want)
	}

	fake.Advance(5000 + segLen - 5000)
	src.Update()
	if n := len(src.Commands()); n != 0 {
		t.Errorf("commands = %d, want the release finished", n)
	}
}

func TestSourceVolumeZeroStopsRelease(t *testing.T) {
	sys, fake := newTestSubsystem(t, testConfig())
	src := newTestSource(t, sys)
	src.SetHardActive(true)
	src.Queue("engine.wav", Loop, false)
	src.Update()
	src.Queue("engine.wav", Release, false)
	src.Update()
	v := voiceOf(t, fake)

	src.SetVolume(0)
	if v.IsPlaying() {
		t.Error("voice still playing an inaudible release")
	}
	if v.Stops() != 1 {
		t.Errorf("stops = %d, want 1", v.Stops())
	}
	if n := src.Snapshot().QueueLen; n != 0 {
		t.Errorf("queue length = %d, want 0", n)
	}
}

func TestSourceVolumeZeroKeepsLoop(t *testing.T) {
	sys, fake := newTestSubsystem(t, testConfig())
	src := newTestSource(t, sys)
	src.SetHardActive(true)
	src.Queue("engine.wav", Loop, false)
	src.Update()

	src.SetVolume(0)
	src.Update()
	if v := voiceOf(t, fake); !v.IsPlaying() || v.Stops() != 0 {
		t.Error("a silent loop was stopped")
	}
}

func TestSourceStop(t *testing.T) {
	sys, fake := newTestSubsystem(t, testConfig())
	src := newTestSource(t, sys)
	src.SetHardActive(true)
	src.Update()
	src.Queue("engine.wav", Loop, false)
	src.Queue("horn.wav", OneShot, false)
	src.Update()

	src.Stop()
	v := voiceOf(t, fake)
	if v.IsPlaying() || v.Current() != 0 {
		t.Error("voice still has audio after Stop")
	}
	if n := len(src.Commands()); n != 0 {
		t.Errorf("commands = %d after Stop, want 0", n)
	}
	src.Update()
	if len(v.Enqueued()) != 3 {
		t.Errorf("Update after Stop queued more audio: %v", v.Enqueued())
	}
}

func TestSourceHardActiveRoundTrip(t *testing.T) {
	sys, fake := newTestSubsystem(t, testConfig())
	src := newTestSource(t, sys)
	src.SetHardActive(true)
	src.Update()
	src.Queue("engine.wav", Loop, false)
	src.Queue("horn.wav", OneShot, false)
	src.Update()
	if sys.ActiveCount() != 1 {
		t.Fatalf("ActiveCount() = %d, want 1", sys.ActiveCount())
	}
	old := voiceOf(t, fake)

	src.SetHardActive(false)
	if sys.ActiveCount() != 0 || !old.Released() {
		t.Fatal("voice not returned")
	}
	cmds := src.Commands()
	if len(cmds) != 1 || cmds[0].Mode != Loop || cmds[0].State != New {
		t.Fatalf("commands = %+v, want the loop kept as new", cmds)
	}

	src.SetHardActive(true)
	src.Update()
	v := voiceOf(t, fake)
	if v == old {
		t.Fatal("got the released voice back")
	}
	if n := len(v.Enqueued()); n != 3 {
		t.Errorf("enqueued = %d buffers on the new voice, want 3", n)
	}
}

func TestSourceInvalidAssetIsSilent(t *testing.T) {
	buf := captureLog(t)
	sys, fake := newTestSubsystem(t, testConfig())
	src := newTestSource(t, sys)
	src.SetHardActive(true)

	src.Queue("missing.wav", OneShot, false)
	src.Queue("missing.wav", OneShot, false)
	src.Update()

	if n := len(voiceOf(t, fake).Enqueued()); n != 0 {
		t.Errorf("enqueued %d buffers for a missing sound", n)
	}
	if n := src.Snapshot().QueueLen; n != 0 {
		t.Errorf("queue length = %d, want 0", n)
	}
	if got := strings.Count(buf.String(), "cannot load sound"); got != 1 {
		t.Errorf("decode failure logged %d times, want once", got)
	}
}

func TestSourceQueueOverflow(t *testing.T) {
	tests := []struct {
		name     string
		long     bool
		wantLen  int
		wantTail string
	}{
		{"nothing worth keeping", false, 1, "engine.wav"},
		{"long oneshot kept", true, 2, "bell.wav"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLog(t)
			sys, _ := newTestSubsystem(t, testConfig())
			src := newTestSource(t, sys)
			src.SetHardActive(true)
			src.Update()
			if !src.HardActive() {
				t.Fatal("source has no voice")
			}

			names := []string{"horn.wav", "ding.wav"}
			for i := 0; i < QueueCapacity; i++ {
				name := names[i%2]
				if tt.long && i == 5 {
					name = "bell.wav"
				}
				src.Queue(name, OneShot, false)
			}
			if n := len(src.Commands()); n != QueueCapacity {
				t.Fatalf("queue length = %d, want %d", n, QueueCapacity)
			}

			src.Queue("engine.wav", Loop, false)
			cmds := src.Commands()
			if len(cmds) != tt.wantLen {
				t.Fatalf("queue length = %d, want %d", len(cmds), tt.wantLen)
			}
			if cmds[0].Name() != tt.wantTail {
				t.Errorf("tail = %s, want %s", cmds[0].Name(), tt.wantTail)
			}
			if last := cmds[len(cmds)-1]; last.Name() != "engine.wav" || last.Mode != Loop {
				t.Errorf("last = %s/%v, want engine.wav/loop", last.Name(), last.Mode)
			}
			if !strings.Contains(buf.String(), "command queue full") {
				t.Error("overflow was not logged")
			}
		})
	}
}

func TestSourcePromotesSingleLoopRelease(t *testing.T) {
	sys, _ := newTestSubsystem(t, testConfig())
	src := newTestSource(t, sys)
	src.SetHardActive(true)
	src.Update()

	src.Queue("horn.wav", LoopRelease, false)
	src.Queue("horn.wav", LoopRelease, false)
	cmds := src.Commands()
	if len(cmds) != 1 || cmds[0].Mode != Loop {
		t.Errorf("commands = %+v, want one loop", cmds)
	}
}

func TestSourcePlaybackSpeed(t *testing.T) {
	sys, fake := newTestSubsystem(t, testConfig())
	src := newTestSource(t, sys)
	src.SetHardActive(true)
	src.Update()

	if err := src.SetPlaybackSpeed(1.5); err != nil {
		t.Fatalf("SetPlaybackSpeed(1.5) error = %v", err)
	}

	for _, speed := range []float64{math.NaN(), 0, math.Inf(1), math.Inf(-1), -2} {
		err := src.SetPlaybackSpeed(speed)
		if !errors.Is(err, ErrInvalidPitch) {
			t.Errorf("SetPlaybackSpeed(%v) error = %v, want ErrInvalidPitch", speed, err)
		}
		var serr *SoundError
		if !errors.As(err, &serr) || serr.Code != ErrorCodeInvalidPitch {
			t.Errorf("SetPlaybackSpeed(%v) error is not an INVALID_PITCH SoundError", speed)
		}
	}

	if got := src.PlaybackSpeed(); got != 1.5 {
		t.Errorf("PlaybackSpeed() = %v, want 1.5", got)
	}
	if got := voiceOf(t, fake).Pitch(); got != 1.5 {
		t.Errorf("voice pitch = %v, want 1.5", got)
	}
}

func TestSourceVolume(t *testing.T) {
	cfg := testConfig()
	cfg.Headroom = 0.5
	sys, fake := newTestSubsystem(t, cfg)
	src := newTestSource(t, sys)
	src.SetHardActive(true)
	src.Update()
	v := voiceOf(t, fake)

	src.SetVolume(-3)
	if src.Volume() != 0 {
		t.Errorf("Volume() = %v, want clamped to 0", src.Volume())
	}

	src.SetVolume(0.8)
	if got := v.Gain(); got != 0.4 {
		t.Errorf("voice gain = %v, want volume times headroom", got)
	}

	src.SetActive(false)
	if got := v.Gain(); got != 0 {
		t.Errorf("inactive voice gain = %v, want 0", got)
	}
	if src.Volume() != 0.8 {
		t.Errorf("Volume() = %v, SetActive must not change it", src.Volume())
	}
	src.SetActive(true)
	if got := v.Gain(); got != 0.4 {
		t.Errorf("voice gain = %v after reactivation, want 0.4", got)
	}
}

func TestSourceSettingsApplyOnAllocation(t *testing.T) {
	sys, fake := newTestSubsystem(t, testConfig())
	src, err := sys.NewSource(SourceOptions{SlowRolloff: true})
	if err != nil {
		t.Fatal(err)
	}
	src.SetVolume(0.25)
	_ = src.SetPlaybackSpeed(2)
	src.SetPosition(1, 2, 3)
	src.SetVelocity(4, 5, 6)

	src.SetHardActive(true)
	src.Update()
	v := voiceOf(t, fake)

	if v.Gain() != 0.25 || v.Pitch() != 2 || v.Rolloff() != slowRolloff {
		t.Errorf("voice gain/pitch/rolloff = %v/%v/%v", v.Gain(), v.Pitch(), v.Rolloff())
	}
	if v.Position() != [3]float64{1, 2, 3} {
		t.Errorf("voice position = %v", v.Position())
	}

	src.SetPosition(7, 8, 9)
	if v.Position() != [3]float64{7, 8, 9} {
		t.Errorf("position not forwarded: %v", v.Position())
	}
}

func TestSourceRolloff(t *testing.T) {
	tests := []struct {
		name string
		opts SourceOptions
		want float64
	}{
		{"default", SourceOptions{}, 10},
		{"unset distance", SourceOptions{DistanceFactor: 10000}, 10},
		{"slow", SourceOptions{SlowRolloff: true, DistanceFactor: 700}, 0.4},
		{"distance", SourceOptions{DistanceFactor: 700}, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.opts.rolloff(); got != tt.want {
				t.Errorf("rolloff() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSourceEnvironmentIgnoresPosition(t *testing.T) {
	sys, fake := newTestSubsystem(t, testConfig())
	src, err := sys.NewSource(SourceOptions{Environment: true})
	if err != nil {
		t.Fatal(err)
	}
	src.SetHardActive(true)
	src.Update()
	src.SetPosition(100, 0, 5)
	if got := voiceOf(t, fake).Position(); got != [3]float64{} {
		t.Errorf("environment voice position = %v, want origin", got)
	}
}

func TestSourceClose(t *testing.T) {
	sys, fake := newTestSubsystem(t, testConfig())
	src := newTestSource(t, sys)
	src.SetHardActive(true)
	src.Queue("engine.wav", Loop, false)
	src.Update()

	src.Close()
	src.Close()
	if len(fake.Voices()) != 0 {
		t.Error("voice kept after Close")
	}
	src.Queue("engine.wav", Loop, false)
	src.Update()
	if len(src.Commands()) != 0 {
		t.Error("closed source accepted a request")
	}
	if fake.IsOpen() {
		t.Error("backend still open after its last source closed")
	}
}
