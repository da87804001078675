// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"voicefft/internal/audio"
	"voicefft/internal/config"
	"voicefft/internal/host"
	applog "voicefft/internal/log"
	"voicefft/internal/tui"
	"voicefft/internal/voice"
)

// Run executes the command in opts until it finishes or ctx is cancelled.
func Run(ctx context.Context, opts *Options, out io.Writer) error {
	if level, ok := applog.ParseLevel(opts.Config.LogLevel); ok {
		applog.SetLevel(level)
	}
	if opts.Config.Debug {
		applog.SetLevel(applog.LevelDebug)
	}

	command := opts.Command
	if command == CommandLive && opts.Config.Command != "" {
		command = opts.Config.Command
	}

	switch command {
	case CommandLive:
		return runLive(ctx, opts, out)
	case CommandList:
		return runList(out)
	case CommandAnalyze:
		return runAnalyze(ctx, opts, out)
	case CommandRoundTrip:
		return runRoundTrip(ctx, opts, out)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func runList(out io.Writer) error {
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()
	return audio.ListDevices(out)
}

// runLive captures from the input device and shows the meter, or blocks
// until ctx is done when the meter is disabled.
func runLive(ctx context.Context, opts *Options, out io.Writer) error {
	cfg := opts.Config

	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	if opts.Select {
		sel, err := tui.SelectDevice(cfg.Analysis.SampleRate)
		if err != nil {
			return err
		}
		if !sel.Confirmed {
			return nil
		}
		cfg.Audio.InputDevice = sel.DeviceID
		cfg.Analysis.SampleRate = sel.SampleRate
	}

	p, err := newPipeline(cfg, cfg.Analysis.SampleRate)
	if err != nil {
		return err
	}
	defer p.Close()

	engine, err := audio.NewEngine(cfg, p.processor)
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			cliLog.Errorf("error closing audio engine: %v", err)
		}
	}()

	// The first call to StartInputStream triggers PortAudio to begin
	// calling the engine callback.
	if err := engine.StartInputStream(); err != nil {
		return err
	}
	if cfg.Recording.Enabled {
		if err := engine.StartRecording(audio.RecordingPath(cfg.Recording.OutputDir, time.Now())); err != nil {
			return err
		}
	}
	p.Start()

	if opts.NoTUI {
		fmt.Fprintf(out, "Capturing: %s\nPress Ctrl+C to stop.\n", p.Describe())
		<-ctx.Done()
	} else if err := tui.RunMeter(p.analyzer, tui.DefaultRefresh, p.Describe()); err != nil {
		return err
	}

	fmt.Fprintf(out, "Analyzed %d frames (%d gated)\n", engine.Frames(), engine.Gated())
	return nil
}

// loadClip reads a WAV file, or raw little-endian PCM16 mono at the
// configured sample rate for any other extension.
func loadClip(path string, cfg *config.Config) (*audio.Clip, error) {
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		return audio.ReadWAVFile(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &audio.Clip{
		SampleRate: cfg.Analysis.SampleRate,
		Channels:   1,
		BitDepth:   16,
		Samples:    audio.DecodePCM16LE(data),
	}, nil
}

type frameRecord struct {
	Frame int     `json:"frame"`
	Time  float64 `json:"time"`
	voice.VoiceVariables
}

func runAnalyze(ctx context.Context, opts *Options, out io.Writer) error {
	cfg := opts.Config
	clip, err := loadClip(opts.Args[0], cfg)
	if err != nil {
		return err
	}
	if clip.SampleRate <= 0 {
		return fmt.Errorf("%s: invalid sample rate %d", opts.Args[0], clip.SampleRate)
	}

	p, err := newPipeline(cfg, clip.SampleRate)
	if err != nil {
		return err
	}
	defer p.Close()
	p.Start()

	frames := clip.Frames(cfg.Analysis.FFTSize)
	frameDur := time.Duration(cfg.Analysis.FFTSize) * time.Second / time.Duration(clip.SampleRate)
	var pace <-chan time.Time
	if opts.Realtime {
		ticker := time.NewTicker(frameDur)
		defer ticker.Stop()
		pace = ticker.C
	}

	enc := json.NewEncoder(out)
	if !opts.JSON {
		fmt.Fprintf(out, "# %s: %s, %s\n", filepath.Base(opts.Args[0]), clip.Duration(), p.Describe())
	}

	var peak float64
	for i, frame := range frames {
		if err := ctx.Err(); err != nil {
			return err
		}
		v, err := p.analyzer.AnalyzeSamples(frame)
		if err != nil {
			return err
		}
		peak = max(peak, v.TotalEnergy)
		at := (time.Duration(i) * frameDur).Seconds()

		if opts.JSON {
			if err := enc.Encode(frameRecord{Frame: i, Time: at, VoiceVariables: v}); err != nil {
				return err
			}
		} else {
			fmt.Fprintln(out, formatFrame(at, v))
		}

		if pace != nil {
			select {
			case <-pace:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	if !opts.JSON {
		fmt.Fprintf(out, "# %d frames, peak energy %.3f\n", len(frames), peak)
	}
	return nil
}

// formatFrame renders one result as "time energy | bands | formants".
func formatFrame(at float64, v voice.VoiceVariables) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%8.3fs %10.3f |", at, v.TotalEnergy)
	for _, b := range v.Bands {
		fmt.Fprintf(&sb, " %.2f", b)
	}
	sb.WriteString(" |")
	for _, f := range v.Formants {
		fmt.Fprintf(&sb, " %5.0f", f)
	}
	return sb.String()
}

// runRoundTrip pushes every frame through a forward and inverse transform
// via the host boundary and writes the reconstruction.
func runRoundTrip(ctx context.Context, opts *Options, out io.Writer) error {
	cfg := opts.Config
	in, outPath := opts.Args[0], opts.Args[1]

	clip, err := loadClip(in, cfg)
	if err != nil {
		return err
	}

	h := host.New()
	defer h.Close()

	size := cfg.Analysis.FFTSize
	plan, err := h.CreatePlan(size)
	if err != nil {
		return err
	}
	defer h.DestroyPlan(plan)

	bins := size/2 + 1
	mag := make([]float64, bins)
	phase := make([]float64, bins)
	rec := make([]float64, size)
	samples := make([]float64, 0, len(clip.Samples)+size)
	var maxErr float64

	for _, frame := range clip.Frames(size) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := h.ForwardTransform(plan, frame, mag, phase); err != nil {
			return err
		}
		if err := h.InverseTransform(plan, mag, phase, rec); err != nil {
			return err
		}
		for i := range rec {
			maxErr = max(maxErr, math.Abs(rec[i]-frame[i]))
		}
		samples = append(samples, rec...)
	}
	samples = samples[:len(clip.Samples)]

	if err := audio.WriteWAVFile(outPath, samples, clip.SampleRate, clip.BitDepth); err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote %d samples to %s, max reconstruction error %.3g\n", len(samples), outPath, maxErr)
	return nil
}
