package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"github.com/RyanBlaney/sonido-chords/capture"
	"github.com/RyanBlaney/sonido-chords/chords"
	"github.com/RyanBlaney/sonido-chords/config"
	"github.com/RyanBlaney/sonido-chords/display"
	"github.com/RyanBlaney/sonido-chords/export"
	"github.com/RyanBlaney/sonido-chords/logging"
	"github.com/RyanBlaney/sonido-chords/server"
)

var version = "0.1.0"

// Globals are the flags shared by every command
type Globals struct {
	Config   string `short:"c" type:"path" help:"JSON pipeline config file (flags override it)"`
	LogLevel string `default:"info" enum:"debug,info,warn,error" help:"Log level"`
	LogFile  string `type:"path" help:"Write logs to this file instead of the terminal"`

	SampleRate  int     `help:"Sample rate in Hz"`
	BlockSize   int     `help:"Samples per analyzed block"`
	Sensitivity float64 `help:"Peak threshold as a fraction of the strongest bin (0.01-1.0)"`
	Tolerance   float64 `help:"Base note-mapping tolerance in Hz"`
	Confidence  float64 `help:"Minimum chord score to confirm a chord (0.3-1.0)"`
	Persistence int     `default:"-1" help:"Blocks a chord is held without evidence (-1 keeps the configured value)"`
	Refine      bool    `help:"Interpolate peak frequencies between bins"`

	Plain      bool   `help:"Print chord changes as plain lines instead of the live view"`
	ListenAddr string `help:"Serve the latest chord over HTTP on this address, e.g. :8080"`
	MidiOut    string `type:"path" help:"Write committed chord changes to this MIDI file on exit"`
}

// CLI defines the command-line interface
type CLI struct {
	Globals

	Version kong.VersionFlag `short:"v" help:"Show version information"`

	Listen  ListenCmd  `cmd:"" default:"1" help:"Detect chords from a live input device"`
	File    FileCmd    `cmd:"" help:"Detect chords in an audio file"`
	Tone    ToneCmd    `cmd:"" help:"Detect chords in synthesized tones"`
	Devices DevicesCmd `cmd:"" help:"List audio input devices"`
}

// ListenCmd captures from a sound card
type ListenCmd struct {
	Device string `short:"d" help:"Input device index or name substring; default device when empty"`
}

func (c *ListenCmd) Run(g *Globals) error {
	return runPipeline(g, "input "+deviceName(c.Device), func(cfg *config.Config, engine *chords.Engine) (capture.Source, error) {
		src := capture.NewPortAudioSource(cfg.SampleRate, cfg.BlockSize, c.Device)
		src.OnDrop = engine.RecordDropped
		return src, nil
	})
}

// FileCmd analyzes a decoded audio file
type FileCmd struct {
	Path     string `arg:"" type:"existingfile" help:"Audio file to analyze"`
	Realtime bool   `help:"Pace analysis at playback speed"`
	Hop      int    `help:"Samples between block starts; defaults to the block size"`
}

func (c *FileCmd) Run(g *Globals) error {
	return runPipeline(g, c.Path, func(cfg *config.Config, _ *chords.Engine) (capture.Source, error) {
		src := capture.NewFileSource(c.Path, cfg.SampleRate, cfg.BlockSize)
		src.Realtime = c.Realtime
		src.HopSize = c.Hop
		return src, nil
	})
}

// ToneCmd analyzes synthesized sine tones
type ToneCmd struct {
	Notes    []string `arg:"" help:"Note names (C#3, Eb) or frequencies in Hz"`
	Blocks   int      `default:"16" help:"Number of blocks to synthesize (0 runs until interrupted)"`
	Realtime bool     `help:"Pace blocks at playback speed"`
}

func (c *ToneCmd) Run(g *Globals) error {
	return runPipeline(g, fmt.Sprintf("tones %v", c.Notes), func(cfg *config.Config, _ *chords.Engine) (capture.Source, error) {
		src, err := capture.NewToneSource(c.Notes, cfg.SampleRate, cfg.BlockSize)
		if err != nil {
			return nil, err
		}
		src.Blocks = c.Blocks
		src.Realtime = c.Realtime
		return src, nil
	})
}

// DevicesCmd lists capture devices
type DevicesCmd struct{}

func (c *DevicesCmd) Run(g *Globals) error {
	devices, err := capture.ListInputDevices()
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		return capture.ErrNoInputDevice
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "INDEX\tNAME\tHOST API\tCHANNELS\tRATE\tDEFAULT")
	for _, d := range devices {
		def := ""
		if d.Default {
			def = "*"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%.0f\t%s\n", d.Index, d.Name, d.HostAPI, d.Channels, d.DefaultSampleRate, def)
	}
	return w.Flush()
}

func deviceName(name string) string {
	if name == "" {
		return "default device"
	}
	return name
}

// pipelineConfig merges the config file, if any, with explicit flags
func (g *Globals) pipelineConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if g.Config != "" {
		loaded, err := config.Load(g.Config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if g.SampleRate != 0 {
		cfg.SampleRate = g.SampleRate
	}
	if g.BlockSize != 0 {
		cfg.BlockSize = g.BlockSize
	}
	if g.Sensitivity != 0 {
		cfg.Sensitivity = g.Sensitivity
	}
	if g.Tolerance != 0 {
		cfg.FreqTolerance = g.Tolerance
	}
	if g.Confidence != 0 {
		cfg.ConfidenceThreshold = g.Confidence
	}
	if g.Persistence >= 0 {
		cfg.MaxPersistence = g.Persistence
	}
	if g.Refine {
		cfg.RefinePeaks = true
	}

	return cfg, cfg.Validate()
}

// setupLogging installs the global logger; the live view owns the
// terminal so logs go to a file or nowhere
func (g *Globals) setupLogging(tui bool) (io.Closer, error) {
	level, err := logging.ParseLevel(g.LogLevel)
	if err != nil {
		return nil, err
	}

	var logger *logging.DefaultLogger
	var closer io.Closer
	switch {
	case g.LogFile != "":
		f, err := os.OpenFile(g.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		logger = logging.NewWriterLogger(f)
		closer = f
	case tui:
		logger = logging.NewWriterLogger(io.Discard)
	default:
		logger = logging.NewDefaultLogger()
	}

	logger.SetLevel(level)
	logging.SetGlobalLogger(logger)
	return closer, nil
}

type sourceFactory func(cfg *config.Config, engine *chords.Engine) (capture.Source, error)

func runPipeline(g *Globals, sourceName string, newSource sourceFactory) error {
	tui := !g.Plain && isatty.IsTerminal(os.Stdout.Fd())

	closer, err := g.setupLogging(tui)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	cfg, err := g.pipelineConfig()
	if err != nil {
		return err
	}

	engine, err := chords.NewEngine(cfg)
	if err != nil {
		return err
	}
	src, err := newSource(cfg, engine)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	blocks := make(chan chords.Block, cfg.QueueSize)
	srcErr := make(chan error, 1)
	go func() {
		defer close(blocks)
		srcErr <- src.Stream(ctx, blocks)
	}()

	if g.ListenAddr != "" {
		go func() {
			if err := server.New(engine).ListenAndServe(ctx, g.ListenAddr); err != nil {
				logging.Error(err, "HTTP feed stopped")
			}
		}()
	}

	timeline := export.NewTimeline()
	var runErr error

	if tui {
		model := display.NewModel(sourceName)
		program := tea.NewProgram(model, tea.WithAltScreen())

		engineDone := make(chan struct{})
		go func() {
			defer close(engineDone)
			err := engine.Run(ctx, blocks, func(r chords.Result) {
				timeline.Observe(r)
				model.Send(r)
			})
			program.Send(display.DoneMsg{Err: ignoreCanceled(err)})
		}()

		if _, err := program.Run(); err != nil {
			runErr = fmt.Errorf("terminal UI failed: %w", err)
		}
		stop()
		<-engineDone
	} else {
		printer := display.NewPlainPrinter(os.Stdout, false)
		runErr = ignoreCanceled(engine.Run(ctx, blocks, func(r chords.Result) {
			timeline.Observe(r)
			printer.Print(r)
		}))
		stop()
	}

	if err := ignoreCanceled(<-srcErr); err != nil && runErr == nil {
		runErr = err
	}

	stats := engine.Stats()
	logging.Info("Session finished", logging.Fields{
		"session":   stats.SessionID,
		"blocks":    stats.Blocks,
		"confirmed": stats.Confirmed,
		"held":      stats.Held,
		"changes":   stats.Changes,
		"dropped":   stats.Dropped,
		"key":       stats.Key,
	})

	if g.MidiOut != "" {
		if err := timeline.WriteFile(g.MidiOut, export.DefaultBPM); err != nil && runErr == nil {
			runErr = err
		}
	}

	return runErr
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("sonido-chords"),
		kong.Description("Live chord recognition from audio"),
		kong.UsageOnError(),
		kong.Vars{
			"version": version,
		},
	)

	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}
