// ABOUTME: Entry point for the Auralis stream player
// ABOUTME: Parses CLI flags, wires the engine, and runs the TUI
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/matiaszanolli/Auralis-sub010/internal/audio"
	"github.com/matiaszanolli/Auralis-sub010/internal/config"
	"github.com/matiaszanolli/Auralis-sub010/internal/device"
	"github.com/matiaszanolli/Auralis-sub010/internal/discovery"
	"github.com/matiaszanolli/Auralis-sub010/internal/events"
	"github.com/matiaszanolli/Auralis-sub010/internal/source"
	"github.com/matiaszanolli/Auralis-sub010/internal/timing"
	"github.com/matiaszanolli/Auralis-sub010/internal/ui"
	"github.com/matiaszanolli/Auralis-sub010/internal/version"
	"github.com/matiaszanolli/Auralis-sub010/pkg/stream"
)

var (
	serverAddr = flag.String("server", "", "Stream server address (skip mDNS discovery)")
	transport  = flag.String("transport", "", "Transport: http or ws (default from config)")
	trackID    = flag.String("track", "", "Track to load on startup")
	volumeFlag = flag.Int("volume", -1, "Initial volume 0-100 (default from config)")
	noTUI      = flag.Bool("no-tui", false, "Disable TUI, stream logs to stdout instead")
	debugFlag  = flag.Bool("debug", false, "Enable debug logging")
	logFile    = flag.String("log-file", "auralis-player.log", "Log file path in TUI mode")
)

func main() {
	flag.Parse()

	useTUI := !*noTUI

	setupLogging(useTUI)

	cfg, err := config.Load()
	if err != nil {
		log.Warn().Err(err).Msg("Falling back to default config")
	}

	addr := *serverAddr
	if addr == "" {
		addr = cfg.Server
	}
	if addr == "" {
		addr = discoverServer()
	}

	trans := *transport
	if trans == "" {
		trans = cfg.Transport
	}

	src, err := newSource(trans, addr)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to stream server")
	}

	log.Info().Str("server", addr).Str("transport", trans).Msgf("Starting %s v%s", version.Product, version.Version)

	clock := timing.NewSystemClock()
	dev, err := device.NewOto(clock, audio.Format{SampleRate: 44100, Channels: 2, BitDepth: 16})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open audio output")
	}

	engine := stream.NewEngine(stream.Config{
		Source:        src,
		Device:        dev,
		Clock:         clock,
		CacheCapacity: cfg.CacheChunks,
	})
	defer engine.Cleanup()

	volume := cfg.Volume
	if *volumeFlag >= 0 {
		volume = config.ClampVolume(*volumeFlag)
	}
	engine.SetVolume(float64(volume) / 100.0)

	if cfg.Enhancement.Enabled {
		if err := engine.SetEnhanced(true, cfg.Enhancement.Preset); err != nil {
			log.Warn().Err(err).Msg("Could not apply enhancement default")
		}
	}

	track := *trackID
	if track == "" {
		track = cfg.LastTrack
	}
	if track == "" {
		log.Fatal().Msg("No track specified; use -track or play one first")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := engine.LoadTrack(ctx, track); err != nil {
		cancel()
		log.Fatal().Err(err).Str("track", track).Msg("Failed to load track")
	}
	cancel()

	cfg.LastTrack = track
	if err := cfg.Save(); err != nil {
		log.Warn().Err(err).Msg("Could not persist config")
	}

	if useTUI {
		runTUI(engine, track, volume)
	} else {
		runHeadless(engine)
	}
}

func setupLogging(useTUI bool) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debugFlag {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if useTUI {
		// Log to file only so the TUI stays intact
		f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error opening log file: %v\n", err)
			os.Exit(1)
		}
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: f, TimeFormat: "15:04:05"})
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"})
	}
}

func discoverServer() string {
	log.Info().Msg("Searching for stream servers via mDNS...")

	disc := discovery.NewManager()
	defer disc.Stop()
	disc.Browse()

	select {
	case server := <-disc.Servers():
		return fmt.Sprintf("http://%s:%d", server.Host, server.Port)
	case <-time.After(10 * time.Second):
		log.Fatal().Msg("No stream server found after 10 seconds")
		return ""
	}
}

func newSource(transport, addr string) (source.Source, error) {
	if transport == "ws" || strings.HasPrefix(addr, "ws://") || strings.HasPrefix(addr, "wss://") {
		return source.NewWSSource(addr)
	}
	return source.NewHTTPSource(addr), nil
}

// runTUI drives the bubbletea program from engine events and feeds key
// commands back into the engine.
func runTUI(engine *stream.Engine, track string, volume int) {
	controls := ui.NewControls()
	prog, err := ui.Run(controls)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start TUI")
	}

	bus := engine.Events()
	// Handlers run on the emitting goroutine and must not call back into
	// the engine; everything they need rides on the event payload.
	bus.Subscribe(events.MetadataLoaded, func(e events.Event) {
		prog.Send(ui.StatusMsg{
			TrackID:  track,
			Duration: e.Duration,
		})
	})
	bus.Subscribe(events.StateChange, func(e events.Event) {
		prog.Send(ui.StatusMsg{State: e.NewState})
	})
	bus.Subscribe(events.TimeUpdate, func(e events.Event) {
		prog.Send(ui.StatusMsg{HasPosition: true, Position: e.CurrentTime})
	})
	bus.Subscribe(events.Error, func(e events.Event) {
		prog.Send(ui.StatusMsg{Err: e.Err.Error()})
	})

	prog.Send(ui.StatusMsg{
		TrackID:   track,
		Duration:  engine.Duration(),
		State:     engine.State().String(),
		HasVolume: true,
		Volume:    volume,
	})

	go func() {
		for cmd := range controls.Commands {
			switch cmd.Action {
			case ui.ActionToggle:
				if err := togglePlayback(engine); err != nil {
					log.Warn().Err(err).Msg("Transport command failed")
				}
			case ui.ActionSeek:
				if err := engine.Seek(cmd.Seconds); err != nil {
					log.Warn().Err(err).Msg("Seek failed")
				}
			case ui.ActionVolume:
				engine.SetVolume(float64(cmd.Volume) / 100.0)
			case ui.ActionEnhance:
				if err := engine.SetEnhanced(cmd.Enhance, "natural"); err != nil {
					log.Warn().Err(err).Msg("Enhancement switch failed")
				}
			case ui.ActionQuit:
				return
			}
		}
	}()

	if err := engine.Play(); err != nil {
		log.Warn().Err(err).Msg("Could not start playback")
	}

	if _, err := prog.Run(); err != nil {
		log.Error().Err(err).Msg("TUI terminated with error")
	}
}

func togglePlayback(engine *stream.Engine) error {
	if engine.State().String() == "playing" {
		return engine.Pause()
	}
	return engine.Play()
}

// runHeadless plays the track and logs progress until it ends or the
// process is signalled.
func runHeadless(engine *stream.Engine) {
	done := make(chan struct{})
	bus := engine.Events()
	bus.Subscribe(events.Ended, func(e events.Event) { close(done) })
	bus.Subscribe(events.Error, func(e events.Event) {
		log.Error().Err(e.Err).Msg("Playback error")
	})

	if err := engine.Play(); err != nil {
		log.Fatal().Err(err).Msg("Could not start playback")
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			log.Info().Msg("Track finished")
			return
		case <-sig:
			log.Info().Msg("Shutting down")
			return
		case <-ticker.C:
			log.Info().Float64("position", engine.CurrentTime()).Float64("duration", engine.Duration()).Msg("Playing")
		}
	}
}
