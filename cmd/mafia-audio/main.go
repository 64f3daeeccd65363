package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/faiface/beep"
	"github.com/spf13/cobra"

	"github.com/jscyril/mileage_mafia/internal/audio"
	"github.com/jscyril/mileage_mafia/internal/config"
	"github.com/jscyril/mileage_mafia/internal/library"
	"github.com/jscyril/mileage_mafia/internal/playlist"
	"github.com/jscyril/mileage_mafia/internal/ui"
	"github.com/jscyril/mileage_mafia/pkg/events"
)

type options struct {
	configPath string
	envFile    string
	logFile    string
	noGesture  bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "mafia-audio",
		Short:         "Mileage Mafia radio: ambience, music and interface effects",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default "+config.GetConfigPath()+")")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file with MAFIA_AUDIO_* overrides")
	cmd.Flags().StringVar(&opts.logFile, "log-file", "", "write logs to this file (discarded when empty)")
	cmd.Flags().BoolVar(&opts.noGesture, "no-gesture", false, "start audio without waiting for a key press")

	cmd.AddCommand(newTracksCmd(opts))
	cmd.AddCommand(newCheckCmd(opts))
	return cmd
}

func newTracksCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "tracks",
		Short: "List the ambience track and the playlist",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			reader := library.NewMetadataReader(slog.New(slog.NewTextHandler(io.Discard, nil)))
			reg, err := playlist.NewRegistry(reader.EnrichAll(cfg.ResolvedPlaylist()))
			if err != nil {
				return fmt.Errorf("build playlist: %w", err)
			}

			out := cmd.OutOrStdout()
			amb := cfg.ResolvedAmbience()
			fmt.Fprintf(out, "ambience  %s  %s\n", amb.Title, amb.Source)
			for i, t := range reg.Tracks() {
				line := fmt.Sprintf("%2d. %-10s %s", i+1, t.ID, t.Title)
				if t.Artist != "" {
					line += " · " + t.Artist
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
}

func newCheckCmd(opts *options) *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify every configured audio asset opens and decodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			amb := cfg.ResolvedAmbience()
			assets := []library.Asset{{Name: "ambience", Source: amb.Source}}
			for _, t := range cfg.ResolvedPlaylist() {
				assets = append(assets, library.Asset{Name: t.ID, Source: t.Source})
			}
			effects := cfg.ResolvedEffects()
			names := make([]string, 0, len(effects))
			for name := range effects {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				assets = append(assets, library.Asset{Name: "sfx:" + name, Source: effects[name]})
			}

			out := cmd.OutOrStdout()
			failed := 0
			for res := range library.NewScanner(workers, audio.OpenSource).Check(cmd.Context(), assets) {
				if res.Err != nil {
					failed++
					fmt.Fprintf(out, "FAIL  %-16s %v\n", res.Name, res.Err)
					continue
				}
				fmt.Fprintf(out, "ok    %-16s %s\n", res.Name, res.Duration.Round(time.Second))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d assets failed", failed, len(assets))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 4, "concurrent decoders")
	return cmd
}

func loadConfig(opts *options) (*config.Config, error) {
	path := opts.configPath
	if path == "" {
		path = config.GetConfigPath()
	}
	cfg, err := config.LoadOrCreate(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ApplyEnv(opts.envFile); err != nil {
		return nil, fmt.Errorf("apply env: %w", err)
	}
	if opts.noGesture {
		cfg.RequireGesture = false
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(path string) (*slog.Logger, func(), error) {
	if path == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger, func() { f.Close() }, nil
}

func run(parent context.Context, opts *options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	logger, closeLog, err := newLogger(opts.logFile)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	reader := library.NewMetadataReader(logger)
	reg, err := playlist.NewRegistry(reader.EnrichAll(cfg.ResolvedPlaylist()))
	if err != nil {
		return fmt.Errorf("build playlist: %w", err)
	}

	device := audio.NewSpeakerDevice(beep.SampleRate(cfg.SampleRate), cfg.RequireGesture)
	ambience := audio.NewStreamChannel("ambience", device, audio.OpenSource)
	music := audio.NewStreamChannel("music", device, audio.OpenSource)

	clips := make(map[audio.SfxName]string)
	for name, src := range cfg.ResolvedEffects() {
		clips[audio.SfxName(name)] = src
	}
	sfx := audio.NewEffectsBus(clips, device, audio.OpenSource, logger)
	sfx.SetMuted(cfg.SfxMuted)

	bus := events.NewEventBus()
	defer bus.Close()
	updates := bus.Subscribe()

	coord := audio.NewCoordinator(audio.Options{
		Ambience:      ambience,
		Music:         music,
		Effects:       sfx,
		Device:        device,
		Playlist:      reg,
		AmbienceTrack: reader.Enrich(cfg.ResolvedAmbience()),
		Volume:        cfg.DefaultVolume,
		Bus:           bus,
		Logger:        logger,
	})

	go coord.Run(ctx)
	go func() {
		if err := coord.PreloadSfx(ctx); err != nil {
			logger.Warn("audio_event", "event", "sfx_preload_cancelled", "error", err)
		}
	}()

	if !cfg.RequireGesture {
		if err := coord.Unlock(ctx); err != nil {
			logger.Warn("audio_event", "event", "autoplay_unlock_failed", "error", err)
		}
	}

	if err := ui.Run(coord, updates, reg.Tracks(), cfg.KeyBindings, cfg.SfxMuted); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	coord.Stop()
	return nil
}
