// Command storyplayer plays a subject's live stories in the terminal.
//
//	storyplayer <wallet address>
//
// Keys: n next, p previous, space hold/release, q quit.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/orgball2608/fary-stories/internal/playback"
	"github.com/orgball2608/fary-stories/internal/playerclient"
	"github.com/orgball2608/fary-stories/internal/preload"
	"github.com/orgball2608/fary-stories/pkg/config"
	"github.com/orgball2608/fary-stories/pkg/logger"
	"github.com/orgball2608/fary-stories/pkg/retry"
	"github.com/panjf2000/ants/v2"
	"golang.org/x/term"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: storyplayer <wallet address>")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.Opts{Env: cfg.App.Env, SentryDSN: cfg.App.SentryUrl, Level: slog.LevelWarn, Output: os.Stderr})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, os.Args[1]); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Playback failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log logger.Logger, subjectKey string) error {
	client := playerclient.New(cfg.Player.APIURL, cfg.Player.Token, log)

	items, err := client.ListLive(ctx, subjectKey)
	if err != nil {
		return fmt.Errorf("failed to load stories: %w", err)
	}
	if len(items) == 0 {
		fmt.Println("no active stories")
		return nil
	}

	pool, err := ants.NewPool(max(cfg.Preload.Workers, 1))
	if err != nil {
		return fmt.Errorf("failed to create preload pool: %w", err)
	}
	defer pool.Release()

	fetcher := preload.NewHTTPFetcher(preload.HTTPFetcherOpts{
		Client:             &http.Client{Timeout: cfg.Preload.Timeout},
		Logger:             log,
		Retry:              retry.DefaultConfig(),
		VideoPrefetchBytes: cfg.Preload.VideoPrefetchBytes,
		MaxImageBytes:      cfg.Preload.MaxImageBytes,
	})

	screen := newScreen(os.Stdout)
	player := playback.NewPlayer(items, cfg.Player.ViewerKey, playback.Options{
		Config:    playback.ConfigFrom(cfg),
		Preloader: preload.New(pool, fetcher, cfg.Preload.Timeout, log),
		Views:     client,
		Logger:    log,
		OnUpdate:  screen.render,
	})

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		state, err := term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("failed to enter raw mode: %w", err)
		}
		defer func() { _ = term.Restore(fd, state) }()
	}
	go readKeys(os.Stdin, player)

	err = player.Run(ctx)
	screen.finish(player.Snapshot())
	return err
}

// controls is the part of *playback.Player the keyboard drives.
type controls interface {
	Next()
	Previous()
	Pause()
	Resume()
	Close()
	Snapshot() playback.Session
}

// readKeys returns when input ends or the player is done. A terminal has no
// key-up events, so space toggles the hold.
func readKeys(in io.Reader, p *playback.Player) {
	buf := make([]byte, 1)
	for {
		n, err := in.Read(buf)
		if err != nil {
			return
		}
		if n == 0 {
			continue
		}
		if !handleKey(p, buf[0]) {
			return
		}
		select {
		case <-p.Done():
			return
		default:
		}
	}
}

// handleKey reports whether more keys should be read.
func handleKey(c controls, key byte) bool {
	switch key {
	case 'n', 'l':
		c.Next()
	case 'p', 'h':
		c.Previous()
	case ' ':
		if c.Snapshot().IsPaused() {
			c.Resume()
		} else {
			c.Pause()
		}
	case 'q', 3, 4: // q, ctrl-c, ctrl-d
		c.Close()
		return false
	}
	return true
}
