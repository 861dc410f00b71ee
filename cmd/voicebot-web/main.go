// Command voicebot-web serves the chat widget: a JSON API over the
// conversation pipeline plus a websocket that pushes state snapshots.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spike-crypto/voicebot/internal/config"
	"github.com/spike-crypto/voicebot/internal/log"
	"github.com/spike-crypto/voicebot/pkg/api"
	"github.com/spike-crypto/voicebot/pkg/audio"
	"github.com/spike-crypto/voicebot/pkg/audioio"
	"github.com/spike-crypto/voicebot/pkg/conversation"
	"github.com/spike-crypto/voicebot/pkg/realtime"
	"github.com/spike-crypto/voicebot/pkg/recognition"
	"github.com/spike-crypto/voicebot/pkg/recorder"
	"github.com/spike-crypto/voicebot/pkg/voice"
	"github.com/spike-crypto/voicebot/pkg/web"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	addr := flag.String("addr", ":8080", "Listen address for the widget server")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	log.Init(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := api.NewClient(cfg.APIBaseURL,
		api.WithTimeout(cfg.RequestTimeout),
		api.WithLogger(log.L()),
	)

	store, err := conversation.NewStore(client, conversation.WithLogger(log.L()))
	if err != nil {
		fmt.Fprintf(os.Stderr, "store error: %v\n", err)
		os.Exit(1)
	}
	client.SetSessionSource(store.SessionID)

	if err := store.Init(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "session error: %v\n", err)
		os.Exit(1)
	}

	opts := []voice.Option{
		voice.WithLogger(log.L()),
		voice.WithPlayer(newPlayer(cfg)),
	}

	audioCfg := audioio.DefaultConfig()
	audioCfg.Backend = audioio.Backend(cfg.AudioBackend)
	audioCfg.Device = cfg.AudioDevice
	if probe := audioio.Probe(audioCfg); probe.Supported {
		if source, err := audioio.NewSource(audioCfg, log.L()); err == nil {
			if rec, err := recognition.NewStreamRecognizer(source, client,
				recognition.WithStreamLogger(log.L()),
			); err == nil {
				opts = append(opts, voice.WithRecognizer(rec))
			}
			// Push-to-talk shares the capture device; the pipeline slot
			// keeps the two modes from overlapping.
			if take, err := recorder.New(source, recorder.WithLogger(log.L())); err == nil {
				opts = append(opts, voice.WithCapture(take))
			}
		}
	} else {
		log.Info("serving without voice input", "reason", probe.Reason)
	}

	orch, err := voice.New(client, store, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pipeline error: %v\n", err)
		os.Exit(1)
	}

	// Best-effort server-push channel; the widget works without it.
	if cfg.RealtimeURL != "" {
		rt := realtime.NewClient(cfg.RealtimeURL, realtime.WithLogger(log.L()))
		if err := rt.Connect(ctx); err != nil {
			log.Warn("realtime channel unavailable", "error", err)
		} else {
			rt.JoinSession(store.SessionID())
			defer rt.Close()
		}
	}

	server := web.NewServer(orch, web.WithLogger(log.L()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutting down")
		server.Shutdown()
		cancel()
	}()

	if err := server.Listen(*addr); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func newPlayer(cfg config.Config) audio.Player {
	playerOpts := []audio.ExecOption{audio.WithLogger(log.L())}
	if cfg.PlayerCommand != "" {
		playerOpts = append(playerOpts, audio.WithCommand(strings.Fields(cfg.PlayerCommand)...))
	}
	return audio.NewExecPlayer(playerOpts...)
}
