// Command voicebot is a terminal client for the portfolio chatbot.
//
// Type to chat; slash commands drive the voice pipeline:
//
//	/listen   start hands-free listening (transcribes when you pause)
//	/stop     finish listening early
//	/cancel   abandon the current utterance
//	/record   start a push-to-talk take
//	/send     finish the take and send it in one round trip
//	/drop     abandon the take
//	/say      stop the bot mid-sentence
//	/clear    start a fresh conversation
//	/metrics  show turn latencies
//	/quit     exit
//
// Configuration comes from an optional YAML file (-config) and the
// VOICEBOT_* environment variables.
package main

import (
	"bufio"
	"context"
	"errors"
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
	"github.com/spike-crypto/voicebot/pkg/recognition"
	"github.com/spike-crypto/voicebot/pkg/recorder"
	"github.com/spike-crypto/voicebot/pkg/voice"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	apiURL := flag.String("api", "", "Backend base URL (overrides config)")
	textOnly := flag.Bool("text", false, "Disable voice input and playback")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	if *apiURL != "" {
		cfg.APIBaseURL = *apiURL
	}
	log.Init(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := api.NewClient(cfg.APIBaseURL,
		api.WithTimeout(cfg.RequestTimeout),
		api.WithLogger(log.L()),
	)

	if err := client.Health(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "backend unreachable at %s: %v\n", cfg.APIBaseURL, err)
		os.Exit(1)
	}

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

	opts := []voice.Option{voice.WithLogger(log.L())}
	if !*textOnly {
		opts = append(opts, voiceOptions(cfg, client)...)
	}

	orch, err := voice.New(client, store, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pipeline error: %v\n", err)
		os.Exit(1)
	}

	orch.SetCallbacks(voice.Callbacks{
		OnStatusChange: func(s voice.Status) {
			if s == voice.StatusListening {
				fmt.Println("… listening (pause to finish, /stop or /cancel)")
			}
		},
		OnTranscript: func(text string) {
			fmt.Printf("you (voice): %s\n", text)
		},
		OnMessage: func(role, content string) {
			if role == string(conversation.RoleAssistant) {
				fmt.Printf("bot: %s\n", content)
			}
		},
		OnError: func(e *voice.UserError) {
			fmt.Printf("!! %s\n", e.Message)
		},
	})

	// Ctrl-C stops speech first, exits on the second signal.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		orch.StopSpeaking()
		orch.CancelListening()
		<-sigCh
		cancel()
		os.Exit(0)
	}()

	fmt.Printf("connected to %s (session %s)\n", cfg.APIBaseURL, store.SessionID())
	fmt.Println("type a message, or /listen to talk. /quit exits.")

	repl(ctx, orch)
}

// voiceOptions wires up capture and playback when the platform has them.
func voiceOptions(cfg config.Config, client *api.Client) []voice.Option {
	var opts []voice.Option

	audioCfg := audioio.DefaultConfig()
	audioCfg.Backend = audioio.Backend(cfg.AudioBackend)
	audioCfg.Device = cfg.AudioDevice

	if probe := audioio.Probe(audioCfg); probe.Supported {
		source, err := audioio.NewSource(audioCfg, log.L())
		if err == nil {
			rec, err := recognition.NewStreamRecognizer(source, client,
				recognition.WithStreamLogger(log.L()),
			)
			if err == nil {
				opts = append(opts, voice.WithRecognizer(rec))
			}
			// Push-to-talk shares the capture device; the pipeline slot
			// keeps the two modes from overlapping.
			if take, err := recorder.New(source, recorder.WithLogger(log.L())); err == nil {
				opts = append(opts, voice.WithCapture(take))
			}
		}
	} else {
		log.Warn("voice input unavailable", "reason", probe.Reason)
	}

	playerOpts := []audio.ExecOption{audio.WithLogger(log.L())}
	if cfg.PlayerCommand != "" {
		playerOpts = append(playerOpts, audio.WithCommand(strings.Fields(cfg.PlayerCommand)...))
	}
	opts = append(opts, voice.WithPlayer(audio.NewExecPlayer(playerOpts...)))
	return opts
}

// repl reads intents from stdin until EOF or /quit.
func repl(ctx context.Context, orch *voice.Orchestrator) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "/quit" || line == "/exit":
			return
		case line == "/listen":
			orch.StartListening(ctx)
		case line == "/stop":
			orch.StopListening()
		case line == "/cancel":
			orch.CancelListening()
		case line == "/record":
			if err := orch.StartRecording(ctx); errors.Is(err, voice.ErrBusy) {
				fmt.Println("!! still working on the previous turn")
			}
		case line == "/send":
			if err := orch.StopRecording(ctx); errors.Is(err, recorder.ErrNotRecording) {
				fmt.Println("!! not recording; /record starts a take")
			}
		case line == "/drop":
			if err := orch.CancelRecording(); errors.Is(err, recorder.ErrNotRecording) {
				fmt.Println("!! not recording; /record starts a take")
			}
		case line == "/say":
			orch.StopSpeaking()
		case line == "/clear":
			if err := orch.Clear(ctx); err != nil {
				fmt.Printf("!! clear failed: %v\n", err)
			} else {
				fmt.Println("conversation cleared")
			}
		case line == "/metrics":
			m := orch.Metrics().Current()
			fmt.Println(m.FormatLatency())
		case strings.HasPrefix(line, "/"):
			fmt.Printf("unknown command %s\n", line)
		default:
			if err := orch.SubmitText(ctx, line); err != nil {
				if err == voice.ErrBusy {
					fmt.Println("!! still working on the previous turn")
				}
			}
		}
	}
}
