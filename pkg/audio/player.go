// Package audio plays synthesized speech through an external player
// process. The default player is ffplay; any command that reads the
// audio payload from stdin works.
package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
)

// ErrNotPlaying is returned by Cancel paths that require active playback.
var ErrNotPlaying = errors.New("audio: not playing")

// Player plays one audio artifact at a time.
type Player interface {
	// Play blocks until playback ends naturally, the context is
	// cancelled, or Cancel is called.
	Play(ctx context.Context, data []byte) error

	// Cancel stops current playback immediately. Safe to call when idle.
	Cancel()

	// Playing reports whether playback is in progress.
	Playing() bool
}

// ExecPlayer shells out to an audio player that reads from stdin.
type ExecPlayer struct {
	command []string
	logger  *slog.Logger

	// Callbacks fire on the Play goroutine.
	OnPlaybackStart func()
	OnPlaybackEnd   func()

	mu      sync.Mutex
	playing bool
	cmd     *exec.Cmd
}

// ExecOption configures an ExecPlayer.
type ExecOption func(*ExecPlayer)

// WithCommand overrides the player command line. The payload is written
// to the command's stdin.
func WithCommand(command ...string) ExecOption {
	return func(p *ExecPlayer) { p.command = command }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ExecOption {
	return func(p *ExecPlayer) { p.logger = logger.With("component", "audio.player") }
}

// NewExecPlayer creates a player. Without options it runs
// `ffplay -autoexit -nodisp -loglevel quiet -`.
func NewExecPlayer(opts ...ExecOption) *ExecPlayer {
	p := &ExecPlayer{
		command: []string{"ffplay", "-autoexit", "-nodisp", "-loglevel", "quiet", "-"},
		logger:  slog.Default().With("component", "audio.player"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Play plays the payload, blocking until it finishes or is cancelled.
// Cancellation is not an error: a cancelled Play returns nil, matching
// the "stopped speaking" flow.
func (p *ExecPlayer) Play(ctx context.Context, data []byte) error {
	if len(data) == 0 {
		return nil
	}

	p.mu.Lock()
	if p.playing {
		p.mu.Unlock()
		return fmt.Errorf("audio: playback already in progress")
	}

	cmd := exec.CommandContext(ctx, p.command[0], p.command[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		p.mu.Unlock()
		return fmt.Errorf("audio: stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		p.mu.Unlock()
		return fmt.Errorf("audio: start player: %w", err)
	}
	p.playing = true
	p.cmd = cmd
	p.mu.Unlock()

	if p.OnPlaybackStart != nil {
		p.OnPlaybackStart()
	}
	p.logger.Debug("playback started", "bytes", len(data), "player", p.command[0])

	_, writeErr := stdin.Write(data)
	stdin.Close()
	waitErr := cmd.Wait()

	p.mu.Lock()
	cancelled := !p.playing // Cancel ran while we were blocked
	p.playing = false
	p.cmd = nil
	p.mu.Unlock()

	if p.OnPlaybackEnd != nil {
		p.OnPlaybackEnd()
	}

	if cancelled || ctx.Err() != nil {
		return nil
	}
	if waitErr != nil {
		return fmt.Errorf("audio: player exited: %w", waitErr)
	}
	if writeErr != nil {
		return fmt.Errorf("audio: write to player: %w", writeErr)
	}
	return nil
}

// Cancel stops playback immediately. Idempotent.
func (p *ExecPlayer) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.playing {
		return
	}
	p.playing = false
	if p.cmd != nil && p.cmd.Process != nil {
		p.cmd.Process.Kill()
	}
	p.logger.Debug("playback cancelled")
}

// Playing reports whether playback is in progress.
func (p *ExecPlayer) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

var _ Player = (*ExecPlayer)(nil)

// PCMBytesToSamples converts little-endian PCM16 bytes to samples.
func PCMBytesToSamples(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples
}

// SamplesToPCMBytes converts samples to little-endian PCM16 bytes.
func SamplesToPCMBytes(samples []int16) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	return data
}
